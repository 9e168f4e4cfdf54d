// Package gcal pushes formatted class schedules into Google Calendar.
package gcal

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Client is a wrapper around the Google Calendar API service.
type Client struct {
	service *calendar.Service
}

// NewClient creates a new Google Calendar API client using the provided HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	service, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{service: service}, nil
}

// CalendarID looks up a calendar by its display name and reports whether one
// exists. The calendar list is paged, so keep asking until a page comes back
// without a continuation token.
func (c *Client) CalendarID(name string) (string, bool, error) {
	var pageToken string
	for {
		call := c.service.CalendarList.List()
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return "", false, fmt.Errorf("failed to list calendars: %w", err)
		}

		for _, entry := range list.Items {
			if entry.Summary == name {
				return entry.Id, true, nil
			}
		}

		pageToken = list.NextPageToken
		if pageToken == "" {
			return "", false, nil
		}
	}
}

// CreateCalendar creates a fresh calendar and returns its ID.
func (c *Client) CreateCalendar(name, timeZone string) (string, error) {
	created, err := c.service.Calendars.Insert(&calendar.Calendar{
		Summary:  name,
		TimeZone: timeZone,
	}).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create calendar: %w", err)
	}

	return created.Id, nil
}

// RenameCalendar changes a calendar's display name, leaving its events and
// settings alone.
func (c *Client) RenameCalendar(calendarID, name string) error {
	if _, err := c.service.Calendars.Patch(calendarID, &calendar.Calendar{
		Summary: name,
	}).Do(); err != nil {
		return fmt.Errorf("failed to rename calendar: %w", err)
	}

	return nil
}

// DeleteCalendar removes a calendar along with every event on it.
func (c *Client) DeleteCalendar(calendarID string) error {
	if err := c.service.Calendars.Delete(calendarID).Do(); err != nil {
		return fmt.Errorf("failed to delete calendar: %w", err)
	}

	return nil
}

// InsertEvent inserts a new event into a calendar.
// Important: Sets sendUpdates="none" to prevent notifications.
func (c *Client) InsertEvent(calendarID string, event *calendar.Event) error {
	_, err := c.service.Events.Insert(calendarID, event).
		SendUpdates("none"). // Disable notifications
		Do()
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}
