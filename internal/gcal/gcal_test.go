package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	service, err := calendar.NewService(context.Background(),
		option.WithEndpoint(ts.URL),
		option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService() returned error: %v", err)
	}
	return &Client{service: service}
}

func TestCalendarIDFollowsPages(t *testing.T) {
	var requests int
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		switch r.URL.Query().Get("pageToken") {
		case "":
			fmt.Fprint(w, `{"items":[{"id":"cal-a","summary":"Personal"}],"nextPageToken":"page-2"}`)
		case "page-2":
			fmt.Fprint(w, `{"items":[{"id":"cal-b","summary":"Class Schedule"}]}`)
		default:
			t.Errorf("Unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
	}))

	id, found, err := client.CalendarID("Class Schedule")
	if err != nil {
		t.Fatalf("CalendarID() returned error: %v", err)
	}
	if !found || id != "cal-b" {
		t.Errorf("Expected cal-b on the second page, got %q (found=%v)", id, found)
	}
	if requests != 2 {
		t.Errorf("Expected 2 list requests, got %d", requests)
	}
}

func TestCalendarIDMissing(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[{"id":"cal-a","summary":"Personal"}]}`)
	}))

	_, found, err := client.CalendarID("Class Schedule")
	if err != nil {
		t.Fatalf("CalendarID() returned error: %v", err)
	}
	if found {
		t.Error("Expected the calendar to be missing")
	}
}

func TestCreateCalendar(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected a POST, got %s", r.Method)
		}
		var body calendar.Calendar
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Decode() returned error: %v", err)
		}
		if body.Summary != "Class Schedule" {
			t.Errorf("Expected summary Class Schedule, got %q", body.Summary)
		}
		if body.TimeZone != "Asia/Ho_Chi_Minh" {
			t.Errorf("Expected the time zone on the new calendar, got %q", body.TimeZone)
		}
		fmt.Fprint(w, `{"id":"cal-new","summary":"Class Schedule"}`)
	}))

	id, err := client.CreateCalendar("Class Schedule", "Asia/Ho_Chi_Minh")
	if err != nil {
		t.Fatalf("CreateCalendar() returned error: %v", err)
	}
	if id != "cal-new" {
		t.Errorf("Expected cal-new, got %q", id)
	}
}

func TestInsertEventSendsNoUpdates(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("sendUpdates"); got != "none" {
			t.Errorf("Expected sendUpdates=none, got %q", got)
		}
		fmt.Fprint(w, `{"id":"ev-1"}`)
	}))

	err := client.InsertEvent("cal-new", &calendar.Event{Summary: "841083 Đại số tuyến tính"})
	if err != nil {
		t.Fatalf("InsertEvent() returned error: %v", err)
	}
}

func TestRenameCalendar(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("Expected a PATCH, got %s", r.Method)
		}
		var body calendar.Calendar
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Decode() returned error: %v", err)
		}
		if body.Summary != "Spring Timetable" {
			t.Errorf("Expected summary Spring Timetable, got %q", body.Summary)
		}
		fmt.Fprint(w, `{"id":"cal-old","summary":"Spring Timetable"}`)
	}))

	if err := client.RenameCalendar("cal-old", "Spring Timetable"); err != nil {
		t.Fatalf("RenameCalendar() returned error: %v", err)
	}
}

func TestDeleteCalendar(t *testing.T) {
	var deleted string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("Expected a DELETE, got %s", r.Method)
		}
		deleted = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.DeleteCalendar("cal-old"); err != nil {
		t.Fatalf("DeleteCalendar() returned error: %v", err)
	}
	if deleted == "" {
		t.Fatal("Expected the delete request to reach the server")
	}
}
