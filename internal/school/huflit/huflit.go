// Package huflit adapts the HUFLIT student portal.
package huflit

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lqhoang/classcal/internal/portal"
	"github.com/lqhoang/classcal/internal/schedule"
	"github.com/lqhoang/classcal/internal/school"
)

const (
	baseURL          = "https://portal.huflit.edu.vn"
	homeEndpoint     = "/Home"
	loginEndpoint    = "/Login"
	logoutEndpoint   = "/Login/Logout"
	scheduleEndpoint = "/Home/Schedules"
	scheduleAPI      = "/Home/DrawingStudentSchedule_Perior"

	dateLayout = "02/01/2006"
)

// Column layout of one timetable row. Unlike SGU the portal lists explicit
// period and date ranges instead of lookup tokens.
const (
	colCode      = 1
	colName      = 2
	colCredits   = 3
	colClass     = 4
	colWeekday   = 5
	colPeriods   = 6
	colRoom      = 7
	colLecturer  = 8
	colDateRange = 9

	rowWidth = 10
)

func defaultProfile() school.Profile {
	return school.Profile{
		Weekdays: map[string]int{
			"Hai": 0,
			"Ba":  1,
			"Tư":  2,
			"Năm": 3,
			"Sáu": 4,
		},
		Slots: map[int]string{
			1:  "06:45:00",
			2:  "07:35:00",
			3:  "08:25:00",
			4:  "09:30:00",
			5:  "10:25:00",
			6:  "11:10:00",
			7:  "12:45:00",
			8:  "13:35:00",
			9:  "14:25:00",
			10: "15:30:00",
			11: "16:25:00",
			12: "17:10:00",
			13: "18:15:00",
			14: "19:05:00",
			15: "19:55:00",
		},
		LessonMinutes: 50,
	}
}

// Source is the HUFLIT portal.
type Source struct {
	// BaseURL points at the portal. Tests override it.
	BaseURL string

	profile school.Profile
	loc     *time.Location
}

// New builds the source with its compiled-in lookup tables. Descriptor
// timestamps come out in loc.
func New(loc *time.Location) *Source {
	return &Source{BaseURL: baseURL, profile: defaultProfile(), loc: loc}
}

func (s *Source) Name() string { return "huflit" }

// ApplyProfile merges table overrides onto the compiled-in defaults.
func (s *Source) ApplyProfile(p school.Profile) { s.profile = s.profile.Merge(p) }

// Login posts the credential form. The portal redirects to the home page on
// success and re-renders the login form otherwise.
func (s *Source) Login(ctx context.Context, username, password string) (school.Session, error) {
	if username == "" {
		return nil, &school.AuthError{Source: "huflit", Op: "login", Reason: "username is blank"}
	}

	client := portal.New()
	form := url.Values{
		"txtTaiKhoan": {username},
		"txtMatKhau":  {password},
	}
	_, finalURL, err := client.PostForm(ctx, s.BaseURL+loginEndpoint, form)
	if err != nil {
		return nil, fmt.Errorf("failed to log in: %w", err)
	}
	if finalURL.Path == loginEndpoint {
		return nil, &school.AuthError{Source: "huflit", Op: "login", Reason: "the portal rejected the credentials"}
	}

	log.Printf("Logged in to huflit as %s", username)

	return &session{source: s, client: client}, nil
}

// Standardize maps timetable rows onto descriptors. The occurrence window
// comes straight from the row's date range: the calculator sees the range
// start as the anchor and one pattern digit per week of the range.
func (s *Source) Standardize(_ school.Term, rows []school.RawRecord) ([]schedule.Descriptor, error) {
	descriptors := make([]schedule.Descriptor, 0, len(rows))
	for i, row := range rows {
		if len(row) < rowWidth {
			return nil, fmt.Errorf("row %d has %d cells, want at least %d", i, len(row), rowWidth)
		}

		if _, err := s.profile.WeekdayOffset(row[colWeekday]); err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i, row[colName], err)
		}

		startPeriod, endPeriod, err := parsePeriods(row[colPeriods])
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i, row[colName], err)
		}
		rangeStart, rangeEnd, err := parseDateRange(row[colDateRange], s.loc)
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i, row[colName], err)
		}

		slotStart, err := s.profile.SlotStart(startPeriod)
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i, row[colName], err)
		}

		weeks := int(rangeEnd.Sub(rangeStart)/(7*24*time.Hour)) + 1
		pattern := strings.Repeat("1", weeks)

		from, to := schedule.Window(schedule.WindowInput{
			SemesterStart: rangeStart,
			SlotStart:     slotStart,
			LessonCount:   endPeriod - startPeriod,
			WeekPattern:   pattern,
			LessonMinutes: s.profile.LessonMinutes,
		})

		descriptors = append(descriptors, schedule.Descriptor{
			Code:         row[colCode],
			Name:         row[colName],
			Credits:      row[colCredits],
			ClassSection: row[colClass],
			Room:         row[colRoom],
			Lecturer:     row[colLecturer],
			Weekday:      row[colWeekday],
			StartPeriod:  startPeriod,
			EndPeriod:    endPeriod,
			WeekPattern:  pattern,
			FromDate:     from,
			ToDate:       to,
		})
	}

	return descriptors, nil
}

// parsePeriods splits a "start - end" period cell.
func parsePeriods(text string) (start, end int, err error) {
	startText, endText, ok := strings.Cut(text, " - ")
	if !ok {
		return 0, 0, fmt.Errorf("malformed period range %q", text)
	}
	start, err = strconv.Atoi(strings.TrimSpace(startText))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed period range %q", text)
	}
	end, err = strconv.Atoi(strings.TrimSpace(endText))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed period range %q", text)
	}
	if end <= start {
		return 0, 0, fmt.Errorf("period range %q does not advance", text)
	}
	return start, end, nil
}

// parseDateRange splits a "(dd/mm/yyyy - dd/mm/yyyy)" cell.
func parseDateRange(text string, loc *time.Location) (start, end time.Time, err error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(text, "("), ")")
	startText, endText, ok := strings.Cut(trimmed, " - ")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("malformed date range %q", text)
	}
	start, err = time.ParseInLocation(dateLayout, strings.TrimSpace(startText), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("malformed date range %q: %w", text, err)
	}
	end, err = time.ParseInLocation(dateLayout, strings.TrimSpace(endText), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("malformed date range %q: %w", text, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("date range %q ends before it starts", text)
	}
	return start, end, nil
}

type session struct {
	source   *Source
	client   *portal.Client
	released bool
}

// Semesters scrapes the year and term dropdowns on the schedule page.
func (ss *session) Semesters(ctx context.Context) (*school.TermSet, error) {
	if ss.released {
		return nil, &school.AuthError{Source: "huflit", Op: "fetch", Reason: "session already released"}
	}

	doc, _, err := ss.client.Get(ctx, ss.source.BaseURL+scheduleEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch the schedule page: %w", err)
	}

	terms := &school.TermSet{}
	doc.Find("select#TermID option").Each(func(_ int, opt *goquery.Selection) {
		if v, ok := opt.Attr("value"); ok {
			terms.Semesters = append(terms.Semesters, v)
		}
	})
	doc.Find("select#YearStudy option").Each(func(_ int, opt *goquery.Selection) {
		if v, ok := opt.Attr("value"); ok {
			terms.Years = append(terms.Years, v)
		}
	})
	if len(terms.Semesters) == 0 || len(terms.Years) == 0 {
		return nil, fmt.Errorf("no term options on the schedule page")
	}

	return terms, nil
}

// Fetch pulls the rendered timetable fragment for one term. Data rows carry
// a full set of cells; a lone single-cell row is the portal's "no schedule
// yet" notice.
func (ss *session) Fetch(ctx context.Context, term school.Term) ([]school.RawRecord, error) {
	if ss.released {
		return nil, &school.AuthError{Source: "huflit", Op: "fetch", Reason: "session already released"}
	}

	query := url.Values{
		"YearStudy": {term.Year},
		"TermID":    {term.Semester},
	}
	doc, _, err := ss.client.Get(ctx, ss.source.BaseURL+scheduleAPI+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch the timetable: %w", err)
	}

	var rows []school.RawRecord
	var notice string
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells school.RawRecord
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		switch {
		case len(cells) >= rowWidth:
			rows = append(rows, cells)
		case len(cells) == 1 && cells[0] != "":
			notice = cells[0]
		}
	})
	if len(rows) == 0 && notice != "" {
		log.Printf("huflit: %s", notice)
	}

	return rows, nil
}

// Logout releases the portal session and confirms the home page no longer
// answers without a login.
func (ss *session) Logout(ctx context.Context) error {
	if ss.released {
		return &school.AuthError{Source: "huflit", Op: "logout", Reason: "not logged in"}
	}

	if _, _, err := ss.client.Get(ctx, ss.source.BaseURL+logoutEndpoint); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	_, finalURL, err := ss.client.Get(ctx, ss.source.BaseURL+homeEndpoint)
	if err != nil {
		return fmt.Errorf("failed to verify the logout: %w", err)
	}
	if finalURL.Path == homeEndpoint {
		sessionID := ss.client.Cookie(ss.source.BaseURL, "ASP.NET_SessionId")
		return &school.AuthError{Source: "huflit", Op: "logout", Reason: "session " + sessionID + " is still alive"}
	}

	ss.released = true
	return nil
}
