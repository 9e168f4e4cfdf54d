// Package sgu adapts the Saigon University student portal.
package sgu

import (
	"context"
	"encoding/json"
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
	baseURL          = "http://thongtindaotao.sgu.edu.vn"
	loginEndpoint    = "/api/auth/login"
	logoutEndpoint   = "/api/auth/logout"
	scheduleEndpoint = "/default.aspx?page=thoikhoabieu&sta=1"

	semesterSelectID = "ctl00_ContentPlaceHolder1_ctl00_ddlChonNHHK"
)

// Column layout of one timetable row. The portal renders more columns than
// the descriptor needs; only these are read.
const (
	colCode        = 0
	colName        = 1
	colCredits     = 3
	colClass       = 4
	colWeekday     = 8
	colStartPeriod = 9
	colLessonCount = 10
	colRoom        = 11
	colLecturer    = 12
	colWeekPattern = 13

	rowWidth = 14
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
			1:  "07:00:00",
			2:  "07:50:00",
			3:  "09:00:00",
			4:  "09:50:00",
			5:  "10:40:00",
			6:  "13:00:00",
			7:  "13:50:00",
			8:  "15:00:00",
			9:  "15:50:00",
			10: "16:40:00",
			11: "17:40:00",
			12: "18:30:00",
			13: "19:20:00",
		},
		Semesters: map[string]string{
			"20211": "13/09/2021",
			"20212": "14/02/2022",
			"20221": "05/09/2022",
			"20222": "06/02/2023",
			"20223": "26/06/2023",
			"20231": "04/09/2023",
		},
		LessonMinutes: 50,
	}
}

// Source is the SGU portal.
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

func (s *Source) Name() string { return "sgu" }

// ApplyProfile merges table overrides onto the compiled-in defaults.
func (s *Source) ApplyProfile(p school.Profile) { s.profile = s.profile.Merge(p) }

// Login authenticates against the portal's token endpoint and returns a
// live session. The portal answers the login form with JSON; any code other
// than 200 is a refusal.
func (s *Source) Login(ctx context.Context, username, password string) (school.Session, error) {
	if username == "" {
		return nil, &school.AuthError{Source: "sgu", Op: "login", Reason: "username is blank"}
	}

	client := portal.New()
	form := url.Values{
		"username":   {username},
		"password":   {password},
		"grant_type": {"password"},
	}

	var res struct {
		Code        json.Number `json:"code"`
		Message     string      `json:"message"`
		Name        string      `json:"name"`
		TokenType   string      `json:"token_type"`
		AccessToken string      `json:"access_token"`
	}
	if err := client.PostFormJSON(ctx, s.BaseURL+loginEndpoint, form, &res); err != nil {
		return nil, fmt.Errorf("failed to log in: %w", err)
	}
	if res.Code.String() != "200" {
		return nil, &school.AuthError{Source: "sgu", Op: "login", Reason: res.Message}
	}

	client.SetAuthorization(res.TokenType, res.AccessToken)
	log.Printf("Logged in to sgu as %s", res.Name)

	return &session{source: s, client: client}, nil
}

// Standardize maps timetable rows onto descriptors, resolving the weekday
// and slot tokens through the source tables and computing each occurrence
// window from the semester anchor.
func (s *Source) Standardize(term school.Term, rows []school.RawRecord) ([]schedule.Descriptor, error) {
	anchor, err := s.profile.SemesterAnchor(term.Semester, s.loc)
	if err != nil {
		return nil, err
	}

	descriptors := make([]schedule.Descriptor, 0, len(rows))
	for i, row := range rows {
		if len(row) < rowWidth {
			return nil, fmt.Errorf("row %d has %d cells, want at least %d", i, len(row), rowWidth)
		}

		weekdayOffset, err := s.profile.WeekdayOffset(row[colWeekday])
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i, row[colName], err)
		}
		startPeriod, err := strconv.Atoi(row[colStartPeriod])
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): malformed start period %q", i, row[colName], row[colStartPeriod])
		}
		lessonCount, err := strconv.Atoi(row[colLessonCount])
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): malformed lesson count %q", i, row[colName], row[colLessonCount])
		}
		if lessonCount < 1 {
			return nil, fmt.Errorf("row %d (%s): lesson count %d is not positive", i, row[colName], lessonCount)
		}
		slotStart, err := s.profile.SlotStart(startPeriod)
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i, row[colName], err)
		}

		from, to := schedule.Window(schedule.WindowInput{
			SemesterStart: anchor,
			WeekdayOffset: weekdayOffset,
			SlotStart:     slotStart,
			LessonCount:   lessonCount,
			WeekPattern:   row[colWeekPattern],
			LessonMinutes: s.profile.LessonMinutes,
		})

		// The class cell lists the section first and spills course
		// codes after a comma.
		section, _, _ := strings.Cut(row[colClass], ", ")

		descriptors = append(descriptors, schedule.Descriptor{
			Code:         row[colCode],
			Name:         row[colName],
			Credits:      row[colCredits],
			ClassSection: section,
			Room:         row[colRoom],
			Lecturer:     row[colLecturer],
			Weekday:      row[colWeekday],
			StartPeriod:  startPeriod,
			EndPeriod:    startPeriod + lessonCount,
			WeekPattern:  row[colWeekPattern],
			FromDate:     from,
			ToDate:       to,
		})
	}

	return descriptors, nil
}

type session struct {
	source   *Source
	client   *portal.Client
	released bool
}

// Semesters scrapes the term dropdown on the schedule page.
func (ss *session) Semesters(ctx context.Context) (*school.TermSet, error) {
	if ss.released {
		return nil, &school.AuthError{Source: "sgu", Op: "fetch", Reason: "session already released"}
	}

	doc, _, err := ss.client.Get(ctx, ss.source.BaseURL+scheduleEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch the schedule page: %w", err)
	}

	var semesters []string
	doc.Find("select#" + semesterSelectID + " option").Each(func(_ int, opt *goquery.Selection) {
		if v, ok := opt.Attr("value"); ok {
			semesters = append(semesters, v)
		}
	})
	if len(semesters) == 0 {
		return nil, fmt.Errorf("no semester options on the schedule page")
	}

	return &school.TermSet{Semesters: semesters}, nil
}

// Fetch posts the timetable form for one semester and collects the data
// rows. The portal marks them with a fixed row height.
func (ss *session) Fetch(ctx context.Context, term school.Term) ([]school.RawRecord, error) {
	if ss.released {
		return nil, &school.AuthError{Source: "sgu", Op: "fetch", Reason: "session already released"}
	}

	viewState, err := ss.viewState(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"__EVENTTARGET":   {"ctl00$ContentPlaceHolder1$ctl00$rad_ThuTiet"},
		"__EVENTARGUMENT": {""},
		"__LASTFOCUS":     {""},
		"__VIEWSTATE":     {viewState},
		"ctl00$ContentPlaceHolder1$ctl00$ddlChonNHHK": {term.Semester},
		"ctl00$ContentPlaceHolder1$ctl00$ddlLoai":     {"1"},
		"ctl00$ContentPlaceHolder1$ctl00$rad_ThuTiet": {"rad_ThuTiet"},
		"ctl00$ContentPlaceHolder1$ctl00$rad_MonHoc":  {"rad_MonHoc"},
	}

	doc, _, err := ss.client.PostForm(ctx, ss.source.BaseURL+scheduleEndpoint, form)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch the timetable: %w", err)
	}

	var rows []school.RawRecord
	doc.Find(`tr[height="22px"]`).Each(func(_ int, tr *goquery.Selection) {
		var cells school.RawRecord
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		rows = append(rows, cells)
	})

	return rows, nil
}

// Logout closes the portal session. Logging out an already released session
// is an error.
func (ss *session) Logout(ctx context.Context) error {
	if ss.released {
		return &school.AuthError{Source: "sgu", Op: "logout", Reason: "not logged in"}
	}

	var res struct {
		Code json.Number `json:"code"`
	}
	if err := ss.client.PostFormJSON(ctx, ss.source.BaseURL+logoutEndpoint, nil, &res); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	if res.Code.String() != "200" {
		sessionID := ss.client.Cookie(ss.source.BaseURL, "ASP.NET_SessionId")
		return &school.AuthError{Source: "sgu", Op: "logout", Reason: "session " + sessionID + " did not close"}
	}

	ss.released = true
	return nil
}

// viewState scrapes the __VIEWSTATE field the portal wants echoed back on
// every postback.
func (ss *session) viewState(ctx context.Context) (string, error) {
	doc, _, err := ss.client.Get(ctx, ss.source.BaseURL+scheduleEndpoint)
	if err != nil {
		return "", fmt.Errorf("failed to fetch the schedule page: %w", err)
	}

	viewState, ok := doc.Find("input#__VIEWSTATE").Attr("value")
	if !ok {
		return "", fmt.Errorf("no __VIEWSTATE field on the schedule page")
	}
	return viewState, nil
}
