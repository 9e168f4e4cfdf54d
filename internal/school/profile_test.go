package school

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lqhoang/classcal/internal/schedule"
)

func TestProfile_SlotStart(t *testing.T) {
	p := Profile{Slots: map[int]string{1: "07:00:00", 13: "19:20:00"}}

	got, err := p.SlotStart(13)
	if err != nil {
		t.Fatalf("SlotStart() returned an error: %v", err)
	}
	want := 19*time.Hour + 20*time.Minute
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestProfile_SlotStartUnknown(t *testing.T) {
	p := Profile{Slots: map[int]string{1: "07:00:00"}}

	_, err := p.SlotStart(99)
	if err == nil {
		t.Fatal("SlotStart() should have returned an error for an unknown slot")
	}
	var lookupErr *schedule.LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("Expected a LookupError, got %T: %v", err, err)
	}
	if lookupErr.Token != "99" {
		t.Errorf("Expected the error to carry the slot token, got %q", lookupErr.Token)
	}
}

func TestProfile_WeekdayOffsetUnknown(t *testing.T) {
	p := Profile{Weekdays: map[string]int{"Hai": 0, "Ba": 1}}

	if _, err := p.WeekdayOffset("Chín"); err == nil {
		t.Fatal("WeekdayOffset() should have returned an error for an unknown token")
	}
	if got, err := p.WeekdayOffset("Ba"); err != nil || got != 1 {
		t.Errorf("Expected offset 1, got %d (err %v)", got, err)
	}
}

func TestProfile_SemesterAnchor(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		t.Fatalf("LoadLocation returned an error: %v", err)
	}
	p := Profile{Semesters: map[string]string{"20231": "04/09/2023"}}

	got, err := p.SemesterAnchor("20231", loc)
	if err != nil {
		t.Fatalf("SemesterAnchor() returned an error: %v", err)
	}
	want := time.Date(2023, 9, 4, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestProfile_SemesterAnchorMalformed(t *testing.T) {
	p := Profile{Semesters: map[string]string{"20231": "2023-09-04"}}

	if _, err := p.SemesterAnchor("20231", time.UTC); err == nil {
		t.Fatal("SemesterAnchor() should have returned an error for a non DD/MM/YYYY date")
	}
}

func TestProfile_Merge(t *testing.T) {
	base := Profile{
		Weekdays:      map[string]int{"Hai": 0},
		Slots:         map[int]string{1: "07:00:00"},
		Semesters:     map[string]string{"20231": "04/09/2023"},
		LessonMinutes: 50,
	}
	override := Profile{
		Slots:     map[int]string{1: "07:15:00", 2: "08:05:00"},
		Semesters: map[string]string{"20232": "05/02/2024"},
	}

	merged := base.Merge(override)

	if merged.Slots[1] != "07:15:00" {
		t.Errorf("Expected slot 1 to be overridden, got %q", merged.Slots[1])
	}
	if merged.Slots[2] != "08:05:00" {
		t.Errorf("Expected slot 2 to be added, got %q", merged.Slots[2])
	}
	if merged.Semesters["20231"] != "04/09/2023" {
		t.Errorf("Expected base semester to survive, got %v", merged.Semesters)
	}
	if merged.LessonMinutes != 50 {
		t.Errorf("Expected lesson minutes to stay 50, got %d", merged.LessonMinutes)
	}

	// The inputs stay untouched.
	if base.Slots[1] != "07:00:00" {
		t.Errorf("Merge() modified the base profile: %v", base.Slots)
	}
}

func TestLoadProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `sgu:
  semesters:
    "20232": "05/02/2024"
  slots:
    14: "20:10:00"
huflit:
  lesson_minutes: 45
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile returned an error: %v", err)
	}

	profiles, err := LoadProfiles(path)
	if err != nil {
		t.Fatalf("LoadProfiles() returned an error: %v", err)
	}

	if profiles["sgu"].Semesters["20232"] != "05/02/2024" {
		t.Errorf("Expected the sgu semester override, got %v", profiles["sgu"].Semesters)
	}
	if profiles["sgu"].Slots[14] != "20:10:00" {
		t.Errorf("Expected the sgu slot override, got %v", profiles["sgu"].Slots)
	}
	if profiles["huflit"].LessonMinutes != 45 {
		t.Errorf("Expected huflit lesson_minutes 45, got %d", profiles["huflit"].LessonMinutes)
	}
}

func TestLoadProfiles_MissingFile(t *testing.T) {
	if _, err := LoadProfiles(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadProfiles() should have returned an error for a missing file")
	}
}
