package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tatianab/life-restart/internal/models"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func life(session string, age int, total float64, grade int) models.Life {
	records := make([]models.YearRecord, age+1)
	for i := range records {
		records[i] = models.YearRecord{Age: i, Content: []models.ContentItem{models.Plain("a year")}}
	}
	records[age].Terminal = true
	return models.Life{
		SessionID:  session,
		Traits:     []models.Trait{{ID: "1002", Name: "Bookworm"}},
		Allocation: models.Allocation{"CHR": 5, "INT": 5, "STR": 5, "MNY": 0, "SPR": 5},
		Records:    records,
		Summary: models.Summary{Grades: []models.Grade{
			{Metric: "HAGE", Value: float64(age), Grade: 1, Label: "Sixty"},
			{Metric: "SUM", Value: total, Grade: grade, Label: "Legendary"},
		}},
	}
}

func TestRecordAndLoadLife(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	in := life("p1", 64, 80, 3)
	id, err := db.RecordLife(ctx, in)
	if err != nil {
		t.Fatalf("RecordLife() error = %v", err)
	}
	if len(id) != 36 {
		t.Fatalf("id = %q, want a UUID", id)
	}

	out, err := db.Life(ctx, id)
	if err != nil {
		t.Fatalf("Life() error = %v", err)
	}
	if out.ID != id || out.SessionID != "p1" || out.FinalAge() != 64 {
		t.Fatalf("loaded life = id %q session %q age %d", out.ID, out.SessionID, out.FinalAge())
	}
	if out.Allocation["INT"] != 5 || out.Traits[0].Name != "Bookworm" {
		t.Fatalf("loaded allocation %v traits %v", out.Allocation, out.Traits)
	}
	if g, ok := out.Summary.Get("SUM"); !ok || g.Value != 80 || g.Grade != 3 {
		t.Fatalf("loaded SUM = %+v", g)
	}
	if !out.Records[64].Terminal || out.Records[3].Content[0].Kind != models.KindPlain {
		t.Fatal("records did not round trip")
	}

	if _, err := db.Life(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Life(missing) error = %v, want ErrNotFound", err)
	}
}

func TestBonus(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	bonus, err := db.Bonus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if bonus[MetricTimes] != 0 || bonus[MetricAchievements] != 0 {
		t.Fatalf("empty archive bonus = %v", bonus)
	}

	for _, grade := range []int{0, 3, 1, 3, 2} {
		if _, err := db.RecordLife(ctx, life("p", 10, 20, grade)); err != nil {
			t.Fatal(err)
		}
	}
	bonus, err = db.Bonus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if bonus[MetricTimes] != 5 || bonus[MetricAchievements] != 2 {
		t.Fatalf("bonus = %v, want TMS 5 CACHV 2", bonus)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	db.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	for _, s := range []string{"a", "b", "c"} {
		if _, err := db.RecordLife(ctx, life(s, 30, 40, 1)); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := db.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 || entries[0].SessionID != "c" || entries[1].SessionID != "b" {
		t.Fatalf("Recent() = %+v", entries)
	}
	if !entries[0].FinishedAt.Equal(base.Add(3*time.Minute)) || entries[0].Traits[0] != "Bookworm" {
		t.Fatalf("entry = %+v", entries[0])
	}
}

func TestOpenReusesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.RecordLife(context.Background(), life("p", 1, 2, 0)); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()
	bonus, err := db.Bonus(context.Background())
	if err != nil || bonus[MetricTimes] != 1 {
		t.Fatalf("bonus after reopen = %v, %v", bonus, err)
	}
}

func TestRecentOrdersSubsecondTimes(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	whole := time.Date(2026, 3, 1, 0, 0, 5, 0, time.UTC)
	times := []time.Time{whole, whole.Add(500 * time.Millisecond)}
	db.now = func() time.Time {
		next := times[0]
		times = times[1:]
		return next
	}

	for _, s := range []string{"older", "newer"} {
		if _, err := db.RecordLife(ctx, life(s, 30, 40, 1)); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := db.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 || entries[0].SessionID != "newer" || entries[1].SessionID != "older" {
		t.Fatalf("Recent() order = %+v, want newer first", entries)
	}
	if !entries[0].FinishedAt.Equal(whole.Add(500 * time.Millisecond)) {
		t.Errorf("FinishedAt = %v", entries[0].FinishedAt)
	}
}
