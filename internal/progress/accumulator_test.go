package progress

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/lexibloom/lexibloom/internal/database"
	"github.com/lexibloom/lexibloom/internal/model"
	"github.com/lexibloom/lexibloom/internal/store"
)

func setupAccumulator(t *testing.T) (*Accumulator, *store.ProgressStore, *store.PlayerStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ps := store.NewProgressStore(db)
	players := store.NewPlayerStore(db)
	return NewAccumulator(ps, players, slog.Default()), ps, players
}

func TestSubmitValidation(t *testing.T) {
	a, _, players := setupAccumulator(t)
	alice, _ := players.Create("Alice", "UTC")

	cases := []struct {
		name  string
		delta model.ProgressDelta
	}{
		{"negative points", model.ProgressDelta{Points: -1}},
		{"negative questions", model.ProgressDelta{Questions: -1}},
		{"negative correct", model.ProgressDelta{Correct: -1}},
		{"correct exceeds questions", model.ProgressDelta{Questions: 3, Correct: 4}},
		{"negative level", model.ProgressDelta{Level: -2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Submit(alice.ID, tc.delta, "UTC")
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestSubmitCreatesDayRecord(t *testing.T) {
	a, _, players := setupAccumulator(t)
	alice, _ := players.Create("Alice", "UTC")

	// 2024-01-15 23:50 in New York.
	a.SetNowFunc(func() time.Time {
		return time.Date(2024, 1, 16, 4, 50, 0, 0, time.UTC)
	})

	rec, err := a.Submit(alice.ID, model.ProgressDelta{Points: 30, Questions: 10, Correct: 9, Level: 1}, "America/New_York")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if rec.Day != "2024-01-15" {
		t.Errorf("day = %q, want 2024-01-15 (player-local date)", rec.Day)
	}
	// Next local midnight: 2024-01-16 00:00 EST = 05:00 UTC.
	want := time.Date(2024, 1, 16, 5, 0, 0, 0, time.UTC)
	if !rec.FinalizeAt.Equal(want) {
		t.Errorf("finalize_at = %v, want %v", rec.FinalizeAt, want)
	}
}

func TestSubmitAcrossLocalMidnight(t *testing.T) {
	a, ps, players := setupAccumulator(t)
	alice, _ := players.Create("Alice", "UTC")

	// 23:50 local on the 15th, then 00:05 local on the 16th.
	a.SetNowFunc(func() time.Time {
		return time.Date(2024, 1, 16, 4, 50, 0, 0, time.UTC)
	})
	first, err := a.Submit(alice.ID, model.ProgressDelta{Points: 30}, "America/New_York")
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	a.SetNowFunc(func() time.Time {
		return time.Date(2024, 1, 16, 5, 5, 0, 0, time.UTC)
	})
	second, err := a.Submit(alice.ID, model.ProgressDelta{Points: 20}, "America/New_York")
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	if first.Day == second.Day {
		t.Fatalf("both submissions landed on %q, want separate local days", first.Day)
	}
	if first.PointsEarned != 30 {
		t.Errorf("first day points = %d, want 30", first.PointsEarned)
	}
	gotSecond, _ := ps.GetByPlayerDay(alice.ID, second.Day)
	if gotSecond.PointsEarned != 20 {
		t.Errorf("second day points = %d, want 20", gotSecond.PointsEarned)
	}
	if !second.FinalizeAt.After(first.FinalizeAt) {
		t.Errorf("second finalize_at %v should be after first %v", second.FinalizeAt, first.FinalizeAt)
	}
}

func TestSubmitZoneFallbackToOpenRow(t *testing.T) {
	a, _, players := setupAccumulator(t)
	alice, _ := players.Create("Alice", "UTC")

	a.SetNowFunc(func() time.Time {
		return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	})

	first, err := a.Submit(alice.ID, model.ProgressDelta{Points: 10}, "Asia/Tokyo")
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// Client omits the zone on the follow-up; the open row's zone is reused.
	second, err := a.Submit(alice.ID, model.ProgressDelta{Points: 5}, "")
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.Day != first.Day {
		t.Errorf("days differ (%q vs %q); omitted zone should reuse the open row's zone", second.Day, first.Day)
	}
	if second.UserTimeZone != "Asia/Tokyo" {
		t.Errorf("zone = %q, want Asia/Tokyo", second.UserTimeZone)
	}
	if second.PointsEarned != 15 {
		t.Errorf("points = %d, want 15", second.PointsEarned)
	}
}

func TestSubmitZoneFallbackToPlayerPreference(t *testing.T) {
	a, _, players := setupAccumulator(t)
	alice, _ := players.Create("Alice", "Europe/Berlin")

	a.SetNowFunc(func() time.Time {
		return time.Date(2024, 1, 15, 23, 30, 0, 0, time.UTC)
	})

	rec, err := a.Submit(alice.ID, model.ProgressDelta{Points: 10}, "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// 23:30 UTC is 00:30 on the 16th in Berlin.
	if rec.Day != "2024-01-16" {
		t.Errorf("day = %q, want 2024-01-16 (player preference zone)", rec.Day)
	}
	if rec.UserTimeZone != "Europe/Berlin" {
		t.Errorf("zone = %q, want Europe/Berlin", rec.UserTimeZone)
	}
}

func TestSubmitUnknownZoneFallsBackToDefault(t *testing.T) {
	a, _, players := setupAccumulator(t)
	alice, _ := players.Create("Alice", "UTC")

	a.SetNowFunc(func() time.Time {
		return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	})

	rec, err := a.Submit(alice.ID, model.ProgressDelta{Points: 10}, "Mars/Olympus_Mons")
	if err != nil {
		t.Fatalf("submit with unknown zone should not fail: %v", err)
	}
	if rec.Day != "2024-01-15" {
		t.Errorf("day = %q, want 2024-01-15", rec.Day)
	}
	if rec.UserTimeZone != "UTC" {
		t.Errorf("zone = %q, want UTC fallback", rec.UserTimeZone)
	}
}

func TestSubmitAfterFinalizeReturnsSealedRecord(t *testing.T) {
	a, ps, players := setupAccumulator(t)
	alice, _ := players.Create("Alice", "UTC")

	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	a.SetNowFunc(func() time.Time { return now })

	if _, err := a.Submit(alice.ID, model.ProgressDelta{Points: 30}, "UTC"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// The day rolls over and the sweep finalizes it before a late retry lands.
	late := time.Date(2024, 1, 16, 0, 5, 0, 0, time.UTC)
	if _, err := ps.FinalizeDue(late); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	a.SetNowFunc(func() time.Time { return now.Add(time.Minute) })
	rec, err := a.Submit(alice.ID, model.ProgressDelta{Points: 20}, "UTC")
	if !errors.Is(err, store.ErrDayFinalized) {
		t.Fatalf("err = %v, want ErrDayFinalized", err)
	}
	if rec == nil || rec.PointsEarned != 30 {
		t.Errorf("sealed record should come back unchanged with the error, got %+v", rec)
	}
}
