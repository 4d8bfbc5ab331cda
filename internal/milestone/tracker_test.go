package milestone

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/lexibloom/lexibloom/internal/database"
	"github.com/lexibloom/lexibloom/internal/model"
	"github.com/lexibloom/lexibloom/internal/store"
)

func setupTracker(t *testing.T) (*Tracker, *store.ProgressStore, *store.PlayerStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ps := store.NewProgressStore(db)
	os := store.NewOpportunityStore(db)
	return NewTracker(ps, os, slog.Default()), ps, store.NewPlayerStore(db)
}

func addPoints(t *testing.T, ps *store.ProgressStore, playerID int64, day string, points int) {
	t.Helper()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	if _, err := ps.Apply(playerID, day, model.ProgressDelta{Points: points}, now.Add(12*time.Hour), "UTC", now); err != nil {
		t.Fatalf("add points: %v", err)
	}
}

func TestSyncCreatesCrossedMilestones(t *testing.T) {
	tr, ps, players := setupTracker(t)
	alice, _ := players.Create("Alice", "UTC")
	addPoints(t, ps, alice.ID, "2024-01-15", 1240)

	created, err := tr.Sync(alice.ID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected milestones at 500 and 1000, got %d", len(created))
	}
	if created[0].Milestone != 500 || created[1].Milestone != 1000 {
		t.Errorf("milestones = %d, %d; want 500, 1000", created[0].Milestone, created[1].Milestone)
	}
}

func TestSyncIsIncremental(t *testing.T) {
	tr, ps, players := setupTracker(t)
	alice, _ := players.Create("Alice", "UTC")
	addPoints(t, ps, alice.ID, "2024-01-15", 600)

	if created, _ := tr.Sync(alice.ID); len(created) != 1 {
		t.Fatalf("expected 1 new milestone, got %d", len(created))
	}

	// Unchanged total: nothing new.
	if created, _ := tr.Sync(alice.ID); len(created) != 0 {
		t.Fatalf("repeat sync created %d milestones, want 0", len(created))
	}

	// Crossing the next threshold creates exactly the one new milestone.
	addPoints(t, ps, alice.ID, "2024-01-16", 450)
	created, err := tr.Sync(alice.ID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(created) != 1 || created[0].Milestone != 1000 {
		t.Fatalf("expected only the 1000 milestone, got %+v", created)
	}
}

func TestSyncCountsOpenRows(t *testing.T) {
	tr, ps, players := setupTracker(t)
	alice, _ := players.Create("Alice", "UTC")

	// Points from a row that is not finalized still count toward milestones.
	addPoints(t, ps, alice.ID, "2024-01-15", 500)
	rec, _ := ps.GetByPlayerDay(alice.ID, "2024-01-15")
	if rec.Finalized {
		t.Fatal("precondition: row should still be open")
	}

	created, err := tr.Sync(alice.ID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected the 500 milestone from temporary points, got %d", len(created))
	}
}

func TestClaimExactlyOnce(t *testing.T) {
	tr, ps, players := setupTracker(t)
	alice, _ := players.Create("Alice", "UTC")
	addPoints(t, ps, alice.ID, "2024-01-15", 500)
	if _, err := tr.Sync(alice.ID); err != nil {
		t.Fatalf("sync: %v", err)
	}

	claimTime := time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC)
	tr.SetNowFunc(func() time.Time { return claimTime })

	opp, err := tr.Claim(alice.ID, 500, 3)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !opp.IsUsed || opp.UsedAt == nil || !opp.UsedAt.Equal(claimTime) {
		t.Errorf("claimed opportunity state wrong: %+v", opp)
	}

	if _, err := tr.Claim(alice.ID, 500, 4); !errors.Is(err, store.ErrOpportunityUsed) {
		t.Fatalf("second claim err = %v, want ErrOpportunityUsed", err)
	}
}

func TestValidMilestone(t *testing.T) {
	for _, m := range []int{500, 1000, 5000} {
		if !ValidMilestone(m) {
			t.Errorf("ValidMilestone(%d) = false, want true", m)
		}
	}
	for _, m := range []int{0, -500, 250, 501} {
		if ValidMilestone(m) {
			t.Errorf("ValidMilestone(%d) = true, want false", m)
		}
	}
}
