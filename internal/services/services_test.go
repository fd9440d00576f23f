package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/markdave123-py/guardian/internal/apperr"
	"github.com/markdave123-py/guardian/internal/config"
	db "github.com/markdave123-py/guardian/internal/core/database"
	"github.com/markdave123-py/guardian/internal/logger"
	"github.com/markdave123-py/guardian/internal/models"
)

func intp(v int) *int { return &v }

func newGateway(t *testing.T, mode string) *db.Gateway {
	t.Helper()
	cfg := &config.Config{}
	if mode == db.ModeSQLite {
		cfg.DatabaseURL = "sqlite:" + filepath.Join(t.TempDir(), "svc.db")
	}
	store, err := db.NewStore(context.Background(), cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if store.Mode() != mode {
		t.Fatalf("mode: want=%s got=%s", mode, store.Mode())
	}
	return db.NewGateway(store, logger.NewNop())
}

var modes = []string{db.ModeMemory, db.ModeSQLite}

func input(userID string, a, e int) models.RatingInput {
	return models.RatingInput{
		UserID:          userID,
		Username:        "name-" + userID,
		StoryExcerpt:    "story of " + userID,
		Authenticity:    intp(a),
		EmotionalImpact: intp(e),
	}
}

func TestCreateThenGet(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode, func(t *testing.T) {
			ctx := context.Background()
			svc := NewSessionService(newGateway(t, mode), logger.NewNop())

			s, saved := svc.CreateSession(ctx, "Alice")
			if !saved {
				t.Fatalf("session not saved")
			}
			got := svc.GetSession(ctx, s.ID)
			if got == nil {
				t.Fatalf("session not found")
			}
			if got.Username != "Alice" || got.IsCompleted || got.EndTime != nil {
				t.Fatalf("unexpected session: %+v", got)
			}

			anon, _ := svc.CreateSession(ctx, "   ")
			if anon.Username != models.AnonymousUsername {
				t.Fatalf("default username: got=%q", anon.Username)
			}
			if anon.ID == s.ID {
				t.Fatalf("ids must be unique")
			}
		})
	}
}

func TestUpdateThenGetAndNoReopen(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode, func(t *testing.T) {
			ctx := context.Background()
			gw := newGateway(t, mode)
			svc := NewSessionService(gw, logger.NewNop())
			s, _ := svc.CreateSession(ctx, "Alice")

			done := true
			end := int64(1_700_000_123_000)
			r := models.Rating{
				UserID: s.ID, Username: "Alice", StoryExcerpt: "It rained.",
				Authenticity: 7, EmotionalImpact: 9, Total: 16, Worthy: models.WorthyYes, Timestamp: end,
			}
			updated, err := svc.UpdateSession(ctx, s.ID, models.SessionPatch{IsCompleted: &done, EndTime: &end, Rating: &r})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if updated == nil || !updated.IsCompleted || *updated.EndTime != end || *updated.Rating != r {
				t.Fatalf("updated mismatch: %+v", updated)
			}

			got := svc.GetSession(ctx, s.ID)
			if !got.IsCompleted || *got.EndTime != end || *got.Rating != r {
				t.Fatalf("stored mismatch: %+v", got)
			}

			reopen := false
			_, err = svc.UpdateSession(ctx, s.ID, models.SessionPatch{IsCompleted: &reopen})
			if !apperr.Is(err, apperr.KindConflict) {
				t.Fatalf("reopen: want conflict got=%v", err)
			}
			if got := svc.GetSession(ctx, s.ID); !got.IsCompleted {
				t.Fatalf("session was reopened")
			}
		})
	}
}

func TestUpdateSessionValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(newGateway(t, db.ModeMemory), logger.NewNop())
	s, _ := svc.CreateSession(ctx, "Bob")

	if _, err := svc.UpdateSession(ctx, "", models.SessionPatch{}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("missing id: got=%v", err)
	}
	if _, err := svc.UpdateSession(ctx, s.ID, models.SessionPatch{}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("empty patch: got=%v", err)
	}
	end := int64(5)
	if _, err := svc.UpdateSession(ctx, s.ID, models.SessionPatch{EndTime: &end}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("endTime without completion: got=%v", err)
	}
	name := "Robert"
	if _, err := svc.UpdateSession(ctx, "missing", models.SessionPatch{Username: &name}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("missing session: got=%v", err)
	}

	done := true
	got, err := svc.UpdateSession(ctx, s.ID, models.SessionPatch{IsCompleted: &done})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.EndTime == nil || *got.EndTime <= 0 {
		t.Fatalf("completion must stamp endTime: %+v", got)
	}
}

func TestUpdateSessionNormalizesAttachedRating(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(newGateway(t, db.ModeMemory), logger.NewNop())
	done := true

	s, _ := svc.CreateSession(ctx, "Gil")
	r := models.Rating{
		UserID: s.ID, Username: "Gil", StoryExcerpt: "The boat sank.",
		Authenticity: 6, EmotionalImpact: 7, Total: 13, Worthy: models.WorthyYes,
	}
	got, err := svc.UpdateSession(ctx, s.ID, models.SessionPatch{IsCompleted: &done, Rating: &r})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Rating.Worthy != models.WorthyMaybe {
		t.Fatalf("worthy should follow total 13: %+v", got.Rating)
	}
	if got.Rating.Timestamp <= 0 {
		t.Fatalf("zero timestamp should be stamped: %+v", got.Rating)
	}
	if got.Rating.Total != 13 || got.Rating.Authenticity != 6 || got.Rating.EmotionalImpact != 7 {
		t.Fatalf("scores must be kept as given: %+v", got.Rating)
	}

	bad, _ := svc.CreateSession(ctx, "Hal")
	r.UserID, r.Total = bad.ID, 19
	if _, err := svc.UpdateSession(ctx, bad.ID, models.SessionPatch{IsCompleted: &done, Rating: &r}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("inconsistent total: want validation got=%v", err)
	}
	if stored := svc.GetSession(ctx, bad.ID); stored.IsCompleted {
		t.Fatalf("rejected patch must not complete the session")
	}
}

func TestAddEntryMaxMergeEitherOrder(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode, func(t *testing.T) {
			ctx := context.Background()
			svc := NewLeaderboardService(newGateway(t, mode), logger.NewNop(), 10, 100)

			low, high := input("u", 3, 4), input("u", 8, 9)
			high.Username = "winner"
			for _, order := range [][]models.RatingInput{{low, high}, {high, low}} {
				user := "u-" + order[0].Username
				for _, in := range order {
					in.UserID = user
					if _, err := svc.AddEntry(ctx, in); err != nil {
						t.Fatalf("add: %v", err)
					}
				}
				got := svc.GetUserEntry(ctx, user, 10)
				if got == nil || got.Total != 17 || got.Username != "winner" || got.Worthy != models.WorthyYes {
					t.Fatalf("order %s: want winner/17 got=%+v", order[0].Username, got)
				}
			}
		})
	}
}

func TestGetLeaderboardRanks(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode, func(t *testing.T) {
			ctx := context.Background()
			svc := NewLeaderboardService(newGateway(t, mode), logger.NewNop(), 3, 5)

			if got := svc.GetLeaderboard(ctx, 10); got == nil || len(got) != 0 {
				t.Fatalf("empty board should be an empty slice: %v", got)
			}

			scores := [][2]int{{1, 1}, {9, 9}, {5, 5}, {7, 3}, {10, 10}, {0, 0}, {6, 6}}
			for i, sc := range scores {
				if _, err := svc.AddEntry(ctx, input(string(rune('a'+i)), sc[0], sc[1])); err != nil {
					t.Fatalf("add: %v", err)
				}
			}

			for _, limit := range []int{1, 4, 5, 50, 0} {
				page := svc.GetLeaderboard(ctx, limit)
				want := limit
				switch {
				case limit <= 0:
					want = 3
				case limit > 5:
					want = 5
				}
				if len(page) != want {
					t.Fatalf("limit %d: want %d entries got %d", limit, want, len(page))
				}
				for i, e := range page {
					if e.Rank != i+1 {
						t.Fatalf("limit %d: rank at %d is %d", limit, i, e.Rank)
					}
					if i > 0 && page[i-1].Total < e.Total {
						t.Fatalf("limit %d: not sorted at %d", limit, i)
					}
				}
			}

			// c (10) and d (10) tie; c was inserted first.
			page := svc.GetLeaderboard(ctx, 5)
			if page[0].UserID != "e" || page[3].UserID != "c" || page[4].UserID != "d" {
				t.Fatalf("unexpected order: %+v", page)
			}
			if svc.GetUserEntry(ctx, "a", 5) != nil {
				t.Fatalf("entry outside the page must not be returned")
			}
			if e := svc.GetUserEntry(ctx, "d", 5); e == nil || e.Rank != 5 {
				t.Fatalf("user entry rank: %+v", e)
			}
		})
	}
}

func TestAddEntryWorthyBoundaries(t *testing.T) {
	ctx := context.Background()
	svc := NewLeaderboardService(newGateway(t, db.ModeMemory), logger.NewNop(), 10, 100)

	cases := []struct {
		a, e int
		want models.Worthy
	}{
		{7, 9, models.WorthyYes},
		{8, 8, models.WorthyYes},
		{8, 7, models.WorthyMaybe},
		{7, 7, models.WorthyMaybe},
		{6, 6, models.WorthyMaybe},
		{6, 5, models.WorthyNo},
		{2, 3, models.WorthyNo},
	}
	for i, tc := range cases {
		in := input(string(rune('a'+i)), tc.a, tc.e)
		in.Worthy = models.WorthyNo
		r, err := svc.AddEntry(ctx, in)
		if err != nil {
			t.Fatalf("add %d+%d: %v", tc.a, tc.e, err)
		}
		if r.Worthy != tc.want {
			t.Fatalf("%d+%d: want=%s got=%s", tc.a, tc.e, tc.want, r.Worthy)
		}
	}
}

func TestAddEntryValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewLeaderboardService(newGateway(t, db.ModeMemory), logger.NewNop(), 10, 100)

	bad := map[string]models.RatingInput{
		"no user":       {Username: "x", StoryExcerpt: "y", Authenticity: intp(1), EmotionalImpact: intp(1)},
		"no username":   {UserID: "u", StoryExcerpt: "y", Authenticity: intp(1), EmotionalImpact: intp(1)},
		"no excerpt":    {UserID: "u", Username: "x", Authenticity: intp(1), EmotionalImpact: intp(1)},
		"no scores":     {UserID: "u", Username: "x", StoryExcerpt: "y"},
		"axis too high": {UserID: "u", Username: "x", StoryExcerpt: "y", Authenticity: intp(11), EmotionalImpact: intp(1)},
		"negative":      {UserID: "u", Username: "x", StoryExcerpt: "y", Authenticity: intp(1), EmotionalImpact: intp(-1)},
		"total drift":   {UserID: "u", Username: "x", StoryExcerpt: "y", Authenticity: intp(1), EmotionalImpact: intp(1), Total: intp(5)},
		"bad worthy":    {UserID: "u", Username: "x", StoryExcerpt: "y", Authenticity: intp(1), EmotionalImpact: intp(1), Worthy: "PERHAPS"},
	}
	for name, in := range bad {
		if _, err := svc.AddEntry(ctx, in); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("%s: want validation error got=%v", name, err)
		}
	}
	if got := svc.GetLeaderboard(ctx, 10); len(got) != 0 {
		t.Fatalf("rejected input must not be stored: %+v", got)
	}

	ok := input("u", 4, 4)
	r, err := svc.AddEntry(ctx, ok)
	if err != nil {
		t.Fatalf("valid add: %v", err)
	}
	if r.Total != 8 || r.Timestamp <= 0 {
		t.Fatalf("defaults not applied: %+v", r)
	}
}

func TestAddEntryConcurrentSameUser(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode, func(t *testing.T) {
			ctx := context.Background()
			svc := NewLeaderboardService(newGateway(t, mode), logger.NewNop(), 10, 100)

			var wg sync.WaitGroup
			for a := 0; a <= 10; a++ {
				wg.Add(1)
				go func(a int) {
					defer wg.Done()
					_, _ = svc.AddEntry(ctx, input("race", a, 10-a/2))
				}(a)
			}
			wg.Wait()

			got := svc.GetUserEntry(ctx, "race", 10)
			if got == nil || got.Total != 15 {
				t.Fatalf("want max total 15 got=%+v", got)
			}
		})
	}
}

// listCountingStore records how often the ranked page is read.
type listCountingStore struct {
	*db.MemoryStore
	lists int
}

func (c *listCountingStore) ListEntries(ctx context.Context, limit int) ([]models.Rating, error) {
	c.lists++
	return c.MemoryStore.ListEntries(ctx, limit)
}

func TestGetUserEntrySkipsPageForUnknownUser(t *testing.T) {
	ctx := context.Background()
	store := &listCountingStore{MemoryStore: db.NewMemoryStore()}
	svc := NewLeaderboardService(db.NewGateway(store, logger.NewNop()), logger.NewNop(), 10, 100)

	if _, err := svc.AddEntry(ctx, input("known", 6, 6)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := svc.GetUserEntry(ctx, "stranger", 10); got != nil {
		t.Fatalf("unknown user: want nil got=%+v", got)
	}
	if store.lists != 0 {
		t.Fatalf("unknown user should not read the page, lists=%d", store.lists)
	}
	if got := svc.GetUserEntry(ctx, "known", 10); got == nil || got.Rank != 1 {
		t.Fatalf("known user: %+v", got)
	}
	if store.lists != 1 {
		t.Fatalf("known user reads the page once, lists=%d", store.lists)
	}
}

// failingStore breaks every write and read.
type failingStore struct{ db.MemoryStore }

var errBroken = errors.New("broken")

func (*failingStore) Mode() string { return "failing" }
func (*failingStore) UpsertIfBetter(context.Context, *models.Rating) (bool, error) {
	return false, errBroken
}
func (*failingStore) InsertSession(context.Context, *models.Session) error { return errBroken }
func (*failingStore) ListEntries(context.Context, int) ([]models.Rating, error) {
	return nil, errBroken
}

func TestServicesDegradeOnStorageFailure(t *testing.T) {
	ctx := context.Background()
	gw := db.NewGateway(&failingStore{}, logger.NewNop())

	sessions := NewSessionService(gw, logger.NewNop())
	s, saved := sessions.CreateSession(ctx, "Carol")
	if saved || s.ID == "" || s.Username != "Carol" {
		t.Fatalf("unsaved session should still be usable: saved=%v %+v", saved, s)
	}

	board := NewLeaderboardService(gw, logger.NewNop(), 10, 100)
	if _, err := board.AddEntry(ctx, input("u", 1, 1)); !apperr.Is(err, apperr.KindStorage) {
		t.Fatalf("want storage error got=%v", err)
	}
	if got := board.GetLeaderboard(ctx, 10); got == nil || len(got) != 0 {
		t.Fatalf("want empty board got=%v", got)
	}
}
