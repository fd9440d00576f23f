package db

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/markdave123-py/guardian/internal/core"
	"github.com/markdave123-py/guardian/internal/models"
)

type storeFactory func(t *testing.T) core.Store

func newMemory(t *testing.T) core.Store {
	t.Helper()
	return NewMemoryStore()
}

func newSQLite(t *testing.T) core.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guardian.db")
	store, err := openSQLStore(context.Background(), sqliteDialect, path)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var factories = map[string]storeFactory{
	ModeMemory: newMemory,
	ModeSQLite: newSQLite,
}

func rating(userID string, a, e int) *models.Rating {
	return &models.Rating{
		UserID:          userID,
		Username:        "user-" + userID,
		StoryExcerpt:    "excerpt " + userID,
		Authenticity:    a,
		EmotionalImpact: e,
		Total:           a + e,
		Worthy:          models.WorthyFor(a + e),
		Timestamp:       1700000000000,
	}
}

func TestStoreSessionLifecycle(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			s := &models.Session{ID: "s1", Username: "Alice", StartTime: 1000}
			if err := store.InsertSession(ctx, s); err != nil {
				t.Fatalf("insert: %v", err)
			}

			got, err := store.GetSession(ctx, "s1")
			if err != nil || got == nil {
				t.Fatalf("get: session=%v err=%v", got, err)
			}
			if got.Username != "Alice" || got.IsCompleted || got.EndTime != nil || got.Rating != nil {
				t.Fatalf("fresh session mismatch: %+v", got)
			}

			done := true
			end := int64(2000)
			r := rating("s1", 8, 9)
			if err := store.UpdateSession(ctx, "s1", models.SessionPatch{IsCompleted: &done, EndTime: &end, Rating: r}); err != nil {
				t.Fatalf("complete: %v", err)
			}

			got, _ = store.GetSession(ctx, "s1")
			if !got.IsCompleted || got.EndTime == nil || *got.EndTime != 2000 || got.Rating == nil || *got.Rating != *r {
				t.Fatalf("completed session mismatch: %+v", got)
			}

			reopen := false
			err = store.UpdateSession(ctx, "s1", models.SessionPatch{IsCompleted: &reopen})
			if !errors.Is(err, ErrSessionCompleted) {
				t.Fatalf("reopen: want ErrSessionCompleted got=%v", err)
			}
			got, _ = store.GetSession(ctx, "s1")
			if !got.IsCompleted || got.Rating == nil {
				t.Fatalf("rejected update must leave the record intact: %+v", got)
			}
		})
	}
}

func TestStoreSessionMissing(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			got, err := store.GetSession(ctx, "nope")
			if err != nil || got != nil {
				t.Fatalf("missing get: session=%v err=%v", got, err)
			}
			name := "Bob"
			err = store.UpdateSession(ctx, "nope", models.SessionPatch{Username: &name})
			if !errors.Is(err, ErrSessionNotFound) {
				t.Fatalf("missing update: want ErrSessionNotFound got=%v", err)
			}
		})
	}
}

func TestStoreUpdateLeavesUnsetFields(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			_ = store.InsertSession(ctx, &models.Session{ID: "s2", Username: "Alice", StartTime: 5})

			rename := "Alicia"
			if err := store.UpdateSession(ctx, "s2", models.SessionPatch{Username: &rename}); err != nil {
				t.Fatalf("rename: %v", err)
			}
			got, _ := store.GetSession(ctx, "s2")
			if got.Username != "Alicia" || got.StartTime != 5 || got.IsCompleted {
				t.Fatalf("partial update mismatch: %+v", got)
			}
		})
	}
}

func TestStoreUpsertIfBetter(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			applied, err := store.UpsertIfBetter(ctx, rating("u1", 5, 5))
			if err != nil || !applied {
				t.Fatalf("first insert: applied=%v err=%v", applied, err)
			}

			lower := rating("u1", 4, 4)
			lower.Username = "should-not-win"
			if applied, _ := store.UpsertIfBetter(ctx, lower); applied {
				t.Fatalf("lower total must not apply")
			}

			equal := rating("u1", 6, 4)
			equal.Username = "equal-should-not-win"
			if applied, _ := store.UpsertIfBetter(ctx, equal); applied {
				t.Fatalf("equal total must not apply")
			}

			higher := rating("u1", 9, 9)
			higher.Username = "winner"
			if applied, _ := store.UpsertIfBetter(ctx, higher); !applied {
				t.Fatalf("higher total must apply")
			}

			got, err := store.GetEntry(ctx, "u1")
			if err != nil || got == nil {
				t.Fatalf("get entry: %v %v", got, err)
			}
			if *got != *higher {
				t.Fatalf("entry: want=%+v got=%+v", *higher, *got)
			}
		})
	}
}

func TestStoreListEntriesOrder(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			_, _ = store.UpsertIfBetter(ctx, rating("a", 3, 3)) // 6
			_, _ = store.UpsertIfBetter(ctx, rating("b", 8, 8)) // 16
			_, _ = store.UpsertIfBetter(ctx, rating("c", 5, 5)) // 10
			_, _ = store.UpsertIfBetter(ctx, rating("d", 4, 6)) // 10, inserted after c
			_, _ = store.UpsertIfBetter(ctx, rating("a", 9, 9)) // a improves to 18

			all, err := store.ListEntries(ctx, 10)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			want := []string{"a", "b", "c", "d"}
			if len(all) != len(want) {
				t.Fatalf("len: want=%d got=%d", len(want), len(all))
			}
			for i, id := range want {
				if all[i].UserID != id {
					t.Fatalf("position %d: want=%s got=%s", i, id, all[i].UserID)
				}
			}

			top, _ := store.ListEntries(ctx, 2)
			if len(top) != 2 || top[0].UserID != "a" || top[1].UserID != "b" {
				t.Fatalf("top 2 mismatch: %+v", top)
			}
		})
	}
}

func TestStoreListEntriesEmpty(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			got, err := factory(t).ListEntries(context.Background(), 10)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 0 {
				t.Fatalf("want empty got=%d", len(got))
			}
		})
	}
}

func TestStoreConcurrentUpsertKeepsMax(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			var wg sync.WaitGroup
			for i := 0; i <= 10; i++ {
				for j := 0; j <= 10; j += 5 {
					wg.Add(1)
					go func(a, e int) {
						defer wg.Done()
						if _, err := store.UpsertIfBetter(ctx, rating("racer", a, e)); err != nil {
							t.Errorf("upsert %d/%d: %v", a, e, err)
						}
					}(i, j)
				}
			}
			wg.Wait()

			got, _ := store.GetEntry(ctx, "racer")
			if got == nil || got.Total != 20 {
				t.Fatalf("max total: want=20 got=%v", got)
			}
		})
	}
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := &models.Session{ID: "x", Username: "Alice"}
	_ = store.InsertSession(ctx, s)
	s.Username = "mutated"

	got, _ := store.GetSession(ctx, "x")
	if got.Username != "Alice" {
		t.Fatalf("store aliases caller memory: %q", got.Username)
	}
	if err := store.InsertSession(ctx, &models.Session{ID: "x"}); err == nil {
		t.Fatalf("duplicate id must fail")
	}
}

func TestSQLiteRebind(t *testing.T) {
	got := sqliteDialect.rebind("WHERE id = $1 AND x = $12")
	if got != "WHERE id = ?1 AND x = ?12" {
		t.Fatalf("rebind: got=%q", got)
	}
	if q := postgresDialect.rebind("$1"); q != "$1" {
		t.Fatalf("postgres keeps $N, got=%q", q)
	}
}

func TestSQLiteBootstrapIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		store, err := openSQLStore(context.Background(), sqliteDialect, path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if i == 0 {
			_ = store.InsertSession(context.Background(), &models.Session{ID: "keep", Username: "A"})
		}
		got, _ := store.GetSession(context.Background(), "keep")
		if got == nil {
			t.Fatalf("open %d: session lost across reopen", i)
		}
		_ = store.Close()
	}
}
