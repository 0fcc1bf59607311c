package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/feedkeep/internal/model"
)

const testAcct model.AccountScope = "alice@example.social"

// newTestStore opens a fresh file-backed store under t.TempDir().
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testStatus(id string) model.Status {
	return model.Status{
		ID:         id,
		Author:     model.Author{ID: "a" + id, Acct: "user" + id + "@example.social", DisplayName: "User " + id},
		CreatedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Content:    "<p>post " + id + "</p>",
		Visibility: model.VisibilityPublic,
	}
}

func statuses(ids ...string) []model.Status {
	out := make([]model.Status, len(ids))
	for i, id := range ids {
		out[i] = testStatus(id)
	}
	return out
}

// assertIDs checks the full timeline, newest first. Placeholders are
// rendered as "gap:<id>".
func assertIDs(t *testing.T, s *Store, want ...string) {
	t.Helper()
	items, err := s.Timeline(context.Background(), testAcct, 0, "")
	require.NoError(t, err)

	got := make([]string, 0, len(items))
	for _, it := range items {
		switch it := it.(type) {
		case model.StatusItem:
			got = append(got, it.Status.ID)
		case model.GapItem:
			got = append(got, "gap:"+it.ID)
		}
	}
	if want == nil {
		want = []string{}
	}
	require.Equal(t, want, got)
}
