package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/feedkeep/internal/model"
)

func TestMerge_PreservesOverlay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPage(ctx, testAcct, statuses("5")))
	require.NoError(t, s.SetExpanded(ctx, testAcct, "5", true))
	require.NoError(t, s.SetContentShowing(ctx, testAcct, "5", true))
	require.NoError(t, s.SetContentCollapsed(ctx, testAcct, "5", true))

	fresh := testStatus("5")
	fresh.Content = "<p>edited</p>"
	fresh.FavouritesCount = 42
	require.NoError(t, s.UpsertPage(ctx, testAcct, []model.Status{fresh}))

	got, err := s.Status(ctx, testAcct, "5")
	require.NoError(t, err)
	assert.Equal(t, "<p>edited</p>", got.Content)
	assert.EqualValues(t, 42, got.FavouritesCount)
	assert.Equal(t, model.Overlay{Expanded: true, ContentShowing: true, ContentCollapsed: true}, got.Overlay)
}

func TestMerge_ReplacesServerFlags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPage(ctx, testAcct, statuses("5")))
	require.NoError(t, s.SetFavourited(ctx, testAcct, "5", true))

	got, err := s.Status(ctx, testAcct, "5")
	require.NoError(t, err)
	assert.True(t, got.Favourited)

	// The server is the authority for interaction flags.
	require.NoError(t, s.UpsertPage(ctx, testAcct, statuses("5")))
	got, err = s.Status(ctx, testAcct, "5")
	require.NoError(t, err)
	assert.False(t, got.Favourited)
}

func TestMutators_TouchOnlyTheirField(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertPage(ctx, testAcct, statuses("5")))

	tests := []struct {
		name  string
		set   func() error
		check func(model.Status) bool
	}{
		{"bookmarked", func() error { return s.SetBookmarked(ctx, testAcct, "5", true) }, func(st model.Status) bool { return st.Bookmarked }},
		{"reblogged", func() error { return s.SetReblogged(ctx, testAcct, "5", true) }, func(st model.Status) bool { return st.Reblogged }},
		{"favourited", func() error { return s.SetFavourited(ctx, testAcct, "5", true) }, func(st model.Status) bool { return st.Favourited }},
		{"pinned", func() error { return s.SetPinned(ctx, testAcct, "5", true) }, func(st model.Status) bool { return st.Pinned }},
		{"poll_voted", func() error { return s.SetPollVoted(ctx, testAcct, "5", true) }, func(st model.Status) bool { return st.PollVoted }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := s.Status(ctx, testAcct, "5")
			require.NoError(t, err)
			require.NoError(t, tt.set())
			after, err := s.Status(ctx, testAcct, "5")
			require.NoError(t, err)

			assert.True(t, tt.check(after))
			assert.Equal(t, before.Content, after.Content)
			assert.Equal(t, before.Overlay, after.Overlay)
		})
	}
}

func TestClearFiltered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st := testStatus("8")
	st.Filtered = true
	require.NoError(t, s.UpsertPage(ctx, testAcct, []model.Status{st}))
	require.NoError(t, s.ClearFiltered(ctx, testAcct, "8"))

	got, err := s.Status(ctx, testAcct, "8")
	require.NoError(t, err)
	assert.False(t, got.Filtered)
}

func TestMutators_MissingStatus(t *testing.T) {
	s := newTestStore(t)
	err := s.SetBookmarked(context.Background(), testAcct, "404", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatus_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Status(context.Background(), testAcct, "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveStatus_CascadesToBoosts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boost := testStatus("9")
	boost.ReblogOfID = "5"
	require.NoError(t, s.UpsertPage(ctx, testAcct, append(statuses("10"), boost, testStatus("5"))))
	require.NoError(t, s.UpsertNotifications(ctx, testAcct, []model.Notification{{
		ID: "100", Type: model.NotificationFavourite, Author: model.Author{ID: "x", Acct: "x"},
		Status: &model.Status{ID: "5", Author: testStatus("5").Author},
	}}))

	require.NoError(t, s.RemoveStatus(ctx, testAcct, "5"))
	assertIDs(t, s, "10")

	ns, err := s.Notifications(ctx, testAcct, 0)
	require.NoError(t, err)
	assert.Empty(t, ns)
}

func TestRemoveAuthor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	blocked := model.Author{ID: "troll", Acct: "troll@bad.example"}
	own := testStatus("20")
	own.Author = blocked
	boost := testStatus("21")
	boost.ReblogOfID = "20"

	require.NoError(t, s.UpsertPage(ctx, testAcct, []model.Status{boost, own, testStatus("19")}))
	require.NoError(t, s.UpsertNotifications(ctx, testAcct, []model.Notification{
		{ID: "1", Type: model.NotificationFollow, Author: blocked},
		{ID: "2", Type: model.NotificationFollow, Author: model.Author{ID: "friend", Acct: "friend"}},
	}))

	require.NoError(t, s.RemoveAuthor(ctx, testAcct, "troll"))
	assertIDs(t, s, "19")

	ns, err := s.Notifications(ctx, testAcct, 0)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, "2", ns[0].ID)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM authors WHERE id = 'troll'").Scan(&n))
	assert.Zero(t, n)
}

func TestRemoveAuthor_BoostOfUncachedOriginal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boost := testStatus("21")
	boost.ReblogOfID = "20"
	boost.ReblogAuthor = &model.Author{ID: "troll", Acct: "troll@bad.example"}
	require.NoError(t, s.UpsertPage(ctx, testAcct, []model.Status{boost, testStatus("19")}))
	assertIDs(t, s, "21", "19")

	require.NoError(t, s.RemoveAuthor(ctx, testAcct, "troll"))
	assertIDs(t, s, "19")

	_, err := s.Status(ctx, testAcct, "21")
	assert.ErrorIs(t, err, ErrNotFound)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM authors WHERE id = 'troll'").Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM authors WHERE id = 'a21'").Scan(&n))
	assert.Equal(t, 1, n, "the booster is not blocked")
}
