package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/feedkeep/internal/model"
)

func TestPruneToLimit_KeepsNewest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPage(ctx, testAcct, statuses("10", "9", "8", "7", "6")))

	n, err := s.PruneToLimit(ctx, testAcct, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assertIDs(t, s, "10", "9", "8")
}

func TestPruneToLimit_DropsTrailingPlaceholders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPage(ctx, testAcct, statuses("10", "9")))
	require.NoError(t, s.UpsertPlaceholder(ctx, testAcct, "8"))
	require.NoError(t, s.UpsertPage(ctx, testAcct, statuses("3")))

	// Keeping three rows would leave the gap at 8 as the bottom.
	_, err := s.PruneToLimit(ctx, testAcct, 3)
	require.NoError(t, err)
	assertIDs(t, s, "10", "9")
}

func TestPruneToLimit_UnderLimitIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPage(ctx, testAcct, statuses("2", "1")))
	n, err := s.PruneToLimit(ctx, testAcct, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assertIDs(t, s, "2", "1")
}

func TestGarbageCollectOrphans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	shared := model.Author{ID: "shared", Acct: "shared"}
	st1 := testStatus("2")
	st1.Author = shared
	st2 := testStatus("1")
	st2.Author = shared
	require.NoError(t, s.UpsertPage(ctx, testAcct, []model.Status{st1, st2}))

	// Status 1 falls off the timeline; its author is still referenced by 2.
	require.NoError(t, s.DeleteByID(ctx, testAcct, "1"))

	stats, err := s.GarbageCollectOrphans(ctx, testAcct)
	require.NoError(t, err)
	assert.Equal(t, GCStats{Statuses: 1}, stats)

	_, err = s.Status(ctx, testAcct, "1")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := s.Status(ctx, testAcct, "2")
	require.NoError(t, err)
	assert.Equal(t, "shared", got.Author.Acct)

	// Once nothing references the author it goes too.
	require.NoError(t, s.DeleteByID(ctx, testAcct, "2"))
	stats, err = s.GarbageCollectOrphans(ctx, testAcct)
	require.NoError(t, err)
	assert.Equal(t, GCStats{Statuses: 1, Authors: 1}, stats)
	assert.EqualValues(t, 2, stats.Total())
}

func TestGarbageCollectOrphans_KeepsNotificationReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n := testNotification("7", model.NotificationReport)
	n.Report = &model.Report{ID: "r", Category: "other", TargetAuthorID: "target"}
	require.NoError(t, s.UpsertNotifications(ctx, testAcct, []model.Notification{
		n, testNotification("8", model.NotificationMention),
	}))
	require.NoError(t, s.upsertAuthor(ctx, testAcct, model.Author{ID: "target", Acct: "target"}))

	stats, err := s.GarbageCollectOrphans(ctx, testAcct)
	require.NoError(t, err)
	assert.Zero(t, stats.Total())
}

func TestGarbageCollectOrphans_KeepsBoostedAuthors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boost := testStatus("9")
	boost.ReblogOfID = "4"
	boost.ReblogAuthor = &model.Author{ID: "orig", Acct: "orig@example.social"}
	require.NoError(t, s.UpsertPage(ctx, testAcct, []model.Status{boost}))

	stats, err := s.GarbageCollectOrphans(ctx, testAcct)
	require.NoError(t, err)
	assert.Zero(t, stats.Total())

	got, err := s.Status(ctx, testAcct, "9")
	require.NoError(t, err)
	require.NotNil(t, got.ReblogAuthor)
	assert.Equal(t, "orig@example.social", got.ReblogAuthor.Acct)

	// Dropping the boost frees both its authors.
	require.NoError(t, s.DeleteByID(ctx, testAcct, "9"))
	stats, err = s.GarbageCollectOrphans(ctx, testAcct)
	require.NoError(t, err)
	assert.Equal(t, GCStats{Statuses: 1, Authors: 2}, stats)
}
