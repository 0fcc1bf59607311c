package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/feedkeep/internal/model"
)

func TestWatch_YieldsOnEveryCommit(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, s.UpsertPage(ctx, testAcct, statuses("1")))

	var snapshots [][]string
	for items, err := range s.Watch(ctx, testAcct, 10) {
		require.NoError(t, err)
		snapshots = append(snapshots, model.ItemIDs(items))

		switch len(snapshots) {
		case 1:
			go func() { _ = s.UpsertPage(ctx, testAcct, statuses("2")) }()
		case 2:
			go func() { _ = s.UpsertPlaceholder(ctx, testAcct, "5") }()
		}
		if len(snapshots) == 3 {
			break
		}
	}

	assert.Equal(t, [][]string{{"1"}, {"2", "1"}, {"5", "2", "1"}}, snapshots)
}

func TestWatch_StopsWhenContextDone(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	count := 0
	for _, err := range s.Watch(ctx, testAcct, 10) {
		require.NoError(t, err)
		count++
		cancel()
	}
	assert.Equal(t, 1, count)
}

func TestWatch_Restartable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seq := s.Watch(ctx, testAcct, 10)

	for items := range seq {
		assert.Empty(t, items)
		break
	}
	require.NoError(t, s.UpsertPage(ctx, testAcct, statuses("1")))
	for items := range seq {
		assert.Equal(t, []string{"1"}, model.ItemIDs(items))
		break
	}
}
