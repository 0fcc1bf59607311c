package store

import (
	"context"
	"iter"

	"github.com/roach88/feedkeep/internal/model"
)

// Watch returns a lazy sequence of timeline snapshots: the newest limit rows
// now, and again after every committed write to the store. The sequence ends
// when ctx is done, when the consumer stops, or after yielding a query
// error. Each range over the result starts a fresh subscription.
//
//	for items, err := range st.Watch(ctx, acct, 40) {
//		if err != nil {
//			return err
//		}
//		render(items)
//	}
func (s *Store) Watch(ctx context.Context, acct model.AccountScope, limit int) iter.Seq2[[]model.TimelineItem, error] {
	return func(yield func([]model.TimelineItem, error) bool) {
		for {
			// Subscribe before querying so a write between the two is not missed.
			changed := s.changes.wait()

			items, err := s.Timeline(ctx, acct, limit, "")
			if !yield(items, err) || err != nil {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-changed:
			}
		}
	}
}
