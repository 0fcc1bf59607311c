package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/feedkeep/internal/model"
)

// PruneToLimit keeps the newest keep timeline rows and deletes everything
// older. Placeholders left below the oldest surviving Concrete row describe
// a gap with no lower bound and are deleted too. Returns the number of rows
// removed.
func (s *Store) PruneToLimit(ctx context.Context, acct model.AccountScope, keep int) (int64, error) {
	var total int64
	err := s.Tx(ctx, func(tx *Store) error {
		if keep < 0 {
			keep = 0
		}

		var cutoff string
		err := tx.q.QueryRowContext(ctx,
			"SELECT local_id FROM timeline_entries WHERE account_scope = ? ORDER BY "+newestFirst("local_id")+" LIMIT 1 OFFSET ?",
			string(acct), keep).Scan(&cutoff)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("find cutoff: %w", err)
		default:
			n, err := tx.DeleteRange(ctx, acct, "", cutoff)
			if err != nil {
				return err
			}
			total += n
		}

		bottom, ok, err := tx.edgeID(ctx, acct, "status_id IS NOT NULL", oldestFirst("local_id"))
		if err != nil {
			return err
		}
		if !ok {
			// No Concrete rows left: any remaining placeholder is unanchored.
			n, err := tx.DeleteRange(ctx, acct, "", "")
			if err != nil {
				return err
			}
			total += n
			return nil
		}
		cond, args := idBefore("local_id", bottom)
		res, err := tx.q.ExecContext(ctx,
			"DELETE FROM timeline_entries WHERE account_scope = ? AND status_id IS NULL AND "+cond,
			append([]any{string(acct)}, args...)...)
		if err != nil {
			return fmt.Errorf("delete trailing placeholders: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete trailing placeholders: %w", err)
		}
		total += n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune timeline: %w", err)
	}
	return total, nil
}

// GCStats counts rows removed by GarbageCollectOrphans.
type GCStats struct {
	Statuses int64
	Reports  int64
	Authors  int64
}

// Total returns the number of rows removed.
func (g GCStats) Total() int64 {
	return g.Statuses + g.Reports + g.Authors
}

// GarbageCollectOrphans deletes statuses no timeline row or notification
// references, reports no notification references, and then authors that
// nothing references any more.
func (s *Store) GarbageCollectOrphans(ctx context.Context, acct model.AccountScope) (GCStats, error) {
	var stats GCStats
	err := s.Tx(ctx, func(tx *Store) error {
		a := string(acct)
		steps := []struct {
			name  string
			query string
			args  []any
			dst   *int64
		}{
			{"statuses", `
				DELETE FROM statuses
				WHERE account_scope = ?
				AND NOT EXISTS (
					SELECT 1 FROM timeline_entries e
					WHERE e.account_scope = statuses.account_scope AND e.status_id = statuses.id
				)
				AND NOT EXISTS (
					SELECT 1 FROM notifications n
					WHERE n.account_scope = statuses.account_scope AND n.status_id = statuses.id
				)`, []any{a}, &stats.Statuses},
			{"reports", `
				DELETE FROM reports
				WHERE account_scope = ?
				AND NOT EXISTS (
					SELECT 1 FROM notifications n
					WHERE n.account_scope = reports.account_scope AND n.report_id = reports.id
				)`, []any{a}, &stats.Reports},
			{"authors", `
				DELETE FROM authors
				WHERE account_scope = ?
				AND NOT EXISTS (
					SELECT 1 FROM statuses s
					WHERE s.account_scope = authors.account_scope
					AND (s.author_id = authors.id OR s.reblog_author_id = authors.id)
				)
				AND NOT EXISTS (
					SELECT 1 FROM notifications n
					WHERE n.account_scope = authors.account_scope AND n.author_id = authors.id
				)
				AND NOT EXISTS (
					SELECT 1 FROM reports r
					WHERE r.account_scope = authors.account_scope AND r.target_author_id = authors.id
				)`, []any{a}, &stats.Authors},
		}
		for _, step := range steps {
			res, err := tx.q.ExecContext(ctx, step.query, step.args...)
			if err != nil {
				return fmt.Errorf("collect %s: %w", step.name, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("collect %s: %w", step.name, err)
			}
			*step.dst = n
		}
		return nil
	})
	if err != nil {
		return GCStats{}, fmt.Errorf("garbage collect: %w", err)
	}
	return stats, nil
}
