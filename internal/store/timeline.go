package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/feedkeep/internal/model"
)

// UpsertPage writes statuses as Concrete rows. Existing rows with the same
// local id are replaced, which turns a Placeholder at that id into a
// Concrete row. Authors and statuses are upserted alongside; on conflict only
// server-owned status columns are replaced, so the local overlay survives.
func (s *Store) UpsertPage(ctx context.Context, acct model.AccountScope, statuses []model.Status) error {
	if len(statuses) == 0 {
		return nil
	}
	err := s.Tx(ctx, func(tx *Store) error {
		for _, st := range statuses {
			if err := tx.upsertStatus(ctx, acct, st); err != nil {
				return err
			}
			_, err := tx.q.ExecContext(ctx, `
				INSERT INTO timeline_entries (account_scope, local_id, status_id)
				VALUES (?, ?, ?)
				ON CONFLICT(account_scope, local_id) DO UPDATE SET status_id = excluded.status_id
			`, string(acct), st.ID, st.ID)
			if err != nil {
				return fmt.Errorf("upsert entry %s: %w", st.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert page: %w", err)
	}
	return nil
}

// UpsertPlaceholder records a gap at id. An existing Concrete row at id is
// left alone.
func (s *Store) UpsertPlaceholder(ctx context.Context, acct model.AccountScope, id string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO timeline_entries (account_scope, local_id, status_id)
		VALUES (?, ?, NULL)
		ON CONFLICT(account_scope, local_id) DO NOTHING
	`, string(acct), id)
	if err != nil {
		return fmt.Errorf("upsert placeholder: %w", err)
	}
	s.wrote()
	return nil
}

// DeleteRange removes every row, Concrete or Placeholder, with
// minExclusive < local_id <= maxInclusive. An empty bound is unbounded.
// Returns the number of rows removed.
func (s *Store) DeleteRange(ctx context.Context, acct model.AccountScope, minExclusive, maxInclusive string) (int64, error) {
	where, args := rangeWhere("local_id", minExclusive, false, maxInclusive)
	res, err := s.q.ExecContext(ctx,
		"DELETE FROM timeline_entries WHERE account_scope = ?"+where,
		append([]any{string(acct)}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("delete range: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete range: %w", err)
	}
	if n > 0 {
		s.wrote()
	}
	return n, nil
}

// DeleteByID removes the row at id. Deleting a missing row is not an error.
func (s *Store) DeleteByID(ctx context.Context, acct model.AccountScope, id string) error {
	_, err := s.q.ExecContext(ctx,
		"DELETE FROM timeline_entries WHERE account_scope = ? AND local_id = ?",
		string(acct), id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	s.wrote()
	return nil
}

// TopID returns the newest Concrete row's id.
func (s *Store) TopID(ctx context.Context, acct model.AccountScope) (string, bool, error) {
	return s.edgeID(ctx, acct, "status_id IS NOT NULL", newestFirst("local_id"))
}

// TopPlaceholderID returns the newest Placeholder's id.
func (s *Store) TopPlaceholderID(ctx context.Context, acct model.AccountScope) (string, bool, error) {
	return s.edgeID(ctx, acct, "status_id IS NULL", newestFirst("local_id"))
}

// BottomID returns the oldest row's id, Concrete or Placeholder.
func (s *Store) BottomID(ctx context.Context, acct model.AccountScope) (string, bool, error) {
	return s.edgeID(ctx, acct, "1 = 1", oldestFirst("local_id"))
}

// IDAbove returns the nearest row strictly newer than id.
func (s *Store) IDAbove(ctx context.Context, acct model.AccountScope, id string) (string, bool, error) {
	cond, args := idAfter("local_id", id)
	return s.edgeID(ctx, acct, cond, oldestFirst("local_id"), args...)
}

// IDBelow returns the nearest row strictly older than id.
func (s *Store) IDBelow(ctx context.Context, acct model.AccountScope, id string) (string, bool, error) {
	cond, args := idBefore("local_id", id)
	return s.edgeID(ctx, acct, cond, newestFirst("local_id"), args...)
}

func (s *Store) edgeID(ctx context.Context, acct model.AccountScope, cond, order string, args ...any) (string, bool, error) {
	var id string
	err := s.q.QueryRowContext(ctx,
		"SELECT local_id FROM timeline_entries WHERE account_scope = ? AND "+cond+" ORDER BY "+order+" LIMIT 1",
		append([]any{string(acct)}, args...)...,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query edge id: %w", err)
	}
	return id, true, nil
}

// Count returns the number of rows, Concrete and Placeholder.
func (s *Store) Count(ctx context.Context, acct model.AccountScope) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM timeline_entries WHERE account_scope = ?",
		string(acct)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// IsPlaceholder reports whether the row at id exists and is a Placeholder.
func (s *Store) IsPlaceholder(ctx context.Context, acct model.AccountScope, id string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM timeline_entries WHERE account_scope = ? AND local_id = ? AND status_id IS NULL",
		string(acct), id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query placeholder: %w", err)
	}
	return n > 0, nil
}

// ConcreteIDsBetween returns the ids of Concrete rows with lo <= id <= hi,
// newest first. An empty bound is unbounded.
func (s *Store) ConcreteIDsBetween(ctx context.Context, acct model.AccountScope, lo, hi string) ([]string, error) {
	return s.idsBetween(ctx, acct, "status_id IS NOT NULL", lo, hi)
}

// PlaceholderIDsBetween returns the ids of Placeholders with
// lo <= id <= hi, newest first. An empty bound is unbounded.
func (s *Store) PlaceholderIDsBetween(ctx context.Context, acct model.AccountScope, lo, hi string) ([]string, error) {
	return s.idsBetween(ctx, acct, "status_id IS NULL", lo, hi)
}

func (s *Store) idsBetween(ctx context.Context, acct model.AccountScope, kind, lo, hi string) ([]string, error) {
	where, args := rangeWhere("local_id", lo, true, hi)
	rows, err := s.q.QueryContext(ctx,
		"SELECT local_id FROM timeline_entries WHERE account_scope = ? AND "+kind+where+
			" ORDER BY "+newestFirst("local_id"),
		append([]any{string(acct)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return out, nil
}

// Timeline lists up to limit rows newest first, starting strictly below
// beforeID (or at the top when beforeID is empty).
func (s *Store) Timeline(ctx context.Context, acct model.AccountScope, limit int, beforeID string) ([]model.TimelineItem, error) {
	var (
		sb   strings.Builder
		args = []any{string(acct)}
	)
	sb.WriteString("SELECT e.local_id, e.status_id IS NULL, ")
	sb.WriteString(statusColumns)
	sb.WriteString(`
		FROM timeline_entries e
		LEFT JOIN statuses s ON s.account_scope = e.account_scope AND s.id = e.status_id`)
	sb.WriteString(statusAuthorJoins)
	sb.WriteString(`
		WHERE e.account_scope = ?`)
	if beforeID != "" {
		cond, condArgs := idBefore("e.local_id", beforeID)
		sb.WriteString(" AND " + cond)
		args = append(args, condArgs...)
	}
	sb.WriteString(" ORDER BY " + newestFirst("e.local_id"))
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := s.q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	items := []model.TimelineItem{}
	for rows.Next() {
		var (
			localID     string
			placeholder bool
			row         statusRow
		)
		dest := append([]any{&localID, &placeholder}, row.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan timeline row: %w", err)
		}
		if placeholder {
			items = append(items, model.GapItem{ID: localID})
			continue
		}
		items = append(items, model.StatusItem{Status: row.status()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline: %w", err)
	}
	return items, nil
}

// rangeWhere builds " AND ..." conditions for lo/hi bounds. hi is always
// inclusive; loInclusive picks between lo < col and lo <= col.
func rangeWhere(col, lo string, loInclusive bool, hi string) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	if lo != "" {
		var (
			cond string
			a    []any
		)
		if loInclusive {
			cond, a = idAtOrAfter(col, lo)
		} else {
			cond, a = idAfter(col, lo)
		}
		sb.WriteString(" AND " + cond)
		args = append(args, a...)
	}
	if hi != "" {
		cond, a := idAtOrBefore(col, hi)
		sb.WriteString(" AND " + cond)
		args = append(args, a...)
	}
	return sb.String(), args
}
