package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/feedkeep/internal/ids"
	"github.com/roach88/feedkeep/internal/model"
)

// Watermark returns the account's notification read positions. Positions
// never recorded read as ids.Zero.
func (s *Store) Watermark(ctx context.Context, acct model.AccountScope) (model.Watermark, error) {
	var w model.Watermark
	err := s.q.QueryRowContext(ctx, `
		SELECT remote_marker, local_marker, last_seen_id
		FROM watermarks WHERE account_scope = ?
	`, string(acct)).Scan(&w.RemoteMarker, &w.LocalMarker, &w.LastSeenID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Watermark{RemoteMarker: ids.Zero, LocalMarker: ids.Zero, LastSeenID: ids.Zero}, nil
	}
	if err != nil {
		return model.Watermark{}, fmt.Errorf("query watermark: %w", err)
	}
	return w, nil
}

// SetLocalMarker records this client's own notification read position.
func (s *Store) SetLocalMarker(ctx context.Context, acct model.AccountScope, id string) error {
	return s.setWatermark(ctx, acct, "local_marker", id)
}

// SetRemoteMarker caches the position last read from or written to the
// server.
func (s *Store) SetRemoteMarker(ctx context.Context, acct model.AccountScope, id string) error {
	return s.setWatermark(ctx, acct, "remote_marker", id)
}

// SetLastSeen records how far the user's notification view has scrolled.
func (s *Store) SetLastSeen(ctx context.Context, acct model.AccountScope, id string) error {
	return s.setWatermark(ctx, acct, "last_seen_id", id)
}

func (s *Store) setWatermark(ctx context.Context, acct model.AccountScope, column, id string) error {
	if !ids.Valid(id) {
		return fmt.Errorf("set %s: invalid id %q", column, id)
	}
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO watermarks (account_scope, "+column+") VALUES (?, ?)"+
			" ON CONFLICT(account_scope) DO UPDATE SET "+column+" = excluded."+column,
		string(acct), id)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	s.wrote()
	return nil
}
