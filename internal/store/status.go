package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/feedkeep/internal/model"
)

// statusColumns selects a status joined to its author (a) and the boosted
// post's author (ra). Every column is COALESCEd so Placeholder rows from a
// LEFT JOIN scan cleanly.
const statusColumns = `
	COALESCE(s.id, ''), COALESCE(s.author_id, ''),
	COALESCE(a.acct, ''), COALESCE(a.display_name, ''), COALESCE(a.avatar_url, ''), COALESCE(a.bot, 0),
	COALESCE(s.created_at, 0), COALESCE(s.content, ''), COALESCE(s.spoiler, ''), COALESCE(s.url, ''),
	COALESCE(s.reblog_of_id, ''), COALESCE(s.reblog_author_id, ''),
	COALESCE(ra.acct, ''), COALESCE(ra.display_name, ''), COALESCE(ra.avatar_url, ''), COALESCE(ra.bot, 0),
	COALESCE(s.replies_count, 0), COALESCE(s.reblogs_count, 0), COALESCE(s.favourites_count, 0),
	COALESCE(s.visibility, 'public'), COALESCE(s.sensitive, 0),
	COALESCE(s.reblogged, 0), COALESCE(s.favourited, 0), COALESCE(s.bookmarked, 0),
	COALESCE(s.pinned, 0), COALESCE(s.muted, 0), COALESCE(s.poll_voted, 0), COALESCE(s.filtered, 0),
	COALESCE(s.expanded, 0), COALESCE(s.content_showing, 0), COALESCE(s.content_collapsed, 0)`

// statusAuthorJoins joins the authors statusColumns reads.
const statusAuthorJoins = `
	LEFT JOIN authors a ON a.account_scope = s.account_scope AND a.id = s.author_id
	LEFT JOIN authors ra ON ra.account_scope = s.account_scope AND ra.id = s.reblog_author_id`

// statusRow is the scan target for statusColumns.
type statusRow struct {
	st           model.Status
	reblogAuthor model.Author
	createdMs    int64
}

func (r *statusRow) dest() []any {
	st := &r.st
	return []any{
		&st.ID, &st.Author.ID,
		&st.Author.Acct, &st.Author.DisplayName, &st.Author.AvatarURL, &st.Author.Bot,
		&r.createdMs, &st.Content, &st.Spoiler, &st.URL,
		&st.ReblogOfID, &r.reblogAuthor.ID,
		&r.reblogAuthor.Acct, &r.reblogAuthor.DisplayName, &r.reblogAuthor.AvatarURL, &r.reblogAuthor.Bot,
		&st.RepliesCount, &st.ReblogsCount, &st.FavouritesCount,
		&st.Visibility, &st.Sensitive,
		&st.Reblogged, &st.Favourited, &st.Bookmarked,
		&st.Pinned, &st.Muted, &st.PollVoted, &st.Filtered,
		&st.Overlay.Expanded, &st.Overlay.ContentShowing, &st.Overlay.ContentCollapsed,
	}
}

func (r *statusRow) status() model.Status {
	st := r.st
	st.CreatedAt = fromMillis(r.createdMs)
	if r.reblogAuthor.ID != "" {
		ra := r.reblogAuthor
		st.ReblogAuthor = &ra
	}
	return st
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (s *Store) upsertAuthor(ctx context.Context, acct model.AccountScope, a model.Author) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO authors (account_scope, id, acct, display_name, avatar_url, bot)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_scope, id) DO UPDATE SET
			acct = excluded.acct,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			bot = excluded.bot
	`, string(acct), a.ID, a.Acct, a.DisplayName, a.AvatarURL, a.Bot)
	if err != nil {
		return fmt.Errorf("upsert author %s: %w", a.ID, err)
	}
	return nil
}

// upsertStatus writes st and its authors. The overlay columns are only
// written when the row is first inserted.
func (s *Store) upsertStatus(ctx context.Context, acct model.AccountScope, st model.Status) error {
	if err := s.upsertAuthor(ctx, acct, st.Author); err != nil {
		return err
	}
	reblogAuthorID := ""
	if st.ReblogAuthor != nil {
		if err := s.upsertAuthor(ctx, acct, *st.ReblogAuthor); err != nil {
			return err
		}
		reblogAuthorID = st.ReblogAuthor.ID
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO statuses (
			account_scope, id, author_id, created_at, content, spoiler, url, reblog_of_id, reblog_author_id,
			replies_count, reblogs_count, favourites_count, visibility, sensitive,
			reblogged, favourited, bookmarked, pinned, muted, poll_voted, filtered,
			expanded, content_showing, content_collapsed
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_scope, id) DO UPDATE SET
			author_id = excluded.author_id,
			created_at = excluded.created_at,
			content = excluded.content,
			spoiler = excluded.spoiler,
			url = excluded.url,
			reblog_of_id = excluded.reblog_of_id,
			reblog_author_id = excluded.reblog_author_id,
			replies_count = excluded.replies_count,
			reblogs_count = excluded.reblogs_count,
			favourites_count = excluded.favourites_count,
			visibility = excluded.visibility,
			sensitive = excluded.sensitive,
			reblogged = excluded.reblogged,
			favourited = excluded.favourited,
			bookmarked = excluded.bookmarked,
			pinned = excluded.pinned,
			muted = excluded.muted,
			poll_voted = excluded.poll_voted,
			filtered = excluded.filtered
	`,
		string(acct), st.ID, st.Author.ID, toMillis(st.CreatedAt), st.Content, st.Spoiler, st.URL, st.ReblogOfID, reblogAuthorID,
		st.RepliesCount, st.ReblogsCount, st.FavouritesCount, string(st.Visibility), st.Sensitive,
		st.Reblogged, st.Favourited, st.Bookmarked, st.Pinned, st.Muted, st.PollVoted, st.Filtered,
		st.Overlay.Expanded, st.Overlay.ContentShowing, st.Overlay.ContentCollapsed,
	)
	if err != nil {
		return fmt.Errorf("upsert status %s: %w", st.ID, err)
	}
	return nil
}

// Status returns the cached status with the given id.
// Returns ErrNotFound if it is not cached.
func (s *Store) Status(ctx context.Context, acct model.AccountScope, id string) (model.Status, error) {
	var row statusRow
	err := s.q.QueryRowContext(ctx, `
		SELECT `+statusColumns+`
		FROM statuses s`+statusAuthorJoins+`
		WHERE s.account_scope = ? AND s.id = ?
	`, string(acct), id).Scan(row.dest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Status{}, fmt.Errorf("status %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Status{}, fmt.Errorf("query status %s: %w", id, err)
	}
	return row.status(), nil
}

// Columns the targeted mutators may write.
var flagColumns = map[string]bool{
	"expanded":          true,
	"content_showing":   true,
	"content_collapsed": true,
	"bookmarked":        true,
	"reblogged":         true,
	"favourited":        true,
	"pinned":            true,
	"poll_voted":        true,
	"filtered":          true,
}

func (s *Store) setFlag(ctx context.Context, acct model.AccountScope, id, column string, value bool) error {
	if !flagColumns[column] {
		return fmt.Errorf("set %s: unknown column", column)
	}
	res, err := s.q.ExecContext(ctx,
		"UPDATE statuses SET "+column+" = ? WHERE account_scope = ? AND id = ?",
		value, string(acct), id)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	if n == 0 {
		return fmt.Errorf("set %s on %s: %w", column, id, ErrNotFound)
	}
	s.wrote()
	return nil
}

// SetExpanded updates the local expanded overlay.
func (s *Store) SetExpanded(ctx context.Context, acct model.AccountScope, id string, v bool) error {
	return s.setFlag(ctx, acct, id, "expanded", v)
}

// SetContentShowing updates the local content-warning overlay.
func (s *Store) SetContentShowing(ctx context.Context, acct model.AccountScope, id string, v bool) error {
	return s.setFlag(ctx, acct, id, "content_showing", v)
}

// SetContentCollapsed updates the local long-post collapse overlay.
func (s *Store) SetContentCollapsed(ctx context.Context, acct model.AccountScope, id string, v bool) error {
	return s.setFlag(ctx, acct, id, "content_collapsed", v)
}

func (s *Store) SetBookmarked(ctx context.Context, acct model.AccountScope, id string, v bool) error {
	return s.setFlag(ctx, acct, id, "bookmarked", v)
}

func (s *Store) SetReblogged(ctx context.Context, acct model.AccountScope, id string, v bool) error {
	return s.setFlag(ctx, acct, id, "reblogged", v)
}

func (s *Store) SetFavourited(ctx context.Context, acct model.AccountScope, id string, v bool) error {
	return s.setFlag(ctx, acct, id, "favourited", v)
}

func (s *Store) SetPinned(ctx context.Context, acct model.AccountScope, id string, v bool) error {
	return s.setFlag(ctx, acct, id, "pinned", v)
}

func (s *Store) SetPollVoted(ctx context.Context, acct model.AccountScope, id string, v bool) error {
	return s.setFlag(ctx, acct, id, "poll_voted", v)
}

// ClearFiltered shows a status the server's keyword filter hid. The next
// merge may raise the flag again.
func (s *Store) ClearFiltered(ctx context.Context, acct model.AccountScope, id string) error {
	return s.setFlag(ctx, acct, id, "filtered", false)
}

// RemoveStatus deletes a status, every boost of it, and every timeline row
// and notification that references either.
func (s *Store) RemoveStatus(ctx context.Context, acct model.AccountScope, id string) error {
	err := s.Tx(ctx, func(tx *Store) error {
		const affected = `(SELECT id FROM statuses WHERE account_scope = ? AND (id = ? OR reblog_of_id = ?))`
		stmts := []string{
			"DELETE FROM timeline_entries WHERE account_scope = ? AND status_id IN " + affected,
			"DELETE FROM notifications WHERE account_scope = ? AND status_id IN " + affected,
			"DELETE FROM statuses WHERE account_scope = ? AND id IN " + affected,
		}
		for _, q := range stmts {
			if _, err := tx.q.ExecContext(ctx, q, string(acct), string(acct), id, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove status %s: %w", id, err)
	}
	return nil
}

// RemoveAuthor deletes everything authored by authorID: their statuses,
// boosts of their posts whether or not the original is cached, the
// timeline rows showing those, notifications they caused, and the author
// itself. Used after a block or mute.
func (s *Store) RemoveAuthor(ctx context.Context, acct model.AccountScope, authorID string) error {
	err := s.Tx(ctx, func(tx *Store) error {
		const affected = `(
			SELECT id FROM statuses WHERE account_scope = ? AND (
				author_id = ? OR reblog_author_id = ? OR reblog_of_id IN (
					SELECT id FROM statuses WHERE account_scope = ? AND author_id = ?
				)
			)
		)`
		a := string(acct)
		affectedArgs := []any{a, authorID, authorID, a, authorID}
		if _, err := tx.q.ExecContext(ctx,
			"DELETE FROM timeline_entries WHERE account_scope = ? AND status_id IN "+affected,
			append([]any{a}, affectedArgs...)...); err != nil {
			return err
		}
		if _, err := tx.q.ExecContext(ctx,
			"DELETE FROM notifications WHERE account_scope = ? AND (author_id = ? OR status_id IN "+affected+")",
			append([]any{a, authorID}, affectedArgs...)...); err != nil {
			return err
		}
		if _, err := tx.q.ExecContext(ctx,
			"DELETE FROM statuses WHERE account_scope = ? AND id IN "+affected,
			append([]any{a}, affectedArgs...)...); err != nil {
			return err
		}
		if _, err := tx.q.ExecContext(ctx,
			"DELETE FROM authors WHERE account_scope = ? AND id = ?",
			a, authorID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove author %s: %w", authorID, err)
	}
	return nil
}
