package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/feedkeep/internal/model"
)

// UpsertNotifications writes notifications together with the authors,
// statuses and reports they reference. Re-delivered notifications replace
// the cached row.
func (s *Store) UpsertNotifications(ctx context.Context, acct model.AccountScope, ns []model.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	err := s.Tx(ctx, func(tx *Store) error {
		for _, n := range ns {
			if err := n.Validate(); err != nil {
				return err
			}
			if err := tx.upsertAuthor(ctx, acct, n.Author); err != nil {
				return err
			}

			var statusID, reportID sql.NullString
			if n.Status != nil {
				if err := tx.upsertStatus(ctx, acct, *n.Status); err != nil {
					return err
				}
				statusID = sql.NullString{String: n.Status.ID, Valid: true}
			}
			if n.Report != nil {
				if err := tx.upsertReport(ctx, acct, *n.Report); err != nil {
					return err
				}
				reportID = sql.NullString{String: n.Report.ID, Valid: true}
			}

			_, err := tx.q.ExecContext(ctx, `
				INSERT INTO notifications (account_scope, id, type, created_at, author_id, status_id, report_id)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(account_scope, id) DO UPDATE SET
					type = excluded.type,
					created_at = excluded.created_at,
					author_id = excluded.author_id,
					status_id = excluded.status_id,
					report_id = excluded.report_id
			`, string(acct), n.ID, string(n.Type), toMillis(n.CreatedAt), n.Author.ID, statusID, reportID)
			if err != nil {
				return fmt.Errorf("upsert notification %s: %w", n.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert notifications: %w", err)
	}
	return nil
}

func (s *Store) upsertReport(ctx context.Context, acct model.AccountScope, r model.Report) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO reports (account_scope, id, category, comment, target_author_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_scope, id) DO UPDATE SET
			category = excluded.category,
			comment = excluded.comment,
			target_author_id = excluded.target_author_id,
			created_at = excluded.created_at
	`, string(acct), r.ID, r.Category, r.Comment, r.TargetAuthorID, toMillis(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert report %s: %w", r.ID, err)
	}
	return nil
}

// Notifications lists up to limit cached notifications, newest first.
// A limit <= 0 lists all of them.
func (s *Store) Notifications(ctx context.Context, acct model.AccountScope, limit int) ([]model.Notification, error) {
	query := `
		SELECT n.id, n.type, n.created_at, n.author_id,
			COALESCE(a.acct, ''), COALESCE(a.display_name, ''), COALESCE(a.avatar_url, ''), COALESCE(a.bot, 0),
			n.status_id, n.report_id
		FROM notifications n
		LEFT JOIN authors a ON a.account_scope = n.account_scope AND a.id = n.author_id
		WHERE n.account_scope = ?
		ORDER BY ` + newestFirst("n.id")
	args := []any{string(acct)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}

	type ref struct {
		statusID, reportID sql.NullString
	}
	var (
		out  []model.Notification
		refs []ref
	)
	for rows.Next() {
		var (
			n         model.Notification
			typ       string
			createdMs int64
			r         ref
		)
		if err := rows.Scan(&n.ID, &typ, &createdMs, &n.Author.ID,
			&n.Author.Acct, &n.Author.DisplayName, &n.Author.AvatarURL, &n.Author.Bot,
			&r.statusID, &r.reportID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = model.ParseNotificationType(typ)
		n.CreatedAt = fromMillis(createdMs)
		out = append(out, n)
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	rows.Close()

	// Referenced rows are loaded after the cursor is closed; an in-memory
	// database has a single connection.
	for i, r := range refs {
		if r.statusID.Valid {
			st, err := s.Status(ctx, acct, r.statusID.String)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("load notification status: %w", err)
			}
			if err == nil {
				out[i].Status = &st
			}
		}
		if r.reportID.Valid {
			rep, err := s.report(ctx, acct, r.reportID.String)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("load notification report: %w", err)
			}
			if err == nil {
				out[i].Report = &rep
			}
		}
	}
	return out, nil
}

func (s *Store) report(ctx context.Context, acct model.AccountScope, id string) (model.Report, error) {
	var (
		r         model.Report
		createdMs int64
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, category, comment, target_author_id, created_at
		FROM reports WHERE account_scope = ? AND id = ?
	`, string(acct), id).Scan(&r.ID, &r.Category, &r.Comment, &r.TargetAuthorID, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, ErrNotFound
	}
	if err != nil {
		return model.Report{}, err
	}
	r.CreatedAt = fromMillis(createdMs)
	return r, nil
}

// PruneNotifications keeps the newest keep notifications and deletes the
// rest. Returns the number deleted.
func (s *Store) PruneNotifications(ctx context.Context, acct model.AccountScope, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.q.ExecContext(ctx, `
		DELETE FROM notifications
		WHERE account_scope = ? AND id NOT IN (
			SELECT id FROM notifications WHERE account_scope = ?
			ORDER BY `+newestFirst("id")+`
			LIMIT ?
		)
	`, string(acct), string(acct), keep)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	if n > 0 {
		s.wrote()
	}
	return n, nil
}
