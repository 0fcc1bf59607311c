package mastodon

import (
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/feedkeep/internal/ids"
	"github.com/roach88/feedkeep/internal/model"
)

// Wire shapes carry only the fields the cache keeps.

type wireAccount struct {
	ID          string `json:"id"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	Bot         bool   `json:"bot"`
}

type wirePoll struct {
	Voted bool `json:"voted"`
}

type wireStatus struct {
	ID              string      `json:"id"`
	CreatedAt       time.Time   `json:"created_at"`
	Account         wireAccount `json:"account"`
	Content         string      `json:"content"`
	SpoilerText     string      `json:"spoiler_text"`
	URL             string      `json:"url"`
	Visibility      string      `json:"visibility"`
	Sensitive       bool        `json:"sensitive"`
	RepliesCount    int64       `json:"replies_count"`
	ReblogsCount    int64       `json:"reblogs_count"`
	FavouritesCount int64       `json:"favourites_count"`
	Reblogged       bool        `json:"reblogged"`
	Favourited      bool        `json:"favourited"`
	Bookmarked      bool        `json:"bookmarked"`
	Pinned          bool        `json:"pinned"`
	Muted           bool        `json:"muted"`
	Poll            *wirePoll   `json:"poll"`
	Filtered        []any       `json:"filtered"`
	Reblog          *wireStatus `json:"reblog"`
}

type wireReport struct {
	ID            string      `json:"id"`
	Category      string      `json:"category"`
	Comment       string      `json:"comment"`
	CreatedAt     time.Time   `json:"created_at"`
	TargetAccount wireAccount `json:"target_account"`
}

type wireNotification struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
	Account   wireAccount `json:"account"`
	Status    *wireStatus `json:"status"`
	Report    *wireReport `json:"report"`
}

type wireMarker struct {
	LastReadID string    `json:"last_read_id"`
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// nfc normalizes remote text so equal strings compare equal after a merge.
func nfc(s string) string {
	return norm.NFC.String(s)
}

func (a wireAccount) model() model.Author {
	return model.Author{
		ID:          a.ID,
		Acct:        a.Acct,
		DisplayName: nfc(a.DisplayName),
		AvatarURL:   a.Avatar,
		Bot:         a.Bot,
	}
}

// model converts a timeline row. A boost keeps its own id and booster, and
// shows the boosted post's author, content and counts.
func (w wireStatus) model() (model.Status, error) {
	if !ids.Valid(w.ID) {
		return model.Status{}, fmt.Errorf("malformed status id %q", w.ID)
	}
	if !ids.Valid(w.Account.ID) {
		return model.Status{}, fmt.Errorf("status %s: malformed account id %q", w.ID, w.Account.ID)
	}

	body := w
	if w.Reblog != nil {
		if !ids.Valid(w.Reblog.ID) {
			return model.Status{}, fmt.Errorf("status %s: malformed reblog id %q", w.ID, w.Reblog.ID)
		}
		if !ids.Valid(w.Reblog.Account.ID) {
			return model.Status{}, fmt.Errorf("status %s: malformed reblog account id %q", w.ID, w.Reblog.Account.ID)
		}
		body = *w.Reblog
	}

	st := model.Status{
		ID:              w.ID,
		Author:          w.Account.model(),
		CreatedAt:       w.CreatedAt.UTC(),
		Content:         nfc(body.Content),
		Spoiler:         nfc(body.SpoilerText),
		URL:             body.URL,
		RepliesCount:    body.RepliesCount,
		ReblogsCount:    body.ReblogsCount,
		FavouritesCount: body.FavouritesCount,
		Visibility:      model.Visibility(w.Visibility),
		Sensitive:       body.Sensitive,
		Reblogged:       body.Reblogged,
		Favourited:      body.Favourited,
		Bookmarked:      body.Bookmarked,
		Pinned:          w.Pinned,
		Muted:           body.Muted,
		PollVoted:       body.Poll != nil && body.Poll.Voted,
		Filtered:        len(w.Filtered) > 0 || len(body.Filtered) > 0,
	}
	if st.Visibility == "" {
		st.Visibility = model.VisibilityPublic
	}
	if w.Reblog != nil {
		author := w.Reblog.Account.model()
		st.ReblogOfID = w.Reblog.ID
		st.ReblogAuthor = &author
	}
	return st, nil
}

func decodeStatuses(wire []wireStatus) ([]model.Status, error) {
	out := make([]model.Status, 0, len(wire))
	for _, w := range wire {
		st, err := w.model()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func decodeNotifications(wire []wireNotification) ([]model.Notification, error) {
	out := make([]model.Notification, 0, len(wire))
	for _, w := range wire {
		if !ids.Valid(w.ID) {
			return nil, fmt.Errorf("malformed notification id %q", w.ID)
		}
		n := model.Notification{
			ID:        w.ID,
			Type:      model.ParseNotificationType(w.Type),
			CreatedAt: w.CreatedAt.UTC(),
			Author:    w.Account.model(),
		}
		if w.Status != nil && n.Type.HasStatus() {
			st, err := w.Status.model()
			if err != nil {
				return nil, fmt.Errorf("notification %s: %w", w.ID, err)
			}
			n.Status = &st
		}
		if w.Report != nil && n.Type == model.NotificationReport {
			n.Report = &model.Report{
				ID:             w.Report.ID,
				Category:       w.Report.Category,
				Comment:        nfc(w.Report.Comment),
				TargetAuthorID: w.Report.TargetAccount.ID,
				CreatedAt:      w.Report.CreatedAt.UTC(),
			}
		}
		if err := n.Validate(); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
