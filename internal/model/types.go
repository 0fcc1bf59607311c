package model

import (
	"fmt"
	"time"
)

// AccountScope partitions one identity's cached data from another's in a
// shared store. It is passed explicitly into every store and engine call.
type AccountScope string

// Visibility is the server-assigned audience of a status.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
	VisibilityDirect   Visibility = "direct"
)

// Author is a denormalized copy of a remote account.
//
// Authors are shared by statuses, notifications and reports, and are only
// removed once nothing references them.
type Author struct {
	ID          string `json:"id"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Bot         bool   `json:"bot,omitempty"`
}

// Status is a denormalized copy of a remote post.
type Status struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	Content   string    `json:"content"`
	Spoiler   string    `json:"spoiler_text,omitempty"`
	URL       string    `json:"url,omitempty"`

	// ReblogOfID is set when this row is a boost of another status, and
	// ReblogAuthor to whoever wrote that status. Author is the booster.
	ReblogOfID   string  `json:"reblog_of_id,omitempty"`
	ReblogAuthor *Author `json:"reblog_author,omitempty"`

	RepliesCount    int64 `json:"replies_count"`
	ReblogsCount    int64 `json:"reblogs_count"`
	FavouritesCount int64 `json:"favourites_count"`

	Visibility Visibility `json:"visibility"`
	Sensitive  bool       `json:"sensitive,omitempty"`
	Reblogged  bool       `json:"reblogged,omitempty"`
	Favourited bool       `json:"favourited,omitempty"`
	Bookmarked bool       `json:"bookmarked,omitempty"`
	Pinned     bool       `json:"pinned,omitempty"`
	Muted      bool       `json:"muted,omitempty"`
	PollVoted  bool       `json:"poll_voted,omitempty"`

	// Filtered is raised by the server when a keyword filter matched; the
	// user may clear it locally.
	Filtered bool `json:"filtered,omitempty"`

	Overlay Overlay `json:"overlay"`
}

// Overlay is the local-only view state of a status. Merges never write it.
type Overlay struct {
	Expanded         bool `json:"expanded,omitempty"`
	ContentShowing   bool `json:"content_showing,omitempty"`
	ContentCollapsed bool `json:"content_collapsed,omitempty"`
}

// Report is a denormalized moderation report referenced by a notification.
type Report struct {
	ID             string    `json:"id"`
	Category       string    `json:"category"`
	Comment        string    `json:"comment,omitempty"`
	TargetAuthorID string    `json:"target_author_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Watermark is the per-account notification read position state.
type Watermark struct {
	// RemoteMarker is the last position the server reported or accepted.
	RemoteMarker string `json:"remote_marker"`
	// LocalMarker is this client's own fallback position.
	LocalMarker string `json:"local_marker"`
	// LastSeenID is where the user's view has scrolled to.
	LastSeenID string `json:"last_seen_id"`
}

// Key returns a stable string for logging and coalescing.
func (a AccountScope) Key() string {
	return string(a)
}

func (s Status) String() string {
	return fmt.Sprintf("Status(%s by %s)", s.ID, s.Author.Acct)
}
