package mastodon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/roach88/feedkeep/internal/feederr"
	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/remote"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}),
		WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestFetchBefore_SendsCursorAndParsesLinks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, HomeTimeline, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "11", r.URL.Query().Get("max_id"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))

		w.Header().Set("Link", `<https://x.example/api/v1/timelines/home?max_id=9>; rel="next", `+
			`<https://x.example/api/v1/timelines/home?min_id=10>; rel="prev"`)
		_, _ = w.Write([]byte(`[
			{"id":"10","created_at":"2024-01-01T00:00:00Z","account":{"id":"1","acct":"ann"},"content":"<p>ten</p>","visibility":"public"},
			{"id":"9","created_at":"2024-01-01T00:00:00Z","account":{"id":"2","acct":"bob"},"content":"","visibility":"unlisted",
			 "reblog":{"id":"3","account":{"id":"1","acct":"ann"},"content":"<p>three</p>","favourites_count":4,"favourited":true}}
		]`))
	})

	page, err := c.FetchBefore(context.Background(), "11", 2)
	require.NoError(t, err)
	require.Len(t, page.Statuses, 2)
	assert.Equal(t, "9", page.Next)
	assert.Equal(t, "10", page.Prev)

	boost := page.Statuses[1]
	assert.Equal(t, "9", boost.ID)
	assert.Equal(t, "bob", boost.Author.Acct)
	assert.Equal(t, "3", boost.ReblogOfID)
	require.NotNil(t, boost.ReblogAuthor)
	assert.Equal(t, model.Author{ID: "1", Acct: "ann"}, *boost.ReblogAuthor)
	assert.Equal(t, "<p>three</p>", boost.Content)
	assert.EqualValues(t, 4, boost.FavouritesCount)
	assert.True(t, boost.Favourited)
	assert.Equal(t, model.VisibilityUnlisted, boost.Visibility)
}

func TestFetchNewest_NormalizesText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"id": "1", "account": map[string]any{"id": "1", "acct": "ann", "display_name": "Rene\u0301"},
			"content": "cafe\u0301",
		}})
	})

	page, err := c.FetchNewest(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, page.Statuses, 1)
	assert.Equal(t, "caf\u00e9", page.Statuses[0].Content)
	assert.Equal(t, "Ren\u00e9", page.Statuses[0].Author.DisplayName)
}

func TestFetch_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		protocol bool
		status   int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"error":"upstream down"}`))
			},
			protocol: true,
			status:   http.StatusBadGateway,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{not json`))
			},
			protocol: true,
			status:   http.StatusOK,
		},
		{
			name: "malformed id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`[{"id":"abc","account":{"id":"1"}}]`))
			},
			protocol: true,
			status:   http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.FetchNewest(context.Background(), 20)
			require.Error(t, err)
			assert.Equal(t, tt.protocol, feederr.IsProtocol(err))

			var fe *feederr.Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.status, fe.Status)
		})
	}
}

func TestFetch_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	c, err := New(srv.URL, nil)
	require.NoError(t, err)
	srv.Close()

	_, err = c.FetchNewest(context.Background(), 20)
	require.Error(t, err)
	assert.True(t, feederr.IsNetwork(err))
}

func TestFetchNotifications(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/v1/notifications", r.URL.Path)
		assert.Equal(t, "5", q.Get("since_id"))
		assert.Equal(t, []string{"follow"}, q["exclude_types[]"])

		w.Header().Set("Link", `<https://x.example/api/v1/notifications?max_id=7>; rel="next"`)
		_, _ = w.Write([]byte(`[
			{"id":"8","type":"mention","account":{"id":"2","acct":"bob"},
			 "status":{"id":"40","account":{"id":"2","acct":"bob"},"content":"hi"}},
			{"id":"7","type":"admin.report","account":{"id":"3","acct":"mod"},
			 "report":{"id":"r1","category":"spam","target_account":{"id":"4","acct":"spam"}}},
			{"id":"6","type":"emoji_reaction","account":{"id":"5","acct":"eve"}}
		]`))
	})

	page, err := c.FetchNotifications(context.Background(), remote.NotificationQuery{
		SinceID:      "5",
		Limit:        30,
		ExcludeTypes: []model.NotificationType{model.NotificationFollow},
	})
	require.NoError(t, err)
	assert.Equal(t, "7", page.Next)
	require.Len(t, page.Notifications, 3)

	assert.Equal(t, model.NotificationMention, page.Notifications[0].Type)
	require.NotNil(t, page.Notifications[0].Status)
	assert.Equal(t, "40", page.Notifications[0].Status.ID)

	assert.Equal(t, model.NotificationReport, page.Notifications[1].Type)
	require.NotNil(t, page.Notifications[1].Report)
	assert.Equal(t, "4", page.Notifications[1].Report.TargetAuthorID)

	assert.Equal(t, model.NotificationUnknown, page.Notifications[2].Type)
}

func TestFetchNotifications_RejectsMissingPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"8","type":"mention","account":{"id":"2","acct":"bob"}}]`))
	})

	_, err := c.FetchNotifications(context.Background(), remote.NotificationQuery{Limit: 30})
	require.Error(t, err)
	assert.True(t, feederr.IsProtocol(err))
	assert.Contains(t, err.Error(), "mention without a status")
}

func TestMarkers(t *testing.T) {
	var posted string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"notifications":{"last_read_id":"35","version":2}}`))
		case http.MethodPost:
			require.NoError(t, r.ParseForm())
			posted = r.PostForm.Get("notifications[last_read_id]")
			_, _ = w.Write([]byte(`{}`))
		}
	})

	id, err := c.GetMarker(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "35", id)

	require.NoError(t, c.SetMarker(context.Background(), "40"))
	assert.Equal(t, "40", posted)
}

func TestMarkers_Unsupported(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetMarker(context.Background())
	assert.ErrorIs(t, err, remote.ErrMarkersUnsupported)
	assert.ErrorIs(t, c.SetMarker(context.Background(), "1"), remote.ErrMarkersUnsupported)
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("example.social", nil)
	assert.Error(t, err)
}

func TestParseLinks(t *testing.T) {
	got := parseLinks([]string{
		`<https://h/api/v1/timelines/home?max_id=100&limit=2>; rel="next"`,
		`<https://h/api/v1/timelines/home?since_id=200>; rel="prev", garbage`,
	})
	assert.Equal(t, pageLinks{next: "100", prev: "200"}, got)
	assert.Equal(t, pageLinks{}, parseLinks(nil))
}
