// Package mastodon implements the remote sources over the Mastodon REST API.
package mastodon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/roach88/feedkeep/internal/feederr"
	"github.com/roach88/feedkeep/internal/remote"
)

const (
	HomeTimeline   = "/api/v1/timelines/home"
	PublicTimeline = "/api/v1/timelines/public"

	notificationsPath = "/api/v1/notifications"
	markersPath       = "/api/v1/markers"

	defaultTimeout = 30 * time.Second
	// Upper bound on an error body kept for diagnostics.
	maxErrorBody = 512
)

// Client talks to one Mastodon-compatible server on behalf of one account.
// It implements remote.TimelineSource, remote.NotificationSource and
// remote.MarkerSource.
type Client struct {
	base     *url.URL
	http     *http.Client
	timeline string
	logger   *slog.Logger
}

var (
	_ remote.TimelineSource     = (*Client)(nil)
	_ remote.NotificationSource = (*Client)(nil)
	_ remote.MarkerSource       = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. The token source, if
// any, wraps its transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeline selects the timeline endpoint. Defaults to HomeTimeline.
func WithTimeline(path string) Option {
	return func(c *Client) { c.timeline = path }
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the server at baseURL. Requests carry a bearer
// token from ts; a nil ts sends unauthenticated requests.
func New(baseURL string, ts oauth2.TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		base:     u,
		http:     &http.Client{Timeout: defaultTimeout},
		timeline: HomeTimeline,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if ts != nil {
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.http = &http.Client{
			Transport: &oauth2.Transport{Source: ts, Base: base},
			Timeout:   c.http.Timeout,
		}
	}
	return c, nil
}

// FetchNewest implements remote.TimelineSource.
func (c *Client) FetchNewest(ctx context.Context, limit int) (remote.Page, error) {
	return c.fetchTimeline(ctx, "fetch newest", url.Values{"limit": {strconv.Itoa(limit)}})
}

// FetchBefore implements remote.TimelineSource.
func (c *Client) FetchBefore(ctx context.Context, maxID string, limit int) (remote.Page, error) {
	return c.fetchTimeline(ctx, "fetch before", url.Values{
		"limit":  {strconv.Itoa(limit)},
		"max_id": {maxID},
	})
}

// FetchAfter implements remote.TimelineSource. min_id returns the items
// immediately above the cursor rather than the newest ones.
func (c *Client) FetchAfter(ctx context.Context, minID string, limit int) (remote.Page, error) {
	return c.fetchTimeline(ctx, "fetch after", url.Values{
		"limit":  {strconv.Itoa(limit)},
		"min_id": {minID},
	})
}

func (c *Client) fetchTimeline(ctx context.Context, op string, q url.Values) (remote.Page, error) {
	var wire []wireStatus
	links, err := c.getJSON(ctx, op, c.timeline, q, &wire)
	if err != nil {
		return remote.Page{}, err
	}

	statuses, err := decodeStatuses(wire)
	if err != nil {
		return remote.Page{}, feederr.Protocol(op, http.StatusOK, err)
	}
	return remote.Page{
		Statuses: statuses,
		Next:     links.next,
		Prev:     links.prev,
	}, nil
}

// FetchNotifications implements remote.NotificationSource.
func (c *Client) FetchNotifications(ctx context.Context, nq remote.NotificationQuery) (remote.NotificationPage, error) {
	const op = "fetch notifications"

	q := url.Values{}
	if nq.Limit > 0 {
		q.Set("limit", strconv.Itoa(nq.Limit))
	}
	if nq.MaxID != "" {
		q.Set("max_id", nq.MaxID)
	}
	if nq.SinceID != "" {
		q.Set("since_id", nq.SinceID)
	}
	for _, t := range nq.ExcludeTypes {
		q.Add("exclude_types[]", string(t))
	}

	var wire []wireNotification
	links, err := c.getJSON(ctx, op, notificationsPath, q, &wire)
	if err != nil {
		return remote.NotificationPage{}, err
	}

	ns, err := decodeNotifications(wire)
	if err != nil {
		return remote.NotificationPage{}, feederr.Protocol(op, http.StatusOK, err)
	}
	return remote.NotificationPage{Notifications: ns, Next: links.next}, nil
}

// GetMarker implements remote.MarkerSource. Servers without the markers
// API answer 404, reported as remote.ErrMarkersUnsupported.
func (c *Client) GetMarker(ctx context.Context) (string, error) {
	const op = "get marker"

	var wire map[string]wireMarker
	_, err := c.getJSON(ctx, op, markersPath, url.Values{"timeline[]": {"notifications"}}, &wire)
	if err != nil {
		var fe *feederr.Error
		if errors.As(err, &fe) && fe.Status == http.StatusNotFound {
			return "", remote.ErrMarkersUnsupported
		}
		return "", err
	}
	return wire["notifications"].LastReadID, nil
}

// SetMarker implements remote.MarkerSource.
func (c *Client) SetMarker(ctx context.Context, id string) error {
	const op = "set marker"

	form := url.Values{"notifications[last_read_id]": {id}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(markersPath, nil), strings.NewReader(form.Encode()))
	if err != nil {
		return feederr.Network(op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return feederr.Network(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return remote.ErrMarkersUnsupported
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return feederr.Protocol(op, resp.StatusCode, errorBody(resp.Body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, dst any) (pageLinks, error) {
	endpoint := c.endpoint(path, q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pageLinks{}, feederr.Network(op, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return pageLinks{}, feederr.Network(op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("remote request",
		"op", op,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pageLinks{}, feederr.Protocol(op, resp.StatusCode, errorBody(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		if ctx.Err() != nil {
			return pageLinks{}, feederr.Network(op, ctx.Err())
		}
		return pageLinks{}, feederr.Protocol(op, resp.StatusCode, fmt.Errorf("decode body: %w", err))
	}
	return parseLinks(resp.Header.Values("Link")), nil
}

func errorBody(r io.Reader) error {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
		return errors.New(apiErr.Error)
	}
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		msg = "empty response body"
	}
	return errors.New(msg)
}
