package timeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/feedkeep/internal/feederr"
	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/runid"
	"github.com/roach88/feedkeep/internal/testutil"
)

func newVolatile(feed *testutil.Feed, pageSize int, statusIDs ...string) *VolatileEngine {
	list := NewList()
	list.merge("", mergePlan{page: testutil.Statuses(statusIDs...)})
	return NewVolatileEngine(list, feed, WithPageSize(pageSize), WithLogger(quiet))
}

func TestVolatileRefresh_DisconnectedPageLeavesGap(t *testing.T) {
	feed := testutil.NewFeed("8", "7", "5", "3", "2", "1")
	e := newVolatile(feed, 3, "3", "2", "1")

	res := requireSuccess(t, e.Load(context.Background(), acct, Refresh, ""))

	assert.False(t, res.EndOfPagination)
	assert.Equal(t, []string{"8", "7", "gap:5", "3", "2", "1"}, render(e.List().Items()))
	assert.Equal(t, []testutil.Call{{Op: testutil.OpNewest, Limit: 3}}, feed.Calls(),
		"no anchor fetch without a durable cache")
}

func TestVolatileRefresh_DoesNotDetectDeletion(t *testing.T) {
	feed := testutil.NewFeed("3", "1")
	feed.Stub(testutil.OpNewest, "")
	e := newVolatile(feed, 20, "3", "2", "1")

	res := requireSuccess(t, e.Load(context.Background(), acct, Refresh, ""))

	assert.True(t, res.EndOfPagination)
	assert.Equal(t, []string{"3", "2", "1"}, render(e.List().Items()))
}

func TestVolatileRefresh_KeepsOverlay(t *testing.T) {
	feed := testutil.NewFeed("4", "3", "2", "1")
	e := newVolatile(feed, 5, "3", "2", "1")
	require.True(t, e.List().Update("2", func(st *model.Status) { st.Overlay.ContentShowing = true }))

	requireSuccess(t, e.Load(context.Background(), acct, Refresh, ""))

	items := e.List().Items()
	assert.Equal(t, []string{"4", "3", "2", "1"}, render(items))
	assert.True(t, items[2].(model.StatusItem).Status.Overlay.ContentShowing)
}

func TestVolatileAppend(t *testing.T) {
	feed := testutil.NewFeed("5", "4", "3", "2", "1")
	e := newVolatile(feed, 2)

	res := requireSuccess(t, e.Load(context.Background(), acct, Append, ""))
	assert.False(t, res.EndOfPagination)
	assert.Equal(t, []string{"5", "4"}, render(e.List().Items()), "empty list starts from the top")

	requireSuccess(t, e.Load(context.Background(), acct, Append, ""))
	res = requireSuccess(t, e.Load(context.Background(), acct, Append, ""))
	assert.True(t, res.EndOfPagination)
	assert.Equal(t, []string{"5", "4", "3", "2", "1"}, render(e.List().Items()))
}

func TestVolatileFillGap(t *testing.T) {
	feed := testutil.NewFeed("8", "7", "6", "5", "4", "3", "2", "1")
	feed.Stub(testutil.OpNewest, "", testutil.Statuses("8", "7", "6")...)
	e := newVolatile(feed, 3, "3", "2", "1")

	requireSuccess(t, e.Load(context.Background(), acct, Refresh, ""))
	require.Equal(t, []string{"8", "7", "gap:6", "3", "2", "1"}, render(e.List().Items()))

	requireSuccess(t, e.FillGap(context.Background(), acct, "6"))
	assert.Equal(t, []string{"8", "7", "6", "5", "gap:4", "3", "2", "1"}, render(e.List().Items()))

	// Append at a bottom placeholder fills it.
	requireSuccess(t, e.Load(context.Background(), acct, Append, "4"))
	assert.Equal(t, []string{"8", "7", "6", "5", "4", "3", "2", "1"}, render(e.List().Items()))
}

func TestVolatileFillGap_NoPlaceholder(t *testing.T) {
	e := newVolatile(testutil.NewFeed("1"), 3, "1")

	res := e.FillGap(context.Background(), acct, "1")
	assert.Error(t, Err(res))
}

func TestVolatileFailureLeavesListUntouched(t *testing.T) {
	feed := testutil.NewFeed("4", "3")
	feed.Fail(testutil.OpNewest, feederr.Network("fetch newest", errors.New("reset")))
	e := newVolatile(feed, 3, "3")

	res := e.Load(context.Background(), acct, Refresh, "")

	assert.True(t, feederr.IsNetwork(Err(res)))
	assert.Equal(t, []string{"3"}, render(e.List().Items()))
}

func TestLoad_SpanAndRunID(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	e := NewVolatileEngine(NewList(), testutil.NewFeed("2", "1"),
		WithLogger(logger),
		WithTracer(tp.Tracer("test")),
		WithRunIDs(runid.NewSequence("run", "r-1")),
	)

	requireSuccess(t, e.Load(context.Background(), acct, Refresh, ""))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "timeline.refresh", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("feedkeep.engine", "volatile"))
	assert.Contains(t, spans[0].Attributes(), attribute.String("feedkeep.account", acct.Key()))
	assert.Contains(t, buf.String(), `"run_id":"r-1"`)
	assert.Contains(t, buf.String(), `"msg":"load finished"`)
}

func TestLoad_UnknownDirection(t *testing.T) {
	e := newVolatile(testutil.NewFeed(), 3)
	assert.Error(t, Err(e.Load(context.Background(), acct, Direction(9), "")))
}
