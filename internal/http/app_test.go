package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/http/handlers"
	"rentdesk/internal/livesync"
	applog "rentdesk/internal/log"
	"rentdesk/internal/metrics"
	"rentdesk/internal/repos"
	"rentdesk/internal/services"
	"rentdesk/web"
)

type testApp struct {
	app   *fiber.App
	store *repos.DocStore
	reg   *prometheus.Registry
}

type appOpts struct {
	store  services.Store
	ctx    context.Context
	extras func(app *fiber.App)
	// mirror serves dashboard and availability reads from a started
	// livesync.Mirror, as the binary does. lister overrides what it reads.
	mirror     bool
	lister     livesync.Lister
	mirrorWait time.Duration
}

func withMirror(o *appOpts) { o.mirror = true }

func newApp(t *testing.T, opts ...func(*appOpts)) testApp {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := repos.NewDocStore(db)

	o := appOpts{store: store, ctx: context.Background()}
	for _, fn := range opts {
		fn(&o)
	}

	hub := livesync.NewHub()
	store.OnChange(func(c string) { hub.Broadcast(livesync.Event{Collection: c}) })
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	app := fiber.New(fiber.Config{Views: web.Engine(), ErrorHandler: handlers.ErrorHandler})
	app.Use(requestid.New())
	app.Use(handlers.Observe(m))
	if o.extras != nil {
		o.extras(app)
	}
	feed := livesync.NewFeed(hub, store)
	var state services.StateSource = services.StoreState{Docs: store}
	if o.mirror {
		lister := o.lister
		if lister == nil {
			lister = store
		}
		mfeed := livesync.NewFeed(hub, lister)
		mfeed.RetryBase = 5 * time.Millisecond
		mirror := livesync.NewMirror(mfeed)
		if o.mirrorWait > 0 {
			mirror.Wait = o.mirrorWait
		}
		ctx, cancel := context.WithCancel(context.Background())
		mirror.Start(ctx)
		t.Cleanup(func() {
			mirror.Stop()
			cancel()
		})
		state = mirror
	}
	deps := handlers.NewDeps(o.ctx, o.store, state, feed, m)
	handlers.Mount(app, deps)
	app.Get("/metrics", handlers.MetricsHandler(reg))
	app.Use(handlers.NotFound)
	return testApp{app: app, store: store, reg: reg}
}

// do sends a request and decodes a JSON response body into out when given.
func (a testApp) do(t *testing.T, method, path string, body any, out any) *http.Response {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.app.Test(req, 5000)
	require.NoError(t, err)
	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out), string(raw))
	}
	return resp
}

type logEntry struct {
	Kind   string         `json:"kind"`
	Action string         `json:"action"`
	ReqID  string         `json:"req_id"`
	Err    string         `json:"err"`
	Fields map[string]any `json:"fields"`
}

type lockedBuf struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var buf lockedBuf
	restore := applog.SetOutput(&buf)
	fn()
	restore()

	buf.mu.Lock()
	defer buf.mu.Unlock()
	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.b.String()), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func findAction(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}

type flakyStore struct {
	*repos.DocStore
}

func (flakyStore) RunInTx(context.Context, func(tx repos.Docs) error) error {
	return errors.New("database is locked")
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}
