package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/repos"
)

type downLister struct{}

func (downLister) List(context.Context, string) ([]repos.Document, error) {
	return nil, errors.New("database is locked")
}

func TestDashboardReadsThroughMirror(t *testing.T) {
	a := newApp(t, withMirror)

	var pagoda itemResp
	a.do(t, "POST", "/api/v1/inventory", map[string]any{"name": "Pagoda", "category": "Pagodas", "quantity": 2}, &pagoda)
	var r reservationResp
	resp := a.do(t, "POST", "/api/v1/reservations", reservationBody(pagoda.ID, 2), &r)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Eventually(t, func() bool {
		var board struct {
			Count int `json:"monthlyCount"`
		}
		resp := a.do(t, "GET", "/api/v1/dashboard?month=2025-06", nil, &board)
		return resp.StatusCode == http.StatusOK && board.Count == 1
	}, 2*time.Second, 10*time.Millisecond)

	var avail struct {
		Items []itemResp `json:"items"`
	}
	a.do(t, "GET", "/api/v1/availability?from=2025-06-01&to=2025-06-03", nil, &avail)
	assert.Empty(t, avail.Items, "all units are out")

	resp = a.do(t, "GET", "/api/v1/availability?from=2025-06-01&to=2025-06-03&current="+pagoda.ID+"&selected="+pagoda.ID+"&editing="+r.ID, nil, &avail)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, avail.Items, 1, "the booking being edited still sees the units it holds")
	assert.Equal(t, pagoda.ID, avail.Items[0].ID)
}

func TestDashboardWhileMirrorNotLoaded(t *testing.T) {
	a := newApp(t, func(o *appOpts) {
		o.mirror = true
		o.lister = downLister{}
		o.mirrorWait = 50 * time.Millisecond
	})

	var e errorResp
	resp := a.do(t, "GET", "/api/v1/dashboard", nil, &e)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.True(t, e.Retryable)

	resp = a.do(t, "GET", "/", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
