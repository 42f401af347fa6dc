package handlers

import (
	"context"

	"rentdesk/internal/livesync"
	"rentdesk/internal/metrics"
	"rentdesk/internal/services"
)

type Deps struct {
	InventoryHandler   *InventoryHandler
	ReservationHandler *ReservationHandler
	DashboardHandler   *DashboardHandler
	StreamHandler      *StreamHandler
}

// NewDeps builds the handlers over one store. state feeds the dashboard and
// availability reads; feed may be nil, which leaves /stream unmounted.
func NewDeps(ctx context.Context, store services.Store, state services.StateSource, feed *livesync.Feed, m *metrics.Metrics) *Deps {
	invSvc := services.NewInventoryService(store, m)
	resSvc := services.NewReservationService(store, m)
	boardSvc := services.NewDashboardService(state)

	d := &Deps{
		InventoryHandler:   &InventoryHandler{Inv: invSvc},
		ReservationHandler: &ReservationHandler{Res: resSvc},
		DashboardHandler:   &DashboardHandler{Board: boardSvc},
	}
	if feed != nil {
		d.StreamHandler = &StreamHandler{Feed: feed, Metrics: m, Base: ctx}
	}
	return d
}
