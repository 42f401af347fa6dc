package services

import "rentdesk/internal/domain"

func SetDashboardClock(s *DashboardService, today func() domain.Date) { s.today = today }

func SetInventoryClock(s *InventoryService, today func() domain.Date) { s.today = today }
