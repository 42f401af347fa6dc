package repos

import (
	"context"
	"encoding/json"
	"fmt"

	"rentdesk/internal/domain"
	applog "rentdesk/internal/log"
)

type ReservationRepo struct{ docs Docs }

func NewReservationRepo(docs Docs) *ReservationRepo { return &ReservationRepo{docs: docs} }

// reservationRecord is the stored shape, including the old single-day "date" field.
type reservationRecord struct {
	domain.Reservation
	Date domain.Date `json:"date"`
}

// DecodeReservation maps a stored document onto a Reservation. Records written
// before date ranges existed carry only "date", which becomes both bounds.
// A missing status means active.
func DecodeReservation(doc Document) (domain.Reservation, error) {
	var rec reservationRecord
	if err := json.Unmarshal(doc.Data, &rec); err != nil {
		return domain.Reservation{}, fmt.Errorf("reservation %s: %w", doc.ID, err)
	}
	r := rec.Reservation
	r.ID = doc.ID
	if r.DateFrom.IsZero() {
		r.DateFrom = rec.Date
	}
	if r.DateTo.IsZero() {
		r.DateTo = rec.Date
	}
	if r.Status == "" {
		r.Status = domain.StatusActive
	}
	if r.Items == nil {
		r.Items = []domain.LineItem{}
	}
	return r, nil
}

func DecodeReservationList(docs []Document) []domain.Reservation {
	out := make([]domain.Reservation, 0, len(docs))
	for _, d := range docs {
		r, err := DecodeReservation(d)
		if err != nil {
			applog.Warn(nil, "reservation.decode.skip", err, map[string]any{"id": d.ID})
			continue
		}
		out = append(out, r)
	}
	return out
}

func reservationFields(r domain.Reservation) (map[string]any, error) {
	fields, err := Fields(r)
	if err != nil {
		return nil, fmt.Errorf("encode reservation: %w", err)
	}
	delete(fields, "id")
	return fields, nil
}

func (r *ReservationRepo) List(ctx context.Context) ([]domain.Reservation, error) {
	docs, err := r.docs.List(ctx, domain.CollectionReservations)
	if err != nil {
		return nil, err
	}
	return DecodeReservationList(docs), nil
}

func (r *ReservationRepo) Get(ctx context.Context, id string) (domain.Reservation, error) {
	doc, err := r.docs.Get(ctx, domain.CollectionReservations, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	return DecodeReservation(doc)
}

func (r *ReservationRepo) Create(ctx context.Context, res domain.Reservation) (string, error) {
	fields, err := reservationFields(res)
	if err != nil {
		return "", err
	}
	return r.docs.Create(ctx, domain.CollectionReservations, fields)
}

// Replace overwrites the whole document, dropping legacy keys such as "date".
func (r *ReservationRepo) Replace(ctx context.Context, id string, res domain.Reservation) error {
	fields, err := reservationFields(res)
	if err != nil {
		return err
	}
	return r.docs.Replace(ctx, domain.CollectionReservations, id, fields)
}

func (r *ReservationRepo) SetStatus(ctx context.Context, id string, st domain.Status) error {
	return r.docs.Update(ctx, domain.CollectionReservations, id, map[string]any{"status": string(st)})
}

func (r *ReservationRepo) Delete(ctx context.Context, id string) error {
	return r.docs.Delete(ctx, domain.CollectionReservations, id)
}
