package repos

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"rentdesk/internal/domain"
)

// Document is one stored record: a store-assigned id plus its JSON field map.
type Document struct {
	ID        string
	Data      json.RawMessage
	CreatedAt string
	UpdatedAt string
}

type docRow struct {
	ID        string         `db:"id"`
	Data      string         `db:"data"`
	CreatedAt string         `db:"created_at"`
	UpdatedAt sql.NullString `db:"updated_at"`
}

func (r docRow) doc() Document {
	return Document{ID: r.ID, Data: json.RawMessage(r.Data), CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt.String}
}

// Docs is the document-store surface shared by DocStore and a running transaction.
type Docs interface {
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Replace(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
}

// DocStore keeps collections of JSON documents in sqlite and reports every
// committed write to its change listeners.
type DocStore struct {
	db  *sqlx.DB
	ops docOps

	mu        sync.RWMutex
	listeners []func(collection string)
}

func NewDocStore(db *sqlx.DB) *DocStore {
	return &DocStore{db: db, ops: docOps{q: db}}
}

// OnChange registers fn to be called with the collection name after each
// committed write. fn must not block.
func (s *DocStore) OnChange(fn func(collection string)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *DocStore) fire(collections ...string) {
	s.mu.RLock()
	ls := append([]func(string){}, s.listeners...)
	s.mu.RUnlock()
	for _, c := range collections {
		for _, fn := range ls {
			fn(c)
		}
	}
}

func (s *DocStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id, err := s.ops.create(ctx, collection, fields)
	if err == nil {
		s.fire(collection)
	}
	return id, err
}

func (s *DocStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	changed, err := s.ops.update(ctx, collection, id, fields, false)
	if err == nil && changed {
		s.fire(collection)
	}
	return err
}

func (s *DocStore) Replace(ctx context.Context, collection, id string, fields map[string]any) error {
	changed, err := s.ops.update(ctx, collection, id, fields, true)
	if err == nil && changed {
		s.fire(collection)
	}
	return err
}

func (s *DocStore) Delete(ctx context.Context, collection, id string) error {
	changed, err := s.ops.delete(ctx, collection, id)
	if err == nil && changed {
		s.fire(collection)
	}
	return err
}

func (s *DocStore) Get(ctx context.Context, collection, id string) (Document, error) {
	return s.ops.get(ctx, collection, id)
}

func (s *DocStore) List(ctx context.Context, collection string) ([]Document, error) {
	return s.ops.list(ctx, collection)
}

// RunInTx runs fn inside one sqlite transaction. Listeners hear about the
// touched collections only after commit. fn must use the Docs it is given.
func (s *DocStore) RunInTx(ctx context.Context, fn func(tx Docs) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	dt := &docTx{ops: docOps{q: tx}, touched: map[string]struct{}{}}
	if err := fn(dt); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	touched := make([]string, 0, len(dt.touched))
	for c := range dt.touched {
		touched = append(touched, c)
	}
	s.fire(touched...)
	return nil
}

type docTx struct {
	ops     docOps
	touched map[string]struct{}
}

func (t *docTx) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id, err := t.ops.create(ctx, collection, fields)
	if err == nil {
		t.touched[collection] = struct{}{}
	}
	return id, err
}

func (t *docTx) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	changed, err := t.ops.update(ctx, collection, id, fields, false)
	if err == nil && changed {
		t.touched[collection] = struct{}{}
	}
	return err
}

func (t *docTx) Replace(ctx context.Context, collection, id string, fields map[string]any) error {
	changed, err := t.ops.update(ctx, collection, id, fields, true)
	if err == nil && changed {
		t.touched[collection] = struct{}{}
	}
	return err
}

func (t *docTx) Delete(ctx context.Context, collection, id string) error {
	changed, err := t.ops.delete(ctx, collection, id)
	if err == nil && changed {
		t.touched[collection] = struct{}{}
	}
	return err
}

func (t *docTx) Get(ctx context.Context, collection, id string) (Document, error) {
	return t.ops.get(ctx, collection, id)
}

func (t *docTx) List(ctx context.Context, collection string) ([]Document, error) {
	return t.ops.list(ctx, collection)
}

// docOps runs the statements against either the pool or a transaction.
type docOps struct{ q sqlx.ExtContext }

func (o docOps) create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	delete(fields, "id")
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode %s document: %w", collection, err)
	}
	id := uuid.NewString()
	if _, err := o.q.ExecContext(ctx, `
		INSERT INTO documents(collection, id, data, created_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	`, collection, id, string(data)); err != nil {
		return "", fmt.Errorf("create %s document: %w", collection, err)
	}
	return id, nil
}

// update merges fields into the stored map (replace=true overwrites it). A nil
// value removes the key. Missing documents are left alone and report changed=false.
func (o docOps) update(ctx context.Context, collection, id string, fields map[string]any, replace bool) (bool, error) {
	current := map[string]any{}
	if !replace {
		doc, err := o.get(ctx, collection, id)
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if current, err = DecodeFields(doc.Data); err != nil {
			return false, err
		}
	}
	for k, val := range fields {
		if k == "id" {
			continue
		}
		if val == nil {
			delete(current, k)
			continue
		}
		current[k] = val
	}
	data, err := json.Marshal(current)
	if err != nil {
		return false, fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	res, err := o.q.ExecContext(ctx, `
		UPDATE documents SET data = ?, updated_at = CURRENT_TIMESTAMP
		WHERE collection = ? AND id = ?
	`, string(data), collection, id)
	if err != nil {
		return false, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (o docOps) delete(ctx context.Context, collection, id string) (bool, error) {
	res, err := o.q.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (o docOps) get(ctx context.Context, collection, id string) (Document, error) {
	var row docRow
	err := sqlx.GetContext(ctx, o.q, &row, `
		SELECT id, data, created_at, updated_at FROM documents
		WHERE collection = ? AND id = ?
	`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return row.doc(), nil
}

func (o docOps) list(ctx context.Context, collection string) ([]Document, error) {
	var rows []docRow
	if err := sqlx.SelectContext(ctx, o.q, &rows, `
		SELECT id, data, created_at, updated_at FROM documents
		WHERE collection = ?
		ORDER BY created_at, rowid
	`, collection); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	out := make([]Document, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.doc())
	}
	return out, nil
}

// Fields converts a JSON-tagged value into a document field map.
func Fields(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return DecodeFields(b)
}

// DecodeFields parses a JSON object keeping numbers exact.
func DecodeFields(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out := map[string]any{}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode document fields: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
