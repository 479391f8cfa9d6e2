package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const zeroTime = "0001-01-01T00:00:00Z"

// RestDatabase talks to the hosted PostgREST endpoint (SUPABASE_URL/rest/v1).
// It has no server-side transactions: Transaction undoes a failed callback with
// compensating writes, newest first.
type RestDatabase struct {
	client *resty.Client
	log    *zap.Logger
}

func NewRestDatabase(supabaseURL, apiKey string, log *zap.Logger) *RestDatabase {
	if log == nil {
		log = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(supabaseURL, "/")+"/rest/v1").
		SetHeader("apikey", apiKey).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")
	return &RestDatabase{client: client, log: log}
}

func eqParam(value any) string {
	return fmt.Sprintf("eq.%v", value)
}

func restError(op, table string, resp *resty.Response) error {
	return fmt.Errorf("%s %s: status %d: %s", op, table, resp.StatusCode(), strings.TrimSpace(resp.String()))
}

func (r *RestDatabase) Select(ctx context.Context, table string, dest any, q Query) error {
	req := r.client.R().SetContext(ctx).SetQueryParam("select", "*").SetResult(dest)
	for _, f := range q.Filters {
		req.SetQueryParam(f.Column, eqParam(f.Value))
	}
	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts = append(parts, o.Column+"."+dir)
		}
		req.SetQueryParam("order", strings.Join(parts, ","))
	}

	resp, err := req.Get("/" + table)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return restError("select", table, resp)
	}
	return nil
}

// insertPayload drops the zero id and zero timestamps so the table defaults apply.
func insertPayload(row any) (map[string]any, error) {
	b, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{}
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil, err
	}
	if id, ok := payload["id"].(float64); ok && id == 0 {
		delete(payload, "id")
	}
	for _, col := range []string{"created_at", "updated_at"} {
		if payload[col] == zeroTime {
			delete(payload, col)
		}
	}
	return payload, nil
}

func (r *RestDatabase) Insert(ctx context.Context, table string, row any) error {
	payload, err := insertPayload(row)
	if err != nil {
		return err
	}

	var inserted []json.RawMessage
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody([]map[string]any{payload}).
		SetResult(&inserted).
		Post("/" + table)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return restError("insert", table, resp)
	}
	if len(inserted) == 0 {
		return ErrEmptyInsertBody
	}
	return json.Unmarshal(inserted[0], row)
}

func (r *RestDatabase) Update(ctx context.Context, table string, fields map[string]any, key string, value any) error {
	var updated []json.RawMessage
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam(key, eqParam(value)).
		SetBody(fields).
		SetResult(&updated).
		Patch("/" + table)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return restError("update", table, resp)
	}
	if len(updated) == 0 {
		return ErrNoRows
	}
	return nil
}

func (r *RestDatabase) Delete(ctx context.Context, table string, key string, value any) error {
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam(key, eqParam(value)).
		Delete("/" + table)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return restError("delete", table, resp)
	}
	return nil
}

func (r *RestDatabase) Ping(ctx context.Context) error {
	resp, err := r.client.R().SetContext(ctx).Get("/")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return restError("ping", "", resp)
	}
	return nil
}

// decodeRow keeps numbers as json.Number so ids round-trip exactly.
func decodeRow(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	row := map[string]any{}
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	return row, nil
}

type journalKind int

const (
	journalInsert journalKind = iota
	journalDelete
	journalUpdate
)

// journalEntry is one write made inside a Transaction callback. rows holds
// the inserted row, the deleted rows, or the old values of updated columns.
type journalEntry struct {
	kind  journalKind
	table string
	rows  []map[string]any
}

// recordingTables journals every write so a failed callback can be undone.
type recordingTables struct {
	Tables
	journal []journalEntry
}

// matching reads the rows a delete or update is about to touch.
func (t *recordingTables) matching(ctx context.Context, table, key string, value any) ([]map[string]any, error) {
	var raw []json.RawMessage
	if err := t.Tables.Select(ctx, table, &raw, Where(key, value)); err != nil {
		return nil, fmt.Errorf("read %s before write: %w", table, err)
	}
	rows := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		row, err := decodeRow(r)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (t *recordingTables) Insert(ctx context.Context, table string, row any) error {
	if err := t.Tables.Insert(ctx, table, row); err != nil {
		return err
	}
	b, err := json.Marshal(row)
	if err != nil {
		return nil
	}
	saved, err := decodeRow(b)
	if err == nil && saved["id"] != nil {
		t.journal = append(t.journal, journalEntry{kind: journalInsert, table: table, rows: []map[string]any{saved}})
	}
	return nil
}

func (t *recordingTables) Delete(ctx context.Context, table string, key string, value any) error {
	rows, err := t.matching(ctx, table, key, value)
	if err != nil {
		return err
	}
	if err := t.Tables.Delete(ctx, table, key, value); err != nil {
		return err
	}
	if len(rows) > 0 {
		t.journal = append(t.journal, journalEntry{kind: journalDelete, table: table, rows: rows})
	}
	return nil
}

func (t *recordingTables) Update(ctx context.Context, table string, fields map[string]any, key string, value any) error {
	rows, err := t.matching(ctx, table, key, value)
	if err != nil {
		return err
	}
	if err := t.Tables.Update(ctx, table, fields, key, value); err != nil {
		return err
	}
	old := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		prev := map[string]any{"id": row["id"]}
		for col := range fields {
			prev[col] = row[col]
		}
		old = append(old, prev)
	}
	if len(old) > 0 {
		t.journal = append(t.journal, journalEntry{kind: journalUpdate, table: table, rows: old})
	}
	return nil
}

func (r *RestDatabase) undo(ctx context.Context, e journalEntry) {
	for _, row := range e.rows {
		var err error
		switch e.kind {
		case journalInsert:
			err = r.Delete(ctx, e.table, "id", row["id"])
		case journalDelete:
			err = r.Insert(ctx, e.table, &row)
		case journalUpdate:
			fields := make(map[string]any, len(row)-1)
			for col, v := range row {
				if col != "id" {
					fields[col] = v
				}
			}
			err = r.Update(ctx, e.table, fields, "id", row["id"])
		}
		if err != nil {
			r.log.Error("compensating write failed",
				zap.String("table", e.table), zap.Any("id", row["id"]), zap.Error(err))
		}
	}
}

// Transaction runs fn against a journal of its writes. When fn fails the
// journal is replayed backwards: inserted rows are deleted, deleted rows are
// inserted again with their old ids, and updated columns get their old values.
func (r *RestDatabase) Transaction(ctx context.Context, fn func(tx Tables) error) error {
	rec := &recordingTables{Tables: r}
	err := fn(rec)
	if err == nil {
		return nil
	}

	undo := context.WithoutCancel(ctx)
	for i := len(rec.journal) - 1; i >= 0; i-- {
		r.undo(undo, rec.journal[i])
	}
	return err
}
