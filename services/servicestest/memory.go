// Package servicestest provides in-memory implementations of the services
// backend and storage contracts for tests.
package servicestest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/vnkhanh/e-course-backend/services"
	"github.com/vnkhanh/e-course-backend/utils"
)

var ErrInjected = errors.New("injected failure")

type row = map[string]any

// Database keeps every table as a list of JSON objects keyed by column name,
// the same shape the REST backend exchanges.
type Database struct {
	mu     sync.Mutex
	tables map[string][]row
	nextID map[string]int64

	// FailInsert makes the n-th insert (1-based) into a table fail.
	FailInsert map[string]int
	// FailSelect makes every select on a table fail.
	FailSelect map[string]bool
	// FailUpdate makes every update on a table fail.
	FailUpdate map[string]bool

	inserts map[string]int
}

var _ services.Database = (*Database)(nil)

func NewDatabase() *Database {
	return &Database{
		tables:     map[string][]row{},
		nextID:     map[string]int64{},
		FailInsert: map[string]int{},
		FailSelect: map[string]bool{},
		FailUpdate: map[string]bool{},
		inserts:    map[string]int{},
	}
}

func toRow(v any) (row, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	r := row{}
	return r, json.Unmarshal(b, &r)
}

func same(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func less(a, b any) bool {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return af < bf
	}
	return strings.ToLower(fmt.Sprint(a)) < strings.ToLower(fmt.Sprint(b))
}

// Seed inserts rows directly, bypassing failure injection.
func (d *Database) Seed(table string, rows ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range rows {
		r, err := toRow(v)
		if err != nil {
			panic(err)
		}
		d.assignID(table, r)
		d.tables[table] = append(d.tables[table], r)
	}
}

func (d *Database) assignID(table string, r row) {
	if id, ok := r["id"].(float64); ok && id != 0 {
		if int64(id) > d.nextID[table] {
			d.nextID[table] = int64(id)
		}
		return
	}
	d.nextID[table]++
	r["id"] = float64(d.nextID[table])
}

// Rows returns a copy of a table's rows decoded into dest (a pointer to a slice).
func (d *Database) Rows(table string, dest any) {
	if err := d.Select(context.Background(), table, dest, services.Query{}); err != nil {
		panic(err)
	}
}

func (d *Database) Count(table string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tables[table])
}

func (d *Database) Select(ctx context.Context, table string, dest any, q services.Query) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailSelect[table] {
		return fmt.Errorf("select %s: %w", table, ErrInjected)
	}

	var out []row
	for _, r := range d.tables[table] {
		match := true
		for _, f := range q.Filters {
			if !same(r[f.Column], f.Value) {
				match = false
				break
			}
		}
		if match {
			out = append(out, r)
		}
	}
	for i := len(q.Order) - 1; i >= 0; i-- {
		o := q.Order[i]
		sort.SliceStable(out, func(a, b int) bool {
			if o.Desc {
				return less(out[b][o.Column], out[a][o.Column])
			}
			return less(out[a][o.Column], out[b][o.Column])
		})
	}
	if out == nil {
		out = []row{}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

func (d *Database) Insert(ctx context.Context, table string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inserts[table]++
	if n, ok := d.FailInsert[table]; ok && n == d.inserts[table] {
		return fmt.Errorf("insert %s: %w", table, ErrInjected)
	}

	r, err := toRow(v)
	if err != nil {
		return err
	}
	d.assignID(table, r)
	d.tables[table] = append(d.tables[table], r)

	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (d *Database) Update(ctx context.Context, table string, fields map[string]any, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailUpdate[table] {
		return fmt.Errorf("update %s: %w", table, ErrInjected)
	}
	patch, err := toRow(fields)
	if err != nil {
		return err
	}
	matched := 0
	for _, r := range d.tables[table] {
		if !same(r[key], value) {
			continue
		}
		for k, v := range patch {
			r[k] = v
		}
		matched++
	}
	if matched == 0 {
		return services.ErrNoRows
	}
	return nil
}

func (d *Database) Delete(ctx context.Context, table string, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.tables[table][:0]
	for _, r := range d.tables[table] {
		if !same(r[key], value) {
			kept = append(kept, r)
		}
	}
	d.tables[table] = kept
	return nil
}

func (d *Database) snapshot() map[string][]row {
	copyOf := make(map[string][]row, len(d.tables))
	for table, rows := range d.tables {
		list := make([]row, len(rows))
		for i, r := range rows {
			c := make(row, len(r))
			for k, v := range r {
				c[k] = v
			}
			list[i] = c
		}
		copyOf[table] = list
	}
	return copyOf
}

// Transaction restores every table when fn fails.
func (d *Database) Transaction(ctx context.Context, fn func(tx services.Tables) error) error {
	d.mu.Lock()
	saved := d.snapshot()
	d.mu.Unlock()

	if err := fn(d); err != nil {
		d.mu.Lock()
		d.tables = saved
		d.mu.Unlock()
		return err
	}
	return nil
}

func (d *Database) Ping(ctx context.Context) error { return ctx.Err() }

// Storage keeps uploaded objects in memory.
type Storage struct {
	mu      sync.Mutex
	objects map[string][]byte
	options map[string]utils.UploadOptions

	// FailUpload makes the n-th upload (1-based) fail.
	FailUpload int
	uploads    int
	Removed    []string
}

var _ services.Storage = (*Storage)(nil)

func NewStorage() *Storage {
	return &Storage{objects: map[string][]byte{}, options: map[string]utils.UploadOptions{}}
}

func (s *Storage) Upload(ctx context.Context, bucket, path string, data io.Reader, opts utils.UploadOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.FailUpload == s.uploads {
		return fmt.Errorf("upload %s: %w", path, ErrInjected)
	}
	key := bucket + "/" + path
	if _, exists := s.objects[key]; exists && !opts.Upsert {
		return fmt.Errorf("object %s already exists", key)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return err
	}
	s.objects[key] = buf.Bytes()
	s.options[key] = opts
	return nil
}

func (s *Storage) PublicURL(bucket, path string) string {
	return "https://project.supabase.co/storage/v1/object/public/" + bucket + "/" + path
}

func (s *Storage) Remove(ctx context.Context, bucket string, paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		key := bucket + "/" + p
		delete(s.objects, key)
		s.Removed = append(s.Removed, key)
	}
	return nil
}

// Objects lists the stored object keys as bucket/path.
func (s *Storage) Objects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Storage) Options(key string) utils.UploadOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options[key]
}
