package wizard

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrDraftNotFound = errors.New("draft not found")

type Draft struct {
	ID        uuid.UUID `json:"id"`
	Form      *Form     `json:"form"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry keeps the open course forms, one per draft ID.
// Drafts must only be touched inside Read or Update.
type Registry struct {
	mu     sync.RWMutex
	drafts map[uuid.UUID]*Draft
	now    func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		drafts: make(map[uuid.UUID]*Draft),
		now:    time.Now,
	}
}

// SetClock replaces the registry clock.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

func (r *Registry) Create(mode Mode) uuid.UUID {
	return r.Put(NewForm(mode))
}

func (r *Registry) Put(form *Form) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	d := &Draft{ID: uuid.New(), Form: form, CreatedAt: now, UpdatedAt: now}
	r.drafts[d.ID] = d
	return d.ID
}

func (r *Registry) Read(id uuid.UUID, fn func(*Draft) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.drafts[id]
	if !ok {
		return ErrDraftNotFound
	}
	return fn(d)
}

// Update runs fn with exclusive access to the draft and bumps UpdatedAt when
// fn succeeds.
func (r *Registry) Update(id uuid.UUID, fn func(*Draft) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drafts[id]
	if !ok {
		return ErrDraftNotFound
	}
	if err := fn(d); err != nil {
		return err
	}
	d.UpdatedAt = r.now()
	return nil
}

// Take removes the draft so a submission owns it; Restore hands it back
// when the submission fails.
func (r *Registry) Take(id uuid.UUID) (*Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drafts[id]
	if !ok {
		return nil, ErrDraftNotFound
	}
	delete(r.drafts, id)
	return d, nil
}

func (r *Registry) Restore(d *Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[d.ID] = d
}

func (r *Registry) Delete(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.drafts[id]; !ok {
		return false
	}
	delete(r.drafts, id)
	return true
}

// Sweep drops drafts untouched for longer than maxAge and returns how many
// were removed.
func (r *Registry) Sweep(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	removed := 0
	for id, d := range r.drafts {
		if d.UpdatedAt.Before(cutoff) {
			delete(r.drafts, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drafts)
}
