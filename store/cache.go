package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/vnkhanh/e-course-backend/metrics"
	"github.com/vnkhanh/e-course-backend/models"
	"github.com/vnkhanh/e-course-backend/services"
)

// StaleAfter is how long a fetched snapshot is served before Initialize fetches again.
const StaleAfter = 5 * time.Minute

var (
	ErrCourseNotFound = services.ErrCourseNotFound
	ErrTitleRequired  = errors.New("course title is required")
)

type InitResult struct {
	Cached bool `json:"cached"`
}

type Snapshot struct {
	Courses     []CourseRow       `json:"courses"`
	Categories  []models.Category `json:"categories"`
	Instructors []string          `json:"instructors"`
	FetchedAt   time.Time         `json:"fetched_at"`
}

// CoursePatch holds the course columns UpdateCourse writes; nil fields are left alone.
type CoursePatch struct {
	Title            *string              `json:"title,omitempty"`
	Slug             *string              `json:"slug,omitempty"`
	ShortDescription *string              `json:"short_description,omitempty"`
	Description      *string              `json:"description,omitempty"`
	Image            *string              `json:"image,omitempty"`
	Category         *string              `json:"category,omitempty"`
	Subcategory      *string              `json:"subcategory,omitempty"`
	Level            *string              `json:"level,omitempty"`
	Language         *string              `json:"language,omitempty"`
	Price            *float64             `json:"price,omitempty"`
	OriginalPrice    *float64             `json:"originalPrice,omitempty"`
	Featured         *bool                `json:"featured,omitempty"`
	Bestseller       *bool                `json:"bestseller,omitempty"`
	Status           *models.CourseStatus `json:"status,omitempty"`
}

// Cache holds the last fetched courses, instructors and categories. Writes
// go to the backend first; the cached rows change only after the backend
// accepted them.
type Cache struct {
	db      services.Database
	storage services.Storage
	log     *zap.Logger
	now     func() time.Time

	// OnChange runs after every successful write.
	OnChange func()

	mu          sync.RWMutex
	courses     []models.Course
	instructors []models.Instructor
	categories  []models.Category
	fetchedAt   time.Time
	lastErr     string
}

func NewCache(db services.Database, st services.Storage, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{db: db, storage: st, log: log, now: time.Now}
}

func (c *Cache) SetClock(now func() time.Time) { c.now = now }

// Initialize fetches when nothing is cached or the snapshot is older than
// StaleAfter, and is a no-op otherwise.
func (c *Cache) Initialize(ctx context.Context) (InitResult, error) {
	c.mu.RLock()
	fresh := len(c.courses) > 0 && c.now().Sub(c.fetchedAt) < StaleAfter
	c.mu.RUnlock()
	if fresh {
		return InitResult{Cached: true}, nil
	}
	return InitResult{}, c.Refresh(ctx)
}

// Refresh always fetches. Concurrent refreshes are not merged; the last one
// to finish wins.
func (c *Cache) Refresh(ctx context.Context) error {
	metrics.CacheFetches.Inc()

	var courses []models.Course
	if err := c.db.Select(ctx, services.TableCourses, &courses, services.Query{}.OrderBy("created_at", true)); err != nil {
		return c.fail("fetch courses", err)
	}
	var instructors []models.Instructor
	if err := c.db.Select(ctx, services.TableInstructors, &instructors, services.Query{}); err != nil {
		return c.fail("fetch instructors", err)
	}
	var categories []models.Category
	if err := c.db.Select(ctx, services.TableCategories, &categories, services.Query{}.OrderBy("name", false)); err != nil {
		return c.fail("fetch categories", err)
	}

	c.mu.Lock()
	c.courses = courses
	c.instructors = instructors
	c.categories = categories
	c.fetchedAt = c.now()
	c.lastErr = ""
	c.mu.Unlock()

	c.log.Debug("course cache refreshed", zap.Int("courses", len(courses)))
	return nil
}

// Invalidate makes the next Initialize fetch.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

// Err is the message of the last failed fetch or write, empty after a success.
func (c *Cache) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Cache) fail(what string, err error) error {
	err = fmt.Errorf("%s: %w", what, err)
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
	c.log.Error("course store", zap.String("op", what), zap.Error(err))
	return err
}

func (c *Cache) succeed() {
	c.mu.Lock()
	c.lastErr = ""
	c.mu.Unlock()
	if c.OnChange != nil {
		c.OnChange()
	}
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := map[string]bool{}
	names := []string{}
	for _, in := range c.instructors {
		if in.Name != "" && !seen[in.Name] {
			seen[in.Name] = true
			names = append(names, in.Name)
		}
	}
	return Snapshot{
		Courses:     JoinInstructors(c.courses, c.instructors),
		Categories:  append([]models.Category(nil), c.categories...),
		Instructors: names,
		FetchedAt:   c.fetchedAt,
	}
}

// Filtered is FilterCourses over the cached rows.
func (c *Cache) Filtered(v View) []CourseRow {
	return FilterCourses(c.Snapshot().Courses, v)
}

// Page is Paginate over Filtered.
func (c *Cache) Page(v View) Page {
	return Paginate(c.Filtered(v), v)
}

func (c *Cache) Course(id int64) (CourseRow, bool) {
	for _, row := range c.Snapshot().Courses {
		if row.ID == id {
			return row, true
		}
	}
	return CourseRow{}, false
}

func (c *Cache) patchCourse(id int64, fn func(*models.Course)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.courses {
		if c.courses[i].ID == id {
			fn(&c.courses[i])
			return
		}
	}
}

func (c *Cache) setStatus(ctx context.Context, id int64, status models.CourseStatus, what string) error {
	at := c.now()
	fields := map[string]any{"status": status, "updated_at": at}
	if err := c.db.Update(ctx, services.TableCourses, fields, "id", id); err != nil {
		if errors.Is(err, services.ErrNoRows) {
			err = ErrCourseNotFound
		}
		return c.fail(fmt.Sprintf("%s course %d", what, id), err)
	}
	c.patchCourse(id, func(course *models.Course) {
		course.Status = status
		course.UpdatedAt = at
	})
	c.succeed()
	return nil
}

func (c *Cache) PublishCourse(ctx context.Context, id int64) error {
	return c.setStatus(ctx, id, models.StatusPublished, "publish")
}

func (c *Cache) UnpublishCourse(ctx context.Context, id int64) error {
	return c.setStatus(ctx, id, models.StatusDraft, "unpublish")
}

// ToggleCourseStatus publishes a course that is not published and moves a
// published one back to draft.
func (c *Cache) ToggleCourseStatus(ctx context.Context, id int64) (models.CourseStatus, error) {
	row, ok := c.Course(id)
	if !ok {
		return "", c.fail(fmt.Sprintf("toggle course %d", id), ErrCourseNotFound)
	}
	next := models.StatusPublished
	if row.Status == models.StatusPublished {
		next = models.StatusDraft
	}
	if err := c.setStatus(ctx, id, next, "toggle"); err != nil {
		return "", err
	}
	return next, nil
}

// AddCourse inserts a bare course row (no instructor or content) and
// prepends it to the cached list.
func (c *Cache) AddCourse(ctx context.Context, course models.Course) (models.Course, error) {
	course.Title = strings.TrimSpace(course.Title)
	if course.Title == "" {
		return models.Course{}, c.fail("add course", ErrTitleRequired)
	}
	if strings.TrimSpace(course.Slug) == "" {
		course.Slug = slug.Make(course.Title)
	}
	if course.Status == "" {
		course.Status = models.StatusDraft
	}
	if !course.Status.Valid() {
		return models.Course{}, c.fail("add course", fmt.Errorf("invalid status %q", course.Status))
	}
	at := c.now()
	course.ID = 0
	course.CreatedAt, course.UpdatedAt = at, at

	if err := c.db.Insert(ctx, services.TableCourses, &course); err != nil {
		return models.Course{}, c.fail("add course", err)
	}

	c.mu.Lock()
	c.courses = append([]models.Course{course}, c.courses...)
	c.mu.Unlock()
	c.succeed()
	return course, nil
}

func (p CoursePatch) columns() map[string]any {
	fields := map[string]any{}
	set := func(col string, ok bool, v any) {
		if ok {
			fields[col] = v
		}
	}
	set("title", p.Title != nil, deref(p.Title))
	set("slug", p.Slug != nil, deref(p.Slug))
	set("short_description", p.ShortDescription != nil, deref(p.ShortDescription))
	set("description", p.Description != nil, deref(p.Description))
	set("image", p.Image != nil, deref(p.Image))
	set("category", p.Category != nil, deref(p.Category))
	set("subcategory", p.Subcategory != nil, deref(p.Subcategory))
	set("level", p.Level != nil, deref(p.Level))
	set("language", p.Language != nil, deref(p.Language))
	set("price", p.Price != nil, deref(p.Price))
	set("originalPrice", p.OriginalPrice != nil, deref(p.OriginalPrice))
	set("featured", p.Featured != nil, deref(p.Featured))
	set("bestseller", p.Bestseller != nil, deref(p.Bestseller))
	set("status", p.Status != nil, deref(p.Status))
	return fields
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (p CoursePatch) apply(c *models.Course) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Slug != nil {
		c.Slug = *p.Slug
	}
	if p.ShortDescription != nil {
		c.ShortDescription = *p.ShortDescription
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Image != nil {
		c.Image = *p.Image
	}
	if p.Category != nil {
		c.Category = *p.Category
	}
	if p.Subcategory != nil {
		c.Subcategory = *p.Subcategory
	}
	if p.Level != nil {
		c.Level = *p.Level
	}
	if p.Language != nil {
		c.Language = *p.Language
	}
	if p.Price != nil {
		c.Price = *p.Price
	}
	if p.OriginalPrice != nil {
		c.OriginalPrice = *p.OriginalPrice
	}
	if p.Featured != nil {
		c.Featured = *p.Featured
	}
	if p.Bestseller != nil {
		c.Bestseller = *p.Bestseller
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
}

// UpdateCourse writes the set fields of patch and mirrors them into the cache.
func (c *Cache) UpdateCourse(ctx context.Context, id int64, patch CoursePatch) error {
	what := fmt.Sprintf("update course %d", id)
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return c.fail(what, ErrTitleRequired)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return c.fail(what, fmt.Errorf("invalid status %q", *patch.Status))
	}
	at := c.now()
	fields := patch.columns()
	fields["updated_at"] = at

	if err := c.db.Update(ctx, services.TableCourses, fields, "id", id); err != nil {
		if errors.Is(err, services.ErrNoRows) {
			err = ErrCourseNotFound
		}
		return c.fail(what, err)
	}
	c.patchCourse(id, func(course *models.Course) {
		patch.apply(course)
		course.UpdatedAt = at
	})
	c.succeed()
	return nil
}

// DeleteCourse removes the course and all of its content in one backend
// transaction, then drops its media from storage.
func (c *Cache) DeleteCourse(ctx context.Context, id int64) error {
	var media []string
	err := c.db.Transaction(ctx, func(tx services.Tables) error {
		var err error
		media, err = services.DeleteCourseTree(ctx, tx, id)
		return err
	})
	if err != nil {
		return c.fail(fmt.Sprintf("delete course %d", id), err)
	}
	if c.storage != nil {
		services.RemoveMedia(context.WithoutCancel(ctx), c.storage, media, c.log)
	}

	c.mu.Lock()
	courses := c.courses[:0:0]
	for _, course := range c.courses {
		if course.ID != id {
			courses = append(courses, course)
		}
	}
	instructors := c.instructors[:0:0]
	for _, in := range c.instructors {
		if in.CourseID != id {
			instructors = append(instructors, in)
		}
	}
	c.courses, c.instructors = courses, instructors
	c.mu.Unlock()

	c.succeed()
	return nil
}
