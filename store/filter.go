package store

import (
	"sort"
	"strings"

	"github.com/jinzhu/now"

	"github.com/vnkhanh/e-course-backend/models"
)

// CourseRow is a course joined with its instructor's name.
type CourseRow struct {
	models.Course
	Instructor string `json:"instructor"`
}

type Page struct {
	Courses      []CourseRow `json:"courses"`
	Total        int         `json:"total"`
	TotalPages   int         `json:"total_pages"`
	CurrentPage  int         `json:"current_page"`
	ItemsPerPage int         `json:"items_per_page"`
	HasNext      bool        `json:"has_next"`
	HasPrev      bool        `json:"has_prev"`
}

// JoinInstructors pairs every course with the name of its instructor.
func JoinInstructors(courses []models.Course, instructors []models.Instructor) []CourseRow {
	names := make(map[int64]string, len(instructors))
	for _, in := range instructors {
		if _, ok := names[in.CourseID]; !ok {
			names[in.CourseID] = in.Name
		}
	}
	rows := make([]CourseRow, len(courses))
	for i, c := range courses {
		rows[i] = CourseRow{Course: c, Instructor: names[c.ID]}
	}
	return rows
}

func active(filter string) bool {
	return filter != "" && filter != FilterAll
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

// FilterCourses applies the search, then the equality filters, then the
// price bucket and created-date range, and finally a stable sort. The input
// slice is not modified.
func FilterCourses(rows []CourseRow, v View) []CourseRow {
	q := strings.ToLower(strings.TrimSpace(v.Search))
	f := v.Filters

	var from, to int64
	if !f.CreatedFrom.IsZero() {
		from = now.With(f.CreatedFrom).BeginningOfDay().UnixNano()
	}
	if !f.CreatedTo.IsZero() {
		to = now.With(f.CreatedTo).EndOfDay().UnixNano()
	}

	out := make([]CourseRow, 0, len(rows))
	for _, r := range rows {
		if q != "" && !containsFold(r.Title, q) && !containsFold(r.Description, q) && !containsFold(r.Instructor, q) {
			continue
		}
		if active(f.Status) && string(r.Status) != f.Status {
			continue
		}
		if active(f.Category) && r.Category != f.Category {
			continue
		}
		if active(f.Instructor) && r.Instructor != f.Instructor {
			continue
		}
		if active(f.Level) && r.Level != f.Level {
			continue
		}
		if f.Price == PriceFree && r.Price != 0 {
			continue
		}
		if f.Price == PricePaid && r.Price <= 0 {
			continue
		}
		created := r.CreatedAt.UnixNano()
		if from != 0 && created < from {
			continue
		}
		if to != 0 && created > to {
			continue
		}
		out = append(out, r)
	}

	sortRows(out, v.SortBy, v.SortOrder)
	return out
}

func compareRows(a, b CourseRow, field SortField) int {
	switch field {
	case SortTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case SortLevel:
		return strings.Compare(strings.ToLower(a.Level), strings.ToLower(b.Level))
	case SortCategory:
		return strings.Compare(strings.ToLower(a.Category), strings.ToLower(b.Category))
	case SortStatus:
		return strings.Compare(strings.ToLower(string(a.Status)), strings.ToLower(string(b.Status)))
	case SortPrice:
		switch {
		case a.Price < b.Price:
			return -1
		case a.Price > b.Price:
			return 1
		}
		return 0
	case SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return 0
}

func sortRows(rows []CourseRow, field SortField, order SortOrder) {
	if !field.Valid() {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareRows(rows[i], rows[j], field)
		if order == Asc {
			return c < 0
		}
		return c > 0
	})
}

// Paginate cuts one page out of an already filtered list.
func Paginate(filtered []CourseRow, v View) Page {
	per := v.ItemsPerPage
	if per <= 0 {
		per = DefaultItemsPerPage
	}
	page := v.CurrentPage
	if page < 1 {
		page = 1
	}
	total := len(filtered)
	totalPages := (total + per - 1) / per

	start := (page - 1) * per
	if start > total {
		start = total
	}
	end := start + per
	if end > total {
		end = total
	}

	return Page{
		Courses:      filtered[start:end:end],
		Total:        total,
		TotalPages:   totalPages,
		CurrentPage:  page,
		ItemsPerPage: per,
		HasNext:      page < totalPages,
		HasPrev:      page > 1,
	}
}
