package store

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnkhanh/e-course-backend/models"
)

var day0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func sampleRows() []CourseRow {
	titles := []string{"soil 101", "Rocks", "alpha", "Beta", "Composting", "Water", "Seeds", "Trees",
		"Irrigation", "Worms", "Mulch", "Soil 201", "Crops", "Weather", "Bees", "Fungi", "Roots",
		"Clay", "Sand", "Silt", "Humus", "Peat", "Loam"}
	statuses := []models.CourseStatus{models.StatusDraft, models.StatusPublished, models.StatusArchived}
	names := []string{"A. Farmer", "B. Gardener", "C. Botanist"}
	levels := []string{"Beginner", "Intermediate", "Advanced"}

	rows := make([]CourseRow, len(titles))
	for i, title := range titles {
		rows[i] = CourseRow{
			Course: models.Course{
				ID:          int64(i + 1),
				Title:       title,
				Description: fmt.Sprintf("course number %d", i),
				Category:    []string{"Science", "Garden"}[i%2],
				Level:       levels[i%3],
				Price:       float64(i%4) * 10,
				Status:      statuses[i%3],
				CreatedAt:   day0.Add(time.Duration(i) * 12 * time.Hour),
				UpdatedAt:   day0.Add(time.Duration(len(titles)-i) * time.Hour),
			},
			Instructor: names[i%3],
		}
	}
	return rows
}

func TestPagesConcatenateToFilteredList(t *testing.T) {
	rows := sampleRows()
	searches := []string{"", "soil", "SOIL", "farmer", "number 1", "nothing matches"}
	statuses := []string{"", "all", "published", "draft"}
	sorts := []SortField{SortTitle, SortPrice, SortCreatedAt, SortUpdatedAt, SortLevel, SortStatus}
	sizes := []int{1, 4, 10, 50}

	for _, search := range searches {
		for _, status := range statuses {
			for _, sortBy := range sorts {
				for _, size := range sizes {
					v := NewView(size)
					v.SetSearchQuery(search)
					v.SetFilters(FilterPatch{Status: &status})
					v.SetSortBy(sortBy)

					filtered := FilterCourses(rows, v)
					var all []CourseRow
					first := Paginate(filtered, v)
					for p := 1; p <= first.TotalPages; p++ {
						v.SetCurrentPage(p)
						page := Paginate(filtered, v)
						assert.LessOrEqual(t, len(page.Courses), size)
						all = append(all, page.Courses...)
					}
					name := fmt.Sprintf("%q/%q/%s/%d", search, status, sortBy, size)
					assert.Equal(t, len(filtered), len(all), name)
					for i := range all {
						assert.Equal(t, filtered[i].ID, all[i].ID, name)
					}
				}
			}
		}
	}
}

func TestSearchMatchesTitleDescriptionOrInstructor(t *testing.T) {
	rows := sampleRows()
	for _, q := range []string{"soil", "GARDENER", "number 2", "zzz"} {
		v := NewView(10)
		v.SetSearchQuery(q)
		got := FilterCourses(rows, v)
		lq := strings.ToLower(q)
		for _, r := range got {
			hit := strings.Contains(strings.ToLower(r.Title), lq) ||
				strings.Contains(strings.ToLower(r.Description), lq) ||
				strings.Contains(strings.ToLower(r.Instructor), lq)
			assert.True(t, hit, "%q returned %q", q, r.Title)
		}
		matching := 0
		for _, r := range rows {
			if strings.Contains(strings.ToLower(r.Title+"|"+r.Description+"|"+r.Instructor), lq) {
				matching++
			}
		}
		assert.Len(t, got, matching, q)
	}
}

func TestSettersResetPage(t *testing.T) {
	status := "published"
	setters := map[string]func(*View){
		"search":  func(v *View) { v.SetSearchQuery("x") },
		"filters": func(v *View) { v.SetFilters(FilterPatch{Status: &status}) },
		"sort by": func(v *View) { v.SetSortBy(SortTitle) },
		"order":   func(v *View) { v.SetSortOrder(Asc) },
	}
	for name, set := range setters {
		v := NewView(10)
		v.SetCurrentPage(4)
		set(&v)
		assert.Equal(t, 1, v.CurrentPage, name)
	}

	v := NewView(10)
	v.SetCurrentPage(4)
	assert.Equal(t, 4, v.CurrentPage)
}

func TestFilterPatchKeepsUnsetFilters(t *testing.T) {
	v := NewView(10)
	level, cat := "Beginner", "Science"
	v.SetFilters(FilterPatch{Level: &level})
	v.SetFilters(FilterPatch{Category: &cat})
	assert.Equal(t, "Beginner", v.Filters.Level)
	assert.Equal(t, "Science", v.Filters.Category)
}

func TestPriceBucketAndEqualityFilters(t *testing.T) {
	rows := sampleRows()
	free, paid := PriceFree, PricePaid
	inst := "B. Gardener"

	v := NewView(100)
	v.SetFilters(FilterPatch{Price: &free})
	for _, r := range FilterCourses(rows, v) {
		assert.Zero(t, r.Price)
	}

	v = NewView(100)
	v.SetFilters(FilterPatch{Price: &paid, Instructor: &inst})
	got := FilterCourses(rows, v)
	require.NotEmpty(t, got)
	for _, r := range got {
		assert.Positive(t, r.Price)
		assert.Equal(t, inst, r.Instructor)
	}
}

func TestCreatedRangeIsDayAligned(t *testing.T) {
	rows := sampleRows()
	from := time.Date(2024, 5, 2, 23, 0, 0, 0, time.UTC) // any time on May 2
	to := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)    // midnight still covers all of May 3

	v := NewView(100)
	v.SetFilters(FilterPatch{CreatedFrom: &from, CreatedTo: &to})
	got := FilterCourses(rows, v)
	// two courses a day, starting May 1 10:00
	require.Len(t, got, 4)
	for _, r := range got {
		assert.Contains(t, []int{2, 3}, r.CreatedAt.Day())
	}
}

func TestSortIsCaseInsensitiveAndStable(t *testing.T) {
	rows := []CourseRow{
		{Course: models.Course{ID: 1, Title: "beta", Price: 5}},
		{Course: models.Course{ID: 2, Title: "Alpha", Price: 5}},
		{Course: models.Course{ID: 3, Title: "alpha", Price: 1}},
		{Course: models.Course{ID: 4, Title: "Gamma", Price: 5}},
	}

	v := NewView(10)
	v.SetSortBy(SortTitle)
	v.SetSortOrder(Asc)
	assert.Equal(t, []int64{2, 3, 1, 4}, ids(FilterCourses(rows, v)))

	v.SetSortBy(SortPrice)
	v.SetSortOrder(Desc)
	assert.Equal(t, []int64{1, 2, 4, 3}, ids(FilterCourses(rows, v)))

	// the input order is untouched
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(rows))
}

func TestPaginateBounds(t *testing.T) {
	rows := sampleRows()
	v := NewView(10)

	p := Paginate(rows, v)
	assert.Equal(t, 23, p.Total)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.False(t, p.HasPrev)

	v.SetCurrentPage(3)
	p = Paginate(rows, v)
	assert.Len(t, p.Courses, 3)
	assert.False(t, p.HasNext)
	assert.True(t, p.HasPrev)

	v.SetCurrentPage(9)
	assert.Empty(t, Paginate(rows, v).Courses)

	empty := Paginate(nil, NewView(10))
	assert.Zero(t, empty.TotalPages)
	assert.Empty(t, empty.Courses)
}

func ids(rows []CourseRow) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}
