// Package store keeps the admin's snapshot of courses and derives the
// searched, filtered, sorted and paginated dashboard views from it.
package store

import (
	"strings"
	"time"
)

type SortField string

const (
	SortTitle     SortField = "title"
	SortPrice     SortField = "price"
	SortLevel     SortField = "level"
	SortCategory  SortField = "category"
	SortStatus    SortField = "status"
	SortCreatedAt SortField = "created_at"
	SortUpdatedAt SortField = "updated_at"
)

func (f SortField) Valid() bool {
	switch f {
	case SortTitle, SortPrice, SortLevel, SortCategory, SortStatus, SortCreatedAt, SortUpdatedAt:
		return true
	}
	return false
}

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

const (
	DefaultItemsPerPage = 10
	// "all" và chuỗi rỗng đều có nghĩa là không lọc
	FilterAll = "all"

	PriceFree = "free"
	PricePaid = "paid"
)

type Filters struct {
	Status      string    `json:"status"`
	Category    string    `json:"category"`
	Instructor  string    `json:"instructor"`
	Level       string    `json:"level"`
	Price       string    `json:"price"` // free | paid
	CreatedFrom time.Time `json:"created_from"`
	CreatedTo   time.Time `json:"created_to"`
}

// FilterPatch changes only the filters it sets.
type FilterPatch struct {
	Status      *string    `json:"status,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Instructor  *string    `json:"instructor,omitempty"`
	Level       *string    `json:"level,omitempty"`
	Price       *string    `json:"price,omitempty"`
	CreatedFrom *time.Time `json:"created_from,omitempty"`
	CreatedTo   *time.Time `json:"created_to,omitempty"`
}

// View is the dashboard's search, filter, sort and page state. Every setter
// except SetCurrentPage moves the view back to the first page.
type View struct {
	Search       string    `json:"search"`
	Filters      Filters   `json:"filters"`
	SortBy       SortField `json:"sort_by"`
	SortOrder    SortOrder `json:"sort_order"`
	CurrentPage  int       `json:"current_page"`
	ItemsPerPage int       `json:"items_per_page"`
}

func NewView(itemsPerPage int) View {
	if itemsPerPage <= 0 {
		itemsPerPage = DefaultItemsPerPage
	}
	return View{
		SortBy:       SortCreatedAt,
		SortOrder:    Desc,
		CurrentPage:  1,
		ItemsPerPage: itemsPerPage,
	}
}

func (v *View) SetSearchQuery(q string) {
	v.Search = q
	v.CurrentPage = 1
}

func (v *View) SetFilters(p FilterPatch) {
	if p.Status != nil {
		v.Filters.Status = *p.Status
	}
	if p.Category != nil {
		v.Filters.Category = *p.Category
	}
	if p.Instructor != nil {
		v.Filters.Instructor = *p.Instructor
	}
	if p.Level != nil {
		v.Filters.Level = *p.Level
	}
	if p.Price != nil {
		v.Filters.Price = *p.Price
	}
	if p.CreatedFrom != nil {
		v.Filters.CreatedFrom = *p.CreatedFrom
	}
	if p.CreatedTo != nil {
		v.Filters.CreatedTo = *p.CreatedTo
	}
	v.CurrentPage = 1
}

func (v *View) SetSortBy(f SortField) {
	v.SortBy = f
	v.CurrentPage = 1
}

func (v *View) SetSortOrder(o SortOrder) {
	if strings.EqualFold(string(o), string(Asc)) {
		v.SortOrder = Asc
	} else {
		v.SortOrder = Desc
	}
	v.CurrentPage = 1
}

func (v *View) SetCurrentPage(n int) {
	if n < 1 {
		n = 1
	}
	v.CurrentPage = n
}
