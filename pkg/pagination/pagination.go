// Package pagination holds the page request and page metadata shared by
// list endpoints.
package pagination

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

// Params is a page request bound from the query string.
type Params struct {
	Page    int `form:"page" json:"page"`
	PerPage int `form:"per_page" json:"per_page"`
}

func Default() *Params {
	return &Params{Page: 1, PerPage: DefaultPerPage}
}

// Normalize clamps the request to a valid page.
func (p *Params) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PerPage < 1:
		p.PerPage = DefaultPerPage
	case p.PerPage > MaxPerPage:
		p.PerPage = MaxPerPage
	}
}

func (p *Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Meta describes where a page sits in the full result.
type Meta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
}

func NewMeta(p *Params, total int64) *Meta {
	pages := 0
	if p.PerPage > 0 {
		pages = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	}
	return &Meta{
		CurrentPage: p.Page,
		PerPage:     p.PerPage,
		Total:       total,
		TotalPages:  pages,
		HasNext:     p.Page < pages,
		HasPrev:     p.Page > 1,
	}
}

// Page is one page of items. Items is never null in JSON.
type Page[T any] struct {
	Items []T   `json:"items"`
	Meta  *Meta `json:"pagination"`
}

func NewPage[T any](items []T, p *Params, total int64) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Meta: NewMeta(p, total)}
}
