package request

import (
	"net/url"
	"strconv"
)

const (
	defaultPerPage = 10
	maxPerPage     = 50
)

// PageQuery windows a booking history list, newest first
type PageQuery struct {
	Page    int `json:"page" validate:"min=1"`
	PerPage int `json:"per_page" validate:"min=1,max=50"`
}

// ParsePageQuery reads ?page and ?per_page. Missing or non-numeric values
// fall back to the first page of ten; out-of-range numbers are kept so
// validation can reject them.
func ParsePageQuery(q url.Values) PageQuery {
	return PageQuery{
		Page:    queryInt(q, "page", 1),
		PerPage: queryInt(q, "per_page", defaultPerPage),
	}
}

func queryInt(q url.Values, key string, fallback int) int {
	v, err := strconv.Atoi(q.Get(key))
	if err != nil {
		return fallback
	}
	return v
}

func (p PageQuery) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

func (p PageQuery) Limit() int {
	switch {
	case p.PerPage < 1:
		return defaultPerPage
	case p.PerPage > maxPerPage:
		return maxPerPage
	}
	return p.PerPage
}
