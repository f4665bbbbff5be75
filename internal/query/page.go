package query

import (
	"net/url"
	"strconv"
)

// List page bounds.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ParsePagination reads limit and offset from q. Missing, non-numeric
// or non-positive limits become DefaultLimit and large ones are capped
// at MaxLimit; bad offsets become 0.
func ParsePagination(q url.Values) (limit, offset int) {
	limit = DefaultLimit
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = min(n, MaxLimit)
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		offset = n
	}
	return limit, offset
}

// Pagination is the page descriptor returned with every list.
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

// NewPagination describes the page at offset within total rows.
func NewPagination(total int64, limit, offset int) Pagination {
	return Pagination{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset)+int64(limit) < total,
	}
}
