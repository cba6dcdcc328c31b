package dto

// DefaultLimit is the default number of items per page.
const DefaultLimit = 50

// MaxLimit is the maximum allowed items per page.
const MaxLimit = 100

// PaginationRequest represents offset pagination parameters from the request.
type PaginationRequest struct {
	// Limit is the maximum number of items to return (1-100, default 50).
	Limit int `form:"limit" json:"limit" validate:"omitempty,gte=1,lte=100"`

	// Offset is the number of items to skip.
	Offset int `form:"offset" json:"offset" validate:"omitempty,gte=0"`
}

// GetLimit returns the limit with defaults applied.
func (p *PaginationRequest) GetLimit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}

	if p.Limit > MaxLimit {
		return MaxLimit
	}

	return p.Limit
}

// GetOffset returns the offset, never negative.
func (p *PaginationRequest) GetOffset() int {
	return max(p.Offset, 0)
}

// PaginatedResponse is a generic offset-paginated response structure.
type PaginatedResponse[T any] struct {
	// Items is the array of items for this page.
	Items []T `json:"items"`

	// Limit and Offset echo the effective window.
	Limit  int `json:"limit"`
	Offset int `json:"offset"`

	// NextOffset is set when the page was full and more items may follow.
	NextOffset *int `json:"next_offset,omitempty"`
}

// NewPaginatedResponse creates a new paginated response.
// A full page advertises a next offset; a short page is the last.
func NewPaginatedResponse[T any](items []T, limit, offset int) *PaginatedResponse[T] {
	if items == nil {
		items = []T{}
	}

	resp := &PaginatedResponse[T]{
		Items:  items,
		Limit:  limit,
		Offset: offset,
	}

	if limit > 0 && len(items) == limit {
		next := offset + limit
		resp.NextOffset = &next
	}

	return resp
}

// EmptyPaginatedResponse returns an empty paginated response.
func EmptyPaginatedResponse[T any](limit, offset int) *PaginatedResponse[T] {
	return NewPaginatedResponse[T](nil, limit, offset)
}
