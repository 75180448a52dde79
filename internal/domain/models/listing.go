package models

// Sort orders and fields accepted by the query side.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"

	UserSortName    = "name"
	UserSortBalance = "balance"

	TxSortTimestamp = "timestamp"
	TxSortAmount    = "amount"
)

// Pagination bounds.
const (
	MinPageSize = 1
	MaxPageSize = 100
)

// ListOptions controls sorting and pagination of a list read. Pagination is
// requested with the explicit Paginated flag, never inferred from which
// fields happen to be set.
type ListOptions struct {
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
	Paginated bool
}

// PageInfo describes the page a Listing holds.
type PageInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// Listing is the result of a list read. Total always counts every matching
// row; Page is non-nil exactly when the caller asked for pagination, in
// which case Items holds only that page.
type Listing[T any] struct {
	Items []T
	Total int
	Page  *PageInfo
}
