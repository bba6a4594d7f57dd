package biz

import (
	"context"

	"farmlokal/internal/model"
)

// ProductQuery is a fully-resolved catalog query handed to the repository.
// SortColumn has already been validated against the allow-list, so the data
// layer can interpolate it safely.
type ProductQuery struct {
	Filters    model.ProductFilters
	SortColumn string
	Descending bool
	// Cursor is nil for the first page.
	Cursor *CursorKey
	// Limit is the number of rows to fetch, including the look-ahead row.
	Limit int
}

// ProductRepo defines catalog persistence operations. The implementation is
// cache-aside: list queries and single-item reads are served from the shared
// cache when fresh, falling back to the relational store on miss.
type ProductRepo interface {
	// List returns up to q.Limit rows in keyset order.
	List(ctx context.Context, q *ProductQuery) ([]*model.Product, error)

	// GetByID returns one product or ErrProductNotFound.
	GetByID(ctx context.Context, id int64) (*model.Product, error)

	// UpdateStock mutates a product's stock level and invalidates its
	// cache entries.
	UpdateStock(ctx context.Context, id int64, stock int32) error

	// Invalidate evicts the single-item entry for id (when positive) and
	// the whole list-query namespace.
	Invalidate(ctx context.Context, id int64) error
}
