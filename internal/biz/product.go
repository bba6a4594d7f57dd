package biz

import (
	"context"

	"farmlokal/internal/model"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// Allowed sort fields for catalog queries. Restricting ordering to this
// allow-list prevents unsafe dynamic ORDER BY construction.
const (
	SortByPrice     = "price"
	SortByCreatedAt = "created_at"
	SortByName      = "name"
)

// Pagination limits.
const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Typed terminal outcomes for catalog operations.
var (
	// ErrProductNotFound is returned when no product matches the id.
	ErrProductNotFound = errors.NotFound("PRODUCT_NOT_FOUND", "product not found")
	// ErrInvalidProductID is returned for non-positive ids.
	ErrInvalidProductID = errors.BadRequest("INVALID_PRODUCT_ID", "product id must be a positive integer")
	// ErrInvalidCursor is returned for malformed or mismatched cursors.
	ErrInvalidCursor = errors.BadRequest("INVALID_CURSOR", "pagination cursor is malformed")
	// ErrInvalidSortField is returned for sort fields outside the allow-list.
	ErrInvalidSortField = errors.BadRequest("INVALID_SORT_FIELD", "sort field must be one of price, created_at, name")
	// ErrInvalidPriceFilter is returned for non-numeric price bounds.
	ErrInvalidPriceFilter = errors.BadRequest("INVALID_PRICE_FILTER", "price filter must be numeric")
	// ErrInvalidLimit is returned for a non-numeric page limit.
	ErrInvalidLimit = errors.BadRequest("INVALID_LIMIT", "limit must be an integer")
)

// ProductUsecase implements catalog reads with cache-aside keyset pagination
// and coarse cache invalidation on mutation.
type ProductUsecase struct {
	repo   ProductRepo
	logger *log.Helper
}

// NewProductUsecase creates a new product use case.
func NewProductUsecase(repo ProductRepo, logger log.Logger) *ProductUsecase {
	return &ProductUsecase{
		repo:   repo,
		logger: log.NewHelper(logger),
	}
}

// GetProducts returns one page of catalog results plus a continuation cursor.
//
// Results are ordered by (sortBy, id) in the requested direction, with id as
// the deterministic tie-break. The repository fetches limit+1 rows; a present
// look-ahead row means hasMore, and the cursor is encoded from the new last
// row after trimming.
func (uc *ProductUsecase) GetProducts(ctx context.Context, filters *model.ProductFilters, page *model.Pagination) (*model.ProductPage, error) {
	sortBy := page.SortBy
	if sortBy == "" {
		sortBy = SortByCreatedAt
	}
	if sortBy != SortByPrice && sortBy != SortByCreatedAt && sortBy != SortByName {
		return nil, ErrInvalidSortField
	}

	descending := page.SortOrder != "asc"

	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	q := &ProductQuery{
		SortColumn: sortBy,
		Descending: descending,
		Limit:      limit + 1,
	}
	if filters != nil {
		q.Filters = *filters
	}

	if page.Cursor != "" {
		key, err := decodeCursor(page.Cursor, sortBy)
		if err != nil {
			return nil, err
		}
		q.Cursor = key
	}

	rows, err := uc.repo.List(ctx, q)
	if err != nil {
		uc.logger.Errorw("catalog query failed", "error", err)
		return nil, err
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	result := &model.ProductPage{
		Data:    rows,
		HasMore: hasMore,
	}

	if hasMore && len(rows) > 0 {
		cursor, err := encodeCursor(rows[len(rows)-1], sortBy)
		if err != nil {
			return nil, err
		}
		result.NextCursor = cursor
	}

	return result, nil
}

// GetProductByID returns a single product or ErrProductNotFound.
func (uc *ProductUsecase) GetProductByID(ctx context.Context, id int64) (*model.Product, error) {
	if id <= 0 {
		return nil, ErrInvalidProductID
	}
	return uc.repo.GetByID(ctx, id)
}

// UpdateStock mutates a product's stock level. The repository evicts the
// single-item entry and the whole list-query namespace, so a subsequent read
// reflects the mutation.
func (uc *ProductUsecase) UpdateStock(ctx context.Context, id int64, stock int32) error {
	if id <= 0 {
		return ErrInvalidProductID
	}
	if stock < 0 {
		return errors.BadRequest("INVALID_STOCK", "stock must not be negative")
	}
	return uc.repo.UpdateStock(ctx, id, stock)
}

// InvalidateProduct evicts cache entries after an external catalog mutation,
// such as a product.updated webhook.
func (uc *ProductUsecase) InvalidateProduct(ctx context.Context, id int64) error {
	return uc.repo.Invalidate(ctx, id)
}
