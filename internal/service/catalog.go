// Package service implements the HTTP-facing request handlers. Services parse
// and validate transport input, delegate to the biz layer, and shape replies.
package service

import (
	"strconv"

	"farmlokal/internal/biz"
	"farmlokal/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// CatalogService handles product catalog requests.
type CatalogService struct {
	products *biz.ProductUsecase
	logger   *log.Helper
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(products *biz.ProductUsecase, logger log.Logger) *CatalogService {
	return &CatalogService{
		products: products,
		logger:   log.NewHelper(logger),
	}
}

// productPageReply is the list response envelope.
type productPageReply struct {
	Success    bool             `json:"success"`
	Data       []*model.Product `json:"data"`
	NextCursor string           `json:"nextCursor,omitempty"`
	HasMore    bool             `json:"hasMore"`
}

// updateStockRequest is the stock mutation payload.
type updateStockRequest struct {
	Stock int32 `json:"stock"`
}

type updateStockReply struct {
	ID    int64 `json:"id"`
	Stock int32 `json:"stock"`
}

// ListProducts handles GET /products.
//
// Query parameters: category, minPrice, maxPrice, search, sortBy, sortOrder,
// limit, cursor. Unknown parameters are ignored; malformed ones are rejected.
func (s *CatalogService) ListProducts(ctx khttp.Context) error {
	filters, err := parseFilters(ctx)
	if err != nil {
		return err
	}
	page, err := parsePagination(ctx)
	if err != nil {
		return err
	}

	result, err := s.products.GetProducts(ctx, filters, page)
	if err != nil {
		return err
	}

	return ctx.Result(200, &productPageReply{
		Success:    true,
		Data:       result.Data,
		NextCursor: result.NextCursor,
		HasMore:    result.HasMore,
	})
}

// GetProduct handles GET /products/{id}.
func (s *CatalogService) GetProduct(ctx khttp.Context) error {
	id, err := parseProductID(ctx)
	if err != nil {
		return err
	}

	product, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return err
	}

	return ctx.Result(200, product)
}

// UpdateStock handles POST /products/{id}/stock.
func (s *CatalogService) UpdateStock(ctx khttp.Context) error {
	id, err := parseProductID(ctx)
	if err != nil {
		return err
	}

	var req updateStockRequest
	if err := ctx.Bind(&req); err != nil {
		return biz.ErrInvalidProductID
	}

	if err := s.products.UpdateStock(ctx, id, req.Stock); err != nil {
		return err
	}

	s.logger.Infow("stock updated", "product_id", id, "stock", req.Stock)

	return ctx.Result(200, &updateStockReply{ID: id, Stock: req.Stock})
}

// parseProductID extracts the {id} path variable.
func parseProductID(ctx khttp.Context) (int64, error) {
	raw := ctx.Vars().Get("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, biz.ErrInvalidProductID
	}
	return id, nil
}

// parseFilters reads the optional filter query parameters.
func parseFilters(ctx khttp.Context) (*model.ProductFilters, error) {
	q := ctx.Query()

	f := &model.ProductFilters{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}

	if raw := q.Get("minPrice"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, biz.ErrInvalidPriceFilter
		}
		f.MinPrice = &v
	}
	if raw := q.Get("maxPrice"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, biz.ErrInvalidPriceFilter
		}
		f.MaxPrice = &v
	}

	return f, nil
}

// parsePagination reads the pagination query parameters. Validation of sort
// field and limit clamping happen in the biz layer.
func parsePagination(ctx khttp.Context) (*model.Pagination, error) {
	q := ctx.Query()

	p := &model.Pagination{
		Cursor:    q.Get("cursor"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}

	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, biz.ErrInvalidLimit
		}
		p.Limit = v
	}

	return p, nil
}
