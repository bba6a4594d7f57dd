package data

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"farmlokal/internal/biz"
	"farmlokal/internal/model"
	pkgerrors "farmlokal/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"
)

// Process-local L1 sizing for single-item reads. The shared cache remains the
// source of truth; the L1 only absorbs repeated reads of hot items between
// invalidations, so its TTL is kept much shorter than the shared entry's.
const (
	itemLRUSize = 1024
	itemLRUTTL  = 30 * time.Second
)

// ProductRepo implements biz.ProductRepo over GORM/MySQL with a cache-aside
// layer in the shared cache. List results are keyed by a digest of the full
// query shape; single items carry their id in the key. Cache failures never
// fail a read, they only remove the shortcut.
type ProductRepo struct {
	db     *gorm.DB
	cache  CacheClient
	l1     *lru.LRU[int64, *model.Product]
	logger *log.Helper
}

// NewProductRepo creates a new product repository.
func NewProductRepo(db *gorm.DB, cache CacheClient, logger log.Logger) *ProductRepo {
	return &ProductRepo{
		db:     db,
		cache:  cache,
		l1:     lru.NewLRU[int64, *model.Product](itemLRUSize, nil, itemLRUTTL),
		logger: log.NewHelper(logger),
	}
}

// List executes a keyset-paginated catalog query, cache-aside. It returns up
// to q.Limit rows ordered by (q.SortColumn, id); the caller requests one extra
// row to detect whether more pages exist.
//
// The cursor predicate uses a row-value comparison so the total order over
// (sortColumn, id) is preserved even when rows are inserted mid-pagination.
func (r *ProductRepo) List(ctx context.Context, q *biz.ProductQuery) ([]*model.Product, error) {
	key := listCacheKey(q)

	var cached []*model.Product
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		r.logger.Debugw("catalog cache hit", "key", key)
		return cached, nil
	} else if err != ErrCacheNotFound {
		r.logger.Warnf("catalog cache read failed: %v", err)
	}

	db := r.db.WithContext(ctx).Model(&model.Product{})

	db = applyFilters(db, &q.Filters)

	direction := "ASC"
	cmp := ">"
	if q.Descending {
		direction = "DESC"
		cmp = "<"
	}

	if q.Cursor != nil {
		db = db.Where(
			fmt.Sprintf("(%s, id) %s (?, ?)", q.SortColumn, cmp),
			q.Cursor.Value, q.Cursor.ID,
		)
	}

	db = db.Order(fmt.Sprintf("%s %s, id %s", q.SortColumn, direction, direction)).
		Limit(q.Limit)

	var products []*model.Product
	if err := db.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	if err := r.cache.Set(ctx, key, products, TTLProductCache); err != nil {
		r.logger.Warnf("catalog cache write failed: %v", err)
	}

	return products, nil
}

// listCacheKey derives a stable digest key from the full query shape, so two
// requests produce the same key exactly when they would produce the same rows.
func listCacheKey(q *biz.ProductQuery) string {
	canonical := fmt.Sprintf("cat=%s|min=%v|max=%v|s=%s|sort=%s|desc=%t|lim=%d",
		q.Filters.Category,
		derefFloat(q.Filters.MinPrice),
		derefFloat(q.Filters.MaxPrice),
		q.Filters.Search,
		q.SortColumn,
		q.Descending,
		q.Limit,
	)
	if q.Cursor != nil {
		canonical += fmt.Sprintf("|cur=%v:%d", q.Cursor.Value, q.Cursor.ID)
	}

	sum := sha256.Sum256([]byte(canonical))
	return BuildCacheKey(CacheKeyProductList, hex.EncodeToString(sum[:16]))
}

func derefFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

// applyFilters adds the conjunctive filter predicates. Absent filters impose
// no predicate.
func applyFilters(db *gorm.DB, f *model.ProductFilters) *gorm.DB {
	if f.Category != "" {
		db = db.Where("category = ?", f.Category)
	}
	if f.MinPrice != nil {
		db = db.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		db = db.Where("price <= ?", *f.MaxPrice)
	}
	if f.Search != "" {
		term := "%" + f.Search + "%"
		db = db.Where("name LIKE ? OR description LIKE ?", term, term)
	}
	return db
}

// GetByID retrieves a single product: process-local L1, then the shared
// cache, then MySQL. Misses are promoted on the way back.
func (r *ProductRepo) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	if p, ok := r.l1.Get(id); ok {
		return p, nil
	}

	key := itemCacheKey(id)

	var cached model.Product
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		r.l1.Add(id, &cached)
		return &cached, nil
	} else if err != ErrCacheNotFound {
		r.logger.Warnf("product cache read failed: %v", err)
	}

	var product model.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return nil, biz.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}

	if err := r.cache.Set(ctx, key, &product, TTLProductCache); err != nil {
		r.logger.Warnf("product cache write failed: %v", err)
	}
	r.l1.Add(id, &product)

	return &product, nil
}

// UpdateStock sets the stock level of a product and evicts its cache entries.
func (r *ProductRepo) UpdateStock(ctx context.Context, id int64, stock int32) error {
	result := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Update("stock", stock)

	if result.Error != nil {
		dbErr := pkgerrors.ClassifyDBError(result.Error)
		return fmt.Errorf("failed to update stock for product %d: %w", id, dbErr)
	}

	if result.RowsAffected == 0 {
		return biz.ErrProductNotFound
	}

	if err := r.Invalidate(ctx, id); err != nil {
		r.logger.Warnf("cache invalidation failed after stock update of %d: %v", id, err)
	}

	return nil
}

// Invalidate evicts the single-item entry for id (when positive) and the
// whole list-query namespace. A stale list entry could otherwise serve the
// pre-mutation row for the rest of its TTL.
func (r *ProductRepo) Invalidate(ctx context.Context, id int64) error {
	if id > 0 {
		r.l1.Remove(id)
		if err := r.cache.Delete(ctx, itemCacheKey(id)); err != nil {
			return fmt.Errorf("failed to evict product %d: %w", id, err)
		}
	}

	if err := r.cache.DeletePrefix(ctx, CacheKeyProductList+":"); err != nil {
		return fmt.Errorf("failed to evict catalog list caches: %w", err)
	}

	return nil
}

func itemCacheKey(id int64) string {
	return BuildCacheKey(CacheKeyProductItem, fmt.Sprintf("%d", id))
}

// EnsureSchema creates or migrates the products table. Used by the seeding
// utility.
func (r *ProductRepo) EnsureSchema(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&model.Product{}); err != nil {
		return fmt.Errorf("failed to migrate products table: %w", err)
	}
	return nil
}

// Count returns the number of products in the catalog.
func (r *ProductRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Product{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// BatchInsert inserts products in batches of batchSize.
func (r *ProductRepo) BatchInsert(ctx context.Context, products []*model.Product, batchSize int) error {
	if err := r.db.WithContext(ctx).CreateInBatches(products, batchSize).Error; err != nil {
		dbErr := pkgerrors.ClassifyDBError(err)
		return fmt.Errorf("failed to batch insert products: %w", dbErr)
	}
	return nil
}

// Truncate removes all products. Used by the seeding utility's -force mode.
func (r *ProductRepo) Truncate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Exec("TRUNCATE TABLE products").Error; err != nil {
		return fmt.Errorf("failed to truncate products: %w", err)
	}
	return nil
}
