// Package model contains domain models shared across layers.
package model

import "time"

// Product is a catalog item. It doubles as the GORM entity for the
// products table and the JSON shape cached in Redis and returned to clients.
type Product struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name" gorm:"size:255;not null;index:idx_name"`
	Description string    `json:"description" gorm:"type:text"`
	Price       float64   `json:"price" gorm:"type:decimal(10,2);not null;index:idx_price"`
	Category    string    `json:"category" gorm:"size:100;not null;index:idx_category;index:idx_category_price,priority:1"`
	Stock       int32     `json:"stock" gorm:"default:0"`
	CreatedAt   time.Time `json:"created_at" gorm:"index:idx_created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName implements the GORM Tabler interface.
func (Product) TableName() string {
	return "products"
}

// ProductFilters are conjunctive predicates over the catalog.
// Zero values impose no predicate.
type ProductFilters struct {
	Category string
	MinPrice *float64
	MaxPrice *float64
	Search   string
}

// Pagination describes a keyset-paginated page request.
type Pagination struct {
	Cursor    string
	Limit     int
	SortBy    string
	SortOrder string
}

// ProductPage is one page of catalog results with its continuation cursor.
type ProductPage struct {
	Data       []*Product `json:"data"`
	NextCursor string     `json:"nextCursor,omitempty"`
	HasMore    bool       `json:"hasMore"`
}
