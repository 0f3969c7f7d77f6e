package shop

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// CatalogRepository reads the catalog module's product tables. It never writes them.
type CatalogRepository struct {
	db *sqlx.DB
}

func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

type catalogRow struct {
	ProductRef   string `db:"product_ref"`
	VariationRef string `db:"variation_ref"`
	Name         string `db:"name"`
	UnitCost     int64  `db:"unit_cost"`
}

func (c *CatalogRepository) Lookup(ctx context.Context, keys []ProductKey) (map[ProductKey]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	refs := make([]string, 0, len(keys))
	for _, k := range keys {
		refs = append(refs, k.ProductRef)
	}

	var rows []catalogRow
	err := c.db.SelectContext(ctx, &rows, `
		SELECT p.ref AS product_ref, '' AS variation_ref, p.name, p.unit_cost
		FROM products p
		WHERE p.is_active AND p.ref = ANY($1)
		UNION ALL
		SELECT v.product_ref, v.ref AS variation_ref, p.name || ' - ' || v.name AS name, v.unit_cost
		FROM product_variations v
		JOIN products p ON p.ref = v.product_ref
		WHERE p.is_active AND v.is_active AND v.product_ref = ANY($1)
	`, pq.Array(refs))
	if err != nil {
		return nil, err
	}

	wanted := make(map[ProductKey]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}

	out := make(map[ProductKey]Product, len(keys))
	for _, r := range rows {
		key := ProductKey{ProductRef: r.ProductRef, VariationRef: r.VariationRef}
		if _, ok := wanted[key]; !ok {
			continue
		}
		out[key] = Product{ProductKey: key, Name: r.Name, UnitCost: r.UnitCost, Active: true}
	}
	return out, nil
}

// StaticCatalog is a fixed in-memory catalog for local runs and tests.
type StaticCatalog struct {
	mu       sync.RWMutex
	products map[ProductKey]Product
}

func NewStaticCatalog(products ...Product) *StaticCatalog {
	c := &StaticCatalog{products: make(map[ProductKey]Product, len(products))}
	for _, p := range products {
		c.products[p.ProductKey] = p
	}
	return c
}

// Put adds or replaces a product.
func (c *StaticCatalog) Put(p Product) {
	c.mu.Lock()
	c.products[p.ProductKey] = p
	c.mu.Unlock()
}

func (c *StaticCatalog) Lookup(_ context.Context, keys []ProductKey) (map[ProductKey]Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[ProductKey]Product, len(keys))
	for _, k := range keys {
		if p, ok := c.products[k]; ok && p.Active {
			out[k] = p
		}
	}
	return out, nil
}
