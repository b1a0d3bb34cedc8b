package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a catalog row does not exist.
var ErrNotFound = errors.New("catalog: not found")

// DBTX is the subset of pgx operations the store needs; both *pgxpool.Pool
// and pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Product is a catalog item. Bottles carry a capacity, apparel a size list;
// the category tag drives shipping weight estimation.
type Product struct {
	ID                uuid.UUID  `json:"id"`
	Slug              string     `json:"slug"`
	Name              string     `json:"name"`
	Description       string     `json:"description,omitempty"`
	PriceCents        int64      `json:"priceCents"`
	Category          string     `json:"category"`
	CapacityMl        *int       `json:"capacityMl,omitempty"`
	WeightGrams       *int       `json:"weightGrams,omitempty"`
	Sizes             []string   `json:"sizes,omitempty"`
	Scoville          *int       `json:"scoville,omitempty"`
	Stock             int        `json:"stock"`
	LowStockThreshold int        `json:"lowStockThreshold"`
	BrandID           *uuid.UUID `json:"brandId,omitempty"`
	ImageURL          string     `json:"imageUrl,omitempty"`
	Active            bool       `json:"active"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Brand groups products by maker.
type Brand struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	LogoURL     string    `json:"logoUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store provides catalog persistence over pgx.
type Store struct {
	db DBTX
}

// NewStore constructs a catalog store.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

const productColumns = `id, slug, name, description, price_cents, category, capacity_ml,
	weight_grams, sizes, scoville, stock, low_stock_threshold, brand_id, image_url, active,
	created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.PriceCents, &p.Category,
		&p.CapacityMl, &p.WeightGrams, &p.Sizes, &p.Scoville, &p.Stock, &p.LowStockThreshold,
		&p.BrandID, &p.ImageURL, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// ListFilter narrows product listings.
type ListFilter struct {
	Category string
	BrandID  *uuid.UUID
	Page     int
	PerPage  int
}

// ListProducts returns active products matching the filter plus a total count.
func (s *Store) ListProducts(ctx context.Context, f ListFilter) ([]Product, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = 20
	}
	where := "WHERE active"
	args := []any{}
	if category := strings.TrimSpace(f.Category); category != "" {
		args = append(args, category)
		where += " AND category = $1"
	}
	if f.BrandID != nil {
		args = append(args, *f.BrandID)
		where += " AND brand_id = $" + strconv.Itoa(len(args))
	}

	var total int64
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM products "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	query := "SELECT " + productColumns + " FROM products " + where +
		" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]Product, 0, f.PerPage)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// GetProductBySlug fetches a single active product by its URL slug. The
// slug lookup backs the public detail endpoint only, so deactivated
// products are hidden here; admin flows load by id.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := s.db.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE slug = $1 AND active", slug)
	return scanProduct(row)
}

// GetProductByID fetches a single product by id.
func (s *Store) GetProductByID(ctx context.Context, id uuid.UUID) (Product, error) {
	row := s.db.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	return scanProduct(row)
}

// ProductInput carries the admin-editable fields of a product.
type ProductInput struct {
	Slug              string
	Name              string
	Description       string
	PriceCents        int64
	Category          string
	CapacityMl        *int
	WeightGrams       *int
	Sizes             []string
	Scoville          *int
	Stock             int
	LowStockThreshold int
	BrandID           *uuid.UUID
	ImageURL          string
	Active            bool
}

// CreateProduct inserts a product and returns the stored row.
func (s *Store) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO products (slug, name, description, price_cents, category, capacity_ml,
			weight_grams, sizes, scoville, stock, low_stock_threshold, brand_id, image_url, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+productColumns,
		in.Slug, in.Name, in.Description, in.PriceCents, in.Category, in.CapacityMl,
		in.WeightGrams, in.Sizes, in.Scoville, in.Stock, in.LowStockThreshold, in.BrandID,
		in.ImageURL, in.Active)
	return scanProduct(row)
}

// UpdateProduct replaces the editable fields of an existing product.
func (s *Store) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (Product, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE products SET slug = $2, name = $3, description = $4, price_cents = $5,
			category = $6, capacity_ml = $7, weight_grams = $8, sizes = $9, scoville = $10,
			stock = $11, low_stock_threshold = $12, brand_id = $13, image_url = $14,
			active = $15, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		id, in.Slug, in.Name, in.Description, in.PriceCents, in.Category, in.CapacityMl,
		in.WeightGrams, in.Sizes, in.Scoville, in.Stock, in.LowStockThreshold, in.BrandID,
		in.ImageURL, in.Active)
	return scanProduct(row)
}

// DeleteProduct removes a product.
func (s *Store) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock reduces stock for a product matched by display name, the
// identifier available in settled payment line items. It returns the
// remaining stock and the configured low-stock threshold.
func (s *Store) DecrementStock(ctx context.Context, name string, qty int) (stock, threshold int, err error) {
	row := s.db.QueryRow(ctx, `
		UPDATE products SET stock = greatest(stock - $2, 0), updated_at = now()
		WHERE name = $1
		RETURNING stock, low_stock_threshold`, name, qty)
	if err := row.Scan(&stock, &threshold); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, err
	}
	return stock, threshold, nil
}

// ListBrands returns all brands ordered by name.
func (s *Store) ListBrands(ctx context.Context) ([]Brand, error) {
	rows, err := s.db.Query(ctx, "SELECT id, slug, name, description, logo_url, created_at FROM brands ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var brands []Brand
	for rows.Next() {
		var b Brand
		if err := rows.Scan(&b.ID, &b.Slug, &b.Name, &b.Description, &b.LogoURL, &b.CreatedAt); err != nil {
			return nil, err
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

// CreateBrand inserts a brand.
func (s *Store) CreateBrand(ctx context.Context, slug, name, description, logoURL string) (Brand, error) {
	var b Brand
	err := s.db.QueryRow(ctx, `
		INSERT INTO brands (slug, name, description, logo_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, slug, name, description, logo_url, created_at`,
		slug, name, description, logoURL).
		Scan(&b.ID, &b.Slug, &b.Name, &b.Description, &b.LogoURL, &b.CreatedAt)
	return b, err
}
