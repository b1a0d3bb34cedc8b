package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chilisaus/storefront-api/internal/common"
)

type storeProvider interface {
	ListProducts(ctx context.Context, f ListFilter) ([]Product, int64, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (Product, error)
	CreateProduct(ctx context.Context, in ProductInput) (Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ListBrands(ctx context.Context) ([]Brand, error)
	CreateBrand(ctx context.Context, slug, name, description, logoURL string) (Brand, error)
}

// Service orchestrates catalog queries and caching.
type Service struct {
	store    storeProvider
	cache    *Cache
	maxLimit int
	logger   zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store    storeProvider
	Cache    *Cache
	MaxLimit int
	Logger   zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	return &Service{
		store:    cfg.Store,
		cache:    cfg.Cache,
		maxLimit: maxLimit,
		logger:   cfg.Logger,
	}, nil
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

// ParseListParams normalises raw query values into a list filter.
func (s *Service) ParseListParams(values url.Values) (ListFilter, error) {
	filter := ListFilter{Page: 1, PerPage: 20}
	filter.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("brand")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, badRequest("brand", "brand must be a valid id", err)
		}
		filter.BrandID = &id
	}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return filter, badRequest("page", "page must be a positive integer", err)
		}
		filter.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return filter, badRequest("limit", "limit must be a positive integer", err)
		}
		filter.PerPage = limit
	}
	if filter.PerPage > s.maxLimit {
		filter.PerPage = s.maxLimit
	}
	return filter, nil
}

// ListProducts returns a page of active products, served from cache when possible.
func (s *Service) ListProducts(ctx context.Context, f ListFilter) (ProductListResult, error) {
	key := listCacheKey(f)
	var cached ProductListResult
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	} else if hit {
		return cached, nil
	}

	items, total, err := s.store.ListProducts(ctx, f)
	if err != nil {
		return ProductListResult{}, err
	}
	result := ProductListResult{Items: items, Total: total, Page: f.Page, Limit: f.PerPage}
	if err := s.cache.SetJSON(ctx, key, result); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return result, nil
}

// GetProduct returns a single product by slug.
func (s *Service) GetProduct(ctx context.Context, slug string) (Product, error) {
	key := detailCacheKey(slug)
	var cached Product
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	} else if hit {
		return cached, nil
	}

	product, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Product{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return Product{}, err
	}
	if err := s.cache.SetJSON(ctx, key, product); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return product, nil
}

// ListBrands returns all brands.
func (s *Service) ListBrands(ctx context.Context) ([]Brand, error) {
	key := "catalog:brands"
	var cached []Brand
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	} else if hit {
		return cached, nil
	}

	brands, err := s.store.ListBrands(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, brands); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return brands, nil
}

// CreateProduct inserts a product and invalidates the detail cache.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := validateProductInput(in); err != nil {
		return Product{}, err
	}
	product, err := s.store.CreateProduct(ctx, in)
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx, product.Slug)
	return product, nil
}

// UpdateProduct updates a product and invalidates its cache entry.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (Product, error) {
	if err := validateProductInput(in); err != nil {
		return Product{}, err
	}
	previous, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Product{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return Product{}, err
	}
	product, err := s.store.UpdateProduct(ctx, id, in)
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx, previous.Slug, product.Slug)
	return product, nil
}

// DeleteProduct removes a product and invalidates its cache entry.
func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	previous, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return err
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return err
	}
	s.invalidate(ctx, previous.Slug)
	return nil
}

// CreateBrand inserts a brand and invalidates the brand list cache.
func (s *Service) CreateBrand(ctx context.Context, slug, name, description, logoURL string) (Brand, error) {
	if strings.TrimSpace(slug) == "" || strings.TrimSpace(name) == "" {
		return Brand{}, badRequest("name", "brand slug and name are required", nil)
	}
	brand, err := s.store.CreateBrand(ctx, slug, name, description, logoURL)
	if err != nil {
		return Brand{}, err
	}
	if err := s.cache.Delete(ctx, "catalog:brands"); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
	return brand, nil
}

// invalidate drops detail cache entries for the given slugs. Product lists
// are left to expire by TTL.
func (s *Service) invalidate(ctx context.Context, slugs ...string) {
	keys := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		if slug != "" {
			keys = append(keys, detailCacheKey(slug))
		}
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}

func validateProductInput(in ProductInput) error {
	if strings.TrimSpace(in.Slug) == "" {
		return badRequest("slug", "slug is required", nil)
	}
	if strings.TrimSpace(in.Name) == "" {
		return badRequest("name", "name is required", nil)
	}
	if in.PriceCents < 0 {
		return badRequest("priceCents", "price cannot be negative", nil)
	}
	if in.Stock < 0 {
		return badRequest("stock", "stock cannot be negative", nil)
	}
	if in.WeightGrams != nil && *in.WeightGrams <= 0 {
		return badRequest("weightGrams", "weight override must be positive", nil)
	}
	return nil
}

func listCacheKey(f ListFilter) string {
	brand := ""
	if f.BrandID != nil {
		brand = f.BrandID.String()
	}
	return "catalog:products:" + f.Category + ":" + brand + ":" +
		strconv.Itoa(f.Page) + ":" + strconv.Itoa(f.PerPage)
}

func detailCacheKey(slug string) string {
	return "catalog:product:" + slug
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}
