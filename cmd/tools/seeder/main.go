package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

type seedBrand struct {
	slug, name, description string
}

type seedProduct struct {
	slug, name, description string
	priceCents              int64
	category                string
	capacityMl              *int
	sizes                   []string
	scoville                *int
	stock                   int
	brandSlug               string
}

func intPtr(v int) *int { return &v }

var brands = []seedBrand{
	{"chilisaus", "Chilisaus.be", "House-made small batch hot sauces."},
	{"vuurwerk", "Vuurwerk", "Belgian fermented chili ferments."},
}

var products = []seedProduct{
	{"inferno-drops-100", "Inferno Drops 100ml", "Habanero and carrot, our everyday burner.", 699, "sauce", intPtr(100), nil, intPtr(125000), 40, "chilisaus"},
	{"inferno-drops-200", "Inferno Drops 200ml", "The family bottle of Inferno Drops.", 1099, "sauce", intPtr(200), nil, intPtr(125000), 25, "chilisaus"},
	{"reaper-reserve-100", "Reaper Reserve 100ml", "Carolina reaper, aged six months in oak.", 1299, "sauce", intPtr(100), nil, intPtr(900000), 12, "vuurwerk"},
	{"heatwave-tshirt", "Heatwave T-Shirt", "Organic cotton tee with the Heatwave print.", 2499, "tshirt", nil, []string{"S", "M", "L", "XL", "2XL"}, nil, 30, "chilisaus"},
	{"scorch-hoodie", "Scorch Hoodie", "Heavyweight hoodie for cold market mornings.", 5499, "hoodie", nil, []string{"S", "M", "L", "XL", "2XL"}, nil, 15, "chilisaus"},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment variables")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	for _, b := range brands {
		_, err := conn.Exec(ctx, `
			INSERT INTO brands (slug, name, description)
			VALUES ($1, $2, $3)
			ON CONFLICT (slug) DO NOTHING`,
			b.slug, b.name, b.description)
		if err != nil {
			log.Fatalf("seed brand %s: %v", b.slug, err)
		}
	}

	for _, p := range products {
		sizes := p.sizes
		if sizes == nil {
			sizes = []string{}
		}
		_, err := conn.Exec(ctx, `
			INSERT INTO products
				(slug, name, description, price_cents, category, capacity_ml, sizes, scoville, stock, brand_id)
			VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, (SELECT id FROM brands WHERE slug = $10))
			ON CONFLICT (slug) DO NOTHING`,
			p.slug, p.name, p.description, p.priceCents, p.category, p.capacityMl, sizes, p.scoville, p.stock, p.brandSlug)
		if err != nil {
			log.Fatalf("seed product %s: %v", p.slug, err)
		}
	}

	log.Printf("seeded %d brands and %d products", len(brands), len(products))
}
