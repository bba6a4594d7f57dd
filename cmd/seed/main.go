// Package main seeds the products table with generated farm catalog data.
// Intended for local development and load testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"farmlokal/internal/conf"
	"farmlokal/internal/data"
	"farmlokal/internal/model"
	zapLogger "farmlokal/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
)

var (
	flagconf  string
	flagcount int
	flagforce bool
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.IntVar(&flagcount, "count", 100000, "number of products to insert")
	flag.BoolVar(&flagforce, "force", false, "truncate and reseed when the table already has data")
}

var categories = []string{
	"milk",
	"dairy",
	"vegetables",
	"fruits",
	"groceries",
	"grains",
	"spices",
}

var productNames = map[string][]string{
	"milk":       {"Fresh Cow Milk", "Buffalo Milk", "Organic Milk", "Toned Milk", "Full Cream Milk"},
	"dairy":      {"Paneer", "Curd", "Butter", "Ghee", "Cheese", "Buttermilk"},
	"vegetables": {"Tomatoes", "Potatoes", "Onions", "Spinach", "Carrots", "Capsicum", "Cabbage"},
	"fruits":     {"Apples", "Bananas", "Oranges", "Mangoes", "Grapes", "Pomegranate"},
	"groceries":  {"Rice", "Wheat Flour", "Sugar", "Salt", "Oil", "Dal", "Besan"},
	"grains":     {"Basmati Rice", "Brown Rice", "Wheat", "Jowar", "Bajra", "Oats"},
	"spices":     {"Turmeric", "Red Chilli", "Cumin", "Coriander", "Garam Masala", "Black Pepper"},
}

const batchSize = 1000

func generateProduct(index int, now time.Time) *model.Product {
	category := categories[index%len(categories)]
	names := productNames[category]
	baseName := names[index%len(names)]

	return &model.Product{
		Name:        fmt.Sprintf("%s - Batch %d", baseName, index/100),
		Description: fmt.Sprintf("Fresh %s from local farmers. Quality guaranteed.", baseName),
		Price:       float64(int((rand.Float64()*500+10)*100)) / 100,
		Category:    category,
		Stock:       int32(rand.Intn(1000)) + 10,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func run(ctx context.Context, repo *data.ProductRepo, helper *log.Helper) error {
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	helper.Info("products table created/verified")

	existing, err := repo.Count(ctx)
	if err != nil {
		return err
	}

	if existing > 0 {
		helper.Infof("database already has %d products", existing)
		if !flagforce {
			helper.Info("use -force to reseed, exiting")
			return nil
		}
		helper.Info("force flag set, truncating and reseeding")
		if err := repo.Truncate(ctx); err != nil {
			return err
		}
	}

	helper.Infof("seeding %d products", flagcount)

	now := time.Now()
	inserted := 0
	for inserted < flagcount {
		size := batchSize
		if remaining := flagcount - inserted; remaining < size {
			size = remaining
		}

		batch := make([]*model.Product, 0, size)
		for i := 0; i < size; i++ {
			batch = append(batch, generateProduct(inserted+i, now))
		}

		if err := repo.BatchInsert(ctx, batch, batchSize); err != nil {
			return err
		}
		inserted += size

		if inserted%10000 == 0 {
			helper.Infof("inserted %d/%d products", inserted, flagcount)
		}
	}

	helper.Infof("seeding complete, total products: %d", flagcount)
	return nil
}

func main() {
	flag.Parse()

	bc, err := conf.NewBootstrap(flagconf)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLog, err := zapLogger.NewZapLogger(bc.Log)
	if err != nil {
		log.Fatalf("failed to initialize zap logger: %v", err)
	}
	defer zapLog.Sync()

	logger := zapLogger.NewKratosAdapter(zapLog)
	helper := log.NewHelper(logger)

	db, cleanup, err := data.NewMySQLClient(bc.Data, logger)
	if err != nil {
		helper.Fatalf("failed to connect to database: %v", err)
	}
	defer cleanup()

	// Seeding bypasses the cache layer entirely.
	repo := data.NewProductRepo(db, data.NewCacheClient(nil), logger)

	if err := run(context.Background(), repo, helper); err != nil {
		helper.Errorf("seeding failed: %v", err)
		os.Exit(1)
	}
}
