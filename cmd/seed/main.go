package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shinyyama/agri-market-backend/internal/config"
	"github.com/shinyyama/agri-market-backend/internal/db"
	"github.com/shinyyama/agri-market-backend/internal/logging"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/repository"
	"github.com/shinyyama/agri-market-backend/internal/service"
)

type seedCrop struct {
	Name     string
	Category string
	Season   string
	Price    float64
	Unit     string
	Quantity float64
}

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)
	if err := run(context.Background(), cfg, log); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	farmerUID := strings.TrimSpace(os.Getenv("SEED_FARMER_UID"))
	if farmerUID == "" {
		return fmt.Errorf("SEED_FARMER_UID is required")
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	_, total, err := service.NewCropService(repository.NewCropRepository(gdb)).List(ctx, 1, 0, "")
	if err != nil {
		return fmt.Errorf("count crops: %w", err)
	}
	if total > 0 && !strings.EqualFold(os.Getenv("FORCE_SEED"), "true") {
		log.Info().Int64("crops", total).Msg("crops already exist; skipping seed (set FORCE_SEED=true to override)")
		return nil
	}

	crops := buildSeedCrops()
	err = repository.NewUnitOfWork(gdb).Do(ctx, func(r repository.Repositories) error {
		svc := service.NewCropService(r.Crops)
		for _, sc := range crops {
			_, err := svc.Create(ctx, &model.Crop{
				FarmerUID:         farmerUID,
				Name:              sc.Name,
				Category:          sc.Category,
				Season:            sc.Season,
				ReferencePrice:    sc.Price,
				Unit:              sc.Unit,
				AvailableQuantity: sc.Quantity,
			})
			if err != nil {
				return fmt.Errorf("insert crop %q: %w", sc.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Int("crops", len(crops)).Str("farmer_uid", farmerUID).Msg("seeded crops")
	return nil
}

func buildSeedCrops() []seedCrop {
	type cat struct {
		Slug   string
		Season string
		Unit   string
		Names  []string
		Price  float64
	}
	categories := []cat{
		{Slug: "grain", Season: "kharif", Unit: "quintal", Price: 2200, Names: []string{"Basmati rice", "Sona masoori rice", "Maize", "Bajra"}},
		{Slug: "grain", Season: "rabi", Unit: "quintal", Price: 2100, Names: []string{"Sharbati wheat", "Barley", "Jowar"}},
		{Slug: "pulses", Season: "rabi", Unit: "quintal", Price: 5400, Names: []string{"Chana", "Masoor dal", "Moong", "Urad"}},
		{Slug: "oilseeds", Season: "kharif", Unit: "quintal", Price: 4800, Names: []string{"Groundnut", "Soybean", "Mustard seed"}},
		{Slug: "vegetables", Season: "all", Unit: "kg", Price: 22, Names: []string{"Onion", "Potato", "Tomato", "Cauliflower"}},
		{Slug: "fruits", Season: "summer", Unit: "kg", Price: 60, Names: []string{"Alphonso mango", "Banana", "Pomegranate"}},
		{Slug: "spices", Season: "rabi", Unit: "kg", Price: 140, Names: []string{"Turmeric", "Red chilli", "Coriander seed", "Cumin"}},
	}

	var crops []seedCrop
	for _, c := range categories {
		for i, name := range c.Names {
			crops = append(crops, seedCrop{
				Name:     name,
				Category: c.Slug,
				Season:   c.Season,
				Price:    c.Price + float64(i)*c.Price/20,
				Unit:     c.Unit,
				Quantity: float64(100 * (i + 1)),
			})
		}
	}
	return crops
}
