package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"parkwise/internal/database"
	"parkwise/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type ParkingsConfig struct {
	Parkings []models.Parking `yaml:"parkings"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		parkingsPath = flag.String("parkings", "configs/parkings.yaml", "path to parkings.yaml")
		dbPath       = flag.String("db", "./data/parkwise.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*parkingsPath)
	if err != nil {
		return fmt.Errorf("read parkings: %w", err)
	}
	var cfg ParkingsConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse parkings: %w", err)
	}
	if len(cfg.Parkings) == 0 {
		return fmt.Errorf("no parkings in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	updated := 0
	for i := range cfg.Parkings {
		p := cfg.Parkings[i]
		if p.Code == "" {
			continue
		}
		_, err = db.GetParking(ctx, p.Code)
		if err == nil {
			upd := models.ParkingUpdate{Name: &p.Name, Location: &p.Location, TotalSpaces: &p.TotalSpaces, HourlyFee: &p.HourlyFee}
			if _, err = db.UpdateParking(ctx, p.Code, upd); err != nil {
				return fmt.Errorf("update %s: %w", p.Code, err)
			}
			updated++
			continue
		}
		if !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("get %s: %w", p.Code, err)
		}
		if err = db.CreateParking(ctx, &p); err != nil {
			return fmt.Errorf("create %s: %w", p.Code, err)
		}
		created++
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
