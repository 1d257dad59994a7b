package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/joho/godotenv"
	"github.com/shinyyama/barter-backend/internal/config"
	"github.com/shinyyama/barter-backend/internal/db"
	"github.com/shinyyama/barter-backend/internal/logger"
	"github.com/shinyyama/barter-backend/internal/model"
	"github.com/shinyyama/barter-backend/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type seedItem struct {
	Owner       string
	Title       string
	Description string
	Value       float64
	Desired     []string
}

func main() {
	if err := run(); err != nil {
		logrus.Fatalf("seed failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)
	gdb, err := db.Connect(cfg, log)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}

	items := buildSeedItems()
	if pattern := os.Getenv("SEED_IMAGE_GLOB"); pattern != "" {
		extra, err := itemsFromImages(pattern, cfg.ValuationDefault)
		if err != nil {
			return err
		}
		items = append(items, extra...)
	}

	canSeed, err := shouldSeed(ctx, gdb)
	if err != nil {
		return err
	}
	if !canSeed {
		log.Info("items already exist; skipping seed (set FORCE_SEED=true to override)")
		return nil
	}

	err = gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := repository.NewUserRepository(tx)
		itemRepo := repository.NewItemRepository(tx)
		for idx, it := range items {
			if _, err := users.Ensure(ctx, it.Owner); err != nil {
				return fmt.Errorf("ensure user %s: %w", it.Owner, err)
			}
			value := it.Value
			imageURL := picsumURL(it.Title, idx+1)
			item := &model.Item{
				OwnerUID:       it.Owner,
				Title:          it.Title,
				Description:    it.Description,
				EstimatedValue: &value,
				ImageURL:       &imageURL,
				DesiredItems:   it.Desired,
			}
			if err := itemRepo.Create(ctx, item); err != nil {
				return fmt.Errorf("insert item %q: %w", it.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.WithField("count", len(items)).Info("seeded items")
	return nil
}

// buildSeedItems spreads items over a few demo users so every band has candidates from others.
func buildSeedItems() []seedItem {
	type group struct {
		Value   float64
		Titles  []string
		Desired []string
	}
	owners := []string{"demo-alice", "demo-bob", "demo-chika", "demo-dan"}
	groups := []group{
		{Value: 15, Titles: []string{"Paperback Sci-Fi Bundle", "Ceramic Mug Set", "Yoga Block Pair", "Board Game Expansion"}, Desired: []string{"books", "puzzle"}},
		{Value: 45, Titles: []string{"Cast Iron Skillet", "Wireless Mouse", "Hiking Daypack", "Acrylic Paint Set"}, Desired: []string{"keyboard", "backpack"}},
		{Value: 90, Titles: []string{"Mechanical Keyboard", "Studio Headphones", "Camping Chair", "Bluetooth Speaker"}, Desired: []string{"headphones", "speaker", "camera"}},
		{Value: 180, Titles: []string{"Acoustic Guitar", "Film Camera", "Road Bike Helmet Kit", "Espresso Grinder"}, Desired: []string{"guitar", "lens"}},
		{Value: 400, Titles: []string{"Mirrorless Lens 35mm", "Standing Desk Frame", "Electric Scooter", "Synthesizer"}, Desired: []string{"camera", "bike"}},
	}

	var items []seedItem
	n := 0
	for _, g := range groups {
		for i, t := range g.Titles {
			owner := owners[n%len(owners)]
			n++
			items = append(items, seedItem{
				Owner:       owner,
				Title:       t,
				Description: fmt.Sprintf("%s in good condition, lightly used. Happy to trade.", t),
				Value:       g.Value + float64(i)*2,
				Desired:     g.Desired,
			})
		}
	}
	return items
}

// itemsFromImages creates one item per image file, titled after the file name.
func itemsFromImages(pattern string, value float64) ([]seedItem, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob sample items: %w", err)
	}
	out := make([]seedItem, 0, len(paths))
	for _, p := range paths {
		base := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		title := toTitle(base)
		if title == "" {
			continue
		}
		out = append(out, seedItem{
			Owner:       "demo-samples",
			Title:       title,
			Description: fmt.Sprintf("%s - sample item for the barter marketplace.", title),
			Value:       value,
		})
	}
	return out, nil
}

func shouldSeed(ctx context.Context, gdb *gorm.DB) (bool, error) {
	var cnt int64
	if err := gdb.WithContext(ctx).Model(&model.Item{}).Count(&cnt).Error; err != nil {
		return false, fmt.Errorf("count items: %w", err)
	}
	if cnt == 0 {
		return true, nil
	}
	return strings.EqualFold(os.Getenv("FORCE_SEED"), "true"), nil
}

func picsumURL(title string, itemIndex int) string {
	slug := strings.ToLower(strings.Join(strings.Fields(title), "-"))
	return fmt.Sprintf("https://picsum.photos/seed/%s-%d/600/600", slug, itemIndex)
}

func toTitle(base string) string {
	normalized := strings.NewReplacer("-", " ", "_", " ").Replace(base)
	parts := strings.Fields(normalized)
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	for i := 1; i < len(runes); i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}
