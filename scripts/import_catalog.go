package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/gridduel/duel-server-go/internal/config"
	"github.com/gridduel/duel-server-go/internal/game/catalog"
	"github.com/gridduel/duel-server-go/internal/repository"
)

var configPath = flag.String("config", "config/config.yaml", "path to configuration file")

func main() {
	flag.Parse()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Catalog file from args, then config, then the embedded pack
	catalogPath := cfg.Catalog.Path
	if flag.NArg() > 0 {
		catalogPath = flag.Arg(0)
	}

	fmt.Println("=== Duel Card Catalog Import ===")

	var cards *catalog.Catalog
	if catalogPath == "" {
		fmt.Println("Catalog: embedded default")
		cards, err = catalog.Default()
	} else {
		fmt.Printf("Catalog: %s\n", catalogPath)
		if _, statErr := os.Stat(catalogPath); os.IsNotExist(statErr) {
			log.Fatalf("Catalog file not found: %s", catalogPath)
		}
		cards, err = catalog.Load(catalogPath)
	}
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	all := cards.All()
	fmt.Printf("Found %d cards in %d decks\n", len(all), len(cards.DeckNames()))

	fmt.Printf("Connecting to database...\n")
	pool, err := repository.NewDB(ctx, cfg.Storage.Postgres, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	fmt.Println("✓ Database connection established")

	if err := repository.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	repo := repository.NewCardRepository(pool)
	startTime := time.Now()
	imported, err := repo.Upsert(ctx, all)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	fmt.Println("\n=== Import Complete ===")
	fmt.Printf("✓ Successfully imported: %d cards\n", imported)
	fmt.Printf("Time taken: %s\n", time.Since(startTime))

	total, err := repo.Count(ctx)
	if err != nil {
		log.Fatalf("Failed to verify import: %v", err)
	}
	fmt.Printf("Cards in database: %d\n", total)
}
