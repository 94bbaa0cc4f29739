// cmd/storectl/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/inventory"
	"github.com/your-org/storefront/internal/infrastructure/database/postgres"
	"github.com/your-org/storefront/internal/pkg/auth"
	"github.com/your-org/storefront/internal/pkg/export"
	"github.com/your-org/storefront/internal/pkg/logger"
	"github.com/your-org/storefront/internal/pkg/metrics"
)

const usage = `Usage: storectl <command> [args]

Commands:
  hash-password <password>   print a bcrypt hash using BCRYPT_COST
  migrate [--seed]           run migrations and indexes, optionally seed
  reconcile                  recompute every product's stock from inventory
  export <file.xlsx>         write the catalog spreadsheet to file`

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	if os.Args[1] == "hash-password" {
		if len(os.Args) < 3 {
			log.Fatal("Usage: storectl hash-password <password>")
		}
		hash, err := hashPassword(os.Args[2])
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logger: %v", err)
	}

	db, err := postgres.NewConnection(cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, appLogger, db, os.Args[1], os.Args[2:]); err != nil {
		appLogger.WithError(err).WithField("command", os.Args[1]).Fatal("command failed")
	}
}

// hashPassword needs only BCRYPT_COST, not a full service configuration
func hashPassword(password string) (string, error) {
	cost, err := config.LoadBcryptCost()
	if err != nil {
		return "", err
	}
	cfg := &config.Config{Security: config.SecurityConfig{BcryptCost: cost}}
	return auth.NewPasswordManager(cfg).HashPassword(password)
}

func run(ctx context.Context, cfg *config.Config, appLogger *logrus.Logger, db *postgres.Database, command string, args []string) error {
	switch command {
	case "migrate":
		migration := postgres.NewMigration(db.GetDB(), cfg, appLogger)
		if err := migration.RunAutoMigrations(); err != nil {
			return err
		}
		if err := migration.CreateIndexes(); err != nil {
			return err
		}
		if len(args) > 0 && args[0] == "--seed" {
			return migration.SeedInitialData()
		}
		return nil

	case "reconcile":
		fixed, err := inventory.NewService(db.GetDB(), cfg, appLogger, metrics.NewRecorder(nil)).ReconcileAll(ctx)
		if err != nil {
			return err
		}
		appLogger.WithField("corrected", fixed).Info("stock reconciliation finished")
		return nil

	case "export":
		if len(args) < 1 {
			return fmt.Errorf("usage: storectl export <file.xlsx>")
		}
		if err := exportCatalog(ctx, export.NewCatalogExporter(db.GetDB(), appLogger), args[0]); err != nil {
			return err
		}
		appLogger.WithField("file", args[0]).Info("catalog exported")
		return nil
	}

	return fmt.Errorf("unknown command %q\n%s", command, usage)
}

// exportCatalog writes the workbook to path. A failed close is reported,
// since it can lose buffered data.
func exportCatalog(ctx context.Context, exporter *export.CatalogExporter, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return exporter.Write(ctx, f)
}
