// Package main provides a CLI tool for seeding the database with demo data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	appctx "facturio/internal/core/context"
	"facturio/internal/core/types"
	"facturio/internal/domain/auth"
	"facturio/internal/domain/clients"
	"facturio/internal/domain/document"
	"facturio/internal/infrastructure/sequence"
	"facturio/internal/infrastructure/storage/postgres"
	"facturio/internal/infrastructure/storage/postgres/auth_repo"
	"facturio/internal/infrastructure/storage/postgres/client_repo"
	"facturio/internal/infrastructure/storage/postgres/document_repo"
	"facturio/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)
	allocator := sequence.New(pool)

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig("seed-only"))
	authService := auth.NewService(auth_repo.NewRepo(txManager), jwtService)
	clientService := clients.NewService(client_repo.NewRepo(txManager))
	documentService := document.NewService(document_repo.NewRepo(txManager), allocator, txManager, nil)

	user, err := authService.Register(ctx, auth.RegisterRequest{
		Email:        "demo@facturio.fr",
		Password:     "demo-password-1",
		BusinessName: "Atelier Dupont",
	})
	if err != nil {
		log.Fatalw("failed to seed demo user", "error", err)
	}
	log.Infow("seeded demo user", "email", user.Email, "id", user.ID)

	// Domain services read the acting user from the context.
	ctx = appctx.WithUser(ctx, &appctx.UserContext{
		UserID: user.ID.String(),
		Email:  user.Email,
	})

	client := clients.New(user.ID, "Boulangerie Martin")
	email := "contact@boulangerie-martin.fr"
	siret := "73282932000074"
	client.Email = &email
	client.SIRET = &siret
	if err := clientService.Create(ctx, client); err != nil {
		log.Fatalw("failed to seed demo client", "error", err)
	}
	log.Infow("seeded demo client", "name", client.Name, "id", client.ID)

	standardVAT := types.MustMoney("20")

	quote := document.New(user.ID, client.ID, document.KindQuote)
	quote.TaxRate = &standardVAT
	validity := time.Now().UTC().AddDate(0, 1, 0)
	quote.DueDate = &validity
	quote.AddLine("Refonte du site vitrine", types.NewMoney(1), types.MustMoney("1200"), nil)
	quote.AddLine("Maintenance mensuelle", types.NewMoney(3), types.MustMoney("150"), nil)
	if err := documentService.Create(ctx, quote); err != nil {
		log.Fatalw("failed to seed demo quote", "error", err)
	}
	log.Infow("seeded demo quote", "number", quote.Number, "total_ttc", quote.TotalTTC)

	invoice := document.New(user.ID, client.ID, document.KindInvoice)
	invoice.TaxRate = &standardVAT
	due := time.Now().UTC().AddDate(0, 0, 30)
	invoice.DueDate = &due
	invoice.AddLine("Acompte projet e-commerce", types.NewMoney(1), types.MustMoney("800"), nil)
	if err := documentService.Create(ctx, invoice); err != nil {
		log.Fatalw("failed to seed demo invoice", "error", err)
	}
	log.Infow("seeded demo invoice", "number", invoice.Number, "total_ttc", invoice.TotalTTC)

	log.Info("seeding completed")
}
