package main

import (
	"context"
	"log"
	"time"

	"fieldscan/internal/models"
	"fieldscan/internal/repository"
	"fieldscan/pkg/auth"
	"fieldscan/pkg/config"
	"fieldscan/pkg/logger"
	"fieldscan/pkg/postgres"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Seeds a demo user plus a small set of accounting records so the matching
// engine has something to score uploaded documents against.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	ctx := context.Background()

	if err := postgres.Migrate(&cfg.Database, appLogger); err != nil {
		appLogger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	appLogger.Info("Starting database seeding...")

	if err := seedDemoUser(ctx, db, appLogger); err != nil {
		appLogger.Fatal("Failed to seed demo user", zap.Error(err))
	}
	if err := seedAccountingRecords(ctx, db, appLogger); err != nil {
		appLogger.Fatal("Failed to seed accounting records", zap.Error(err))
	}

	appLogger.Info("Database seeding completed successfully!")
}

func seedDemoUser(ctx context.Context, db *pgxpool.Pool, appLogger *zap.Logger) error {
	userRepo := repository.NewUserRepository(db, appLogger)

	if existing, _ := userRepo.GetByEmail(ctx, "demo@fieldscan.dev"); existing != nil {
		appLogger.Info("Demo user already exists, skipping")
		return nil
	}

	hashed, err := auth.HashPassword("demo-password")
	if err != nil {
		return err
	}

	now := time.Now()
	user := &models.User{
		ID:        uuid.New(),
		Username:  "demo",
		Email:     "demo@fieldscan.dev",
		Password:  hashed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := userRepo.Create(ctx, user); err != nil {
		return err
	}

	appLogger.Info("Created demo user", zap.String("email", user.Email))
	return nil
}

func seedAccountingRecords(ctx context.Context, db *pgxpool.Pool, appLogger *zap.Logger) error {
	var count int
	if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM purchase_orders").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		appLogger.Info("Accounting records already present, skipping")
		return nil
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	suppliers := map[string]uuid.UUID{
		"Acme Building Supplies": uuid.New(),
		"Northside Electrical":   uuid.New(),
		"Harbor Timber Co":       uuid.New(),
	}
	for name, id := range suppliers {
		sql, args, err := psql.Insert("suppliers").Columns("id", "name").Values(id, name).ToSql()
		if err != nil {
			return err
		}
		if _, err := db.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}

	clients := map[string]uuid.UUID{
		"Greenfield Developments": uuid.New(),
		"Mercer & Sons":           uuid.New(),
	}
	for name, id := range clients {
		sql, args, err := psql.Insert("clients").Columns("id", "name").Values(id, name).ToSql()
		if err != nil {
			return err
		}
		if _, err := db.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}

	day := func(offset int) time.Time {
		return time.Now().AddDate(0, 0, -offset)
	}

	pos := []struct {
		number   string
		supplier string
		amount   float64
		date     time.Time
	}{
		{"PO-1001", "Acme Building Supplies", 2450.00, day(30)},
		{"PO-1002", "Northside Electrical", 1890.50, day(14)},
		{"PO-1003", "Harbor Timber Co", 7625.75, day(7)},
	}
	for _, po := range pos {
		supplierID := suppliers[po.supplier]
		sql, args, err := psql.Insert("purchase_orders").
			Columns("id", "po_number", "supplier_id", "total_amount", "date").
			Values(uuid.New(), po.number, supplierID, po.amount, po.date).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := db.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}

	invoices := []struct {
		number string
		client string
		total  float64
		date   time.Time
	}{
		{"INV-2024-041", "Greenfield Developments", 12400.00, day(21)},
		{"INV-2024-042", "Mercer & Sons", 3150.25, day(10)},
	}
	for _, inv := range invoices {
		clientID := clients[inv.client]
		sql, args, err := psql.Insert("invoices").
			Columns("id", "invoice_number", "client_id", "total", "issue_date").
			Values(uuid.New(), inv.number, clientID, inv.total, inv.date).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := db.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}

	bills := []struct {
		number   string
		supplier string
		amount   float64
		date     time.Time
	}{
		{"BILL-553", "Acme Building Supplies", 480.90, day(5)},
		{"BILL-554", "Harbor Timber Co", 1299.00, day(3)},
	}
	for _, b := range bills {
		supplierID := suppliers[b.supplier]
		sql, args, err := psql.Insert("bills").
			Columns("id", "bill_number", "supplier_id", "amount", "date").
			Values(uuid.New(), b.number, supplierID, b.amount, b.date).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := db.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}

	expenses := []struct {
		description string
		amount      float64
		date        time.Time
	}{
		{"Fuel for site generator", 86.40, day(2)},
		{"Hardware store run - fixings and sealant", 134.99, day(6)},
		{"Parking near Greenfield site", 18.00, day(1)},
	}
	for _, e := range expenses {
		sql, args, err := psql.Insert("expenses").
			Columns("id", "description", "amount", "date").
			Values(uuid.New(), e.description, e.amount, e.date).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := db.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}

	appLogger.Info("Seeded accounting records",
		zap.Int("purchase_orders", len(pos)),
		zap.Int("invoices", len(invoices)),
		zap.Int("bills", len(bills)),
		zap.Int("expenses", len(expenses)),
	)
	return nil
}
