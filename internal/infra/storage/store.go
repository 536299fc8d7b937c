package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"order_engine/internal/domain"
	"order_engine/internal/infra"

	"github.com/glebarez/sqlite"
	sloggorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Storage is the gorm-backed order repository.
type Storage struct {
	db *gorm.DB
}

var _ domain.OrderRepository = (*Storage)(nil)

// NewStorage opens the configured database and migrates the order table.
func NewStorage(cfg infra.DatabaseConfig, logger *slog.Logger) (*Storage, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: sloggorm.New(
			sloggorm.WithHandler(logger.Handler()),
			sloggorm.WithSlowThreshold(200*time.Millisecond),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.AutoMigrate(&domain.Order{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

func openDialector(cfg infra.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(postgresDSN(cfg)), nil
	case "sqlite", "":
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create DB directory: %w", err)
			}
		}
		return sqlite.Open(cfg.Path), nil
	default:
		return nil, &domain.ConfigError{Field: "database.driver", Err: fmt.Errorf("unsupported driver %q", cfg.Driver)}
	}
}

// postgresDSN prefers an explicit DSN and otherwise assembles one from parts.
func postgresDSN(cfg infra.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.Name, port, sslMode)
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create inserts a new order record.
func (s *Storage) Create(ctx context.Context, order *domain.Order) error {
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return &domain.PersistenceError{Op: "create", Err: err}
	}
	return nil
}

// Update applies the non-nil patch fields and returns the stored order.
func (s *Storage) Update(ctx context.Context, id string, patch domain.OrderPatch) (*domain.Order, error) {
	columns := patchColumns(patch)
	columns["updated_at"] = time.Now()

	res := s.db.WithContext(ctx).Model(&domain.Order{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		return nil, &domain.PersistenceError{Op: "update", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return nil, &domain.NotFoundError{ID: id}
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, &domain.NotFoundError{ID: id}
	}
	return order, nil
}

func patchColumns(p domain.OrderPatch) map[string]any {
	columns := make(map[string]any, 6)
	if p.Status != nil {
		columns["status"] = *p.Status
	}
	if p.ChosenDex != nil {
		columns["chosen_dex"] = *p.ChosenDex
	}
	if p.TxHash != nil {
		columns["tx_hash"] = *p.TxHash
	}
	if p.ExecutedPrice != nil {
		columns["executed_price"] = *p.ExecutedPrice
	}
	if p.FailureReason != nil {
		columns["failure_reason"] = *p.FailureReason
	}
	return columns
}

// Get retrieves an order by id
func (s *Storage) Get(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	err := s.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get", Err: err}
	}
	return &order, nil
}

// List retrieves all orders, newest first
func (s *Storage) List(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "list", Err: err}
	}
	return orders, nil
}
