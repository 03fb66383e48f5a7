// Package store persists issued payment requests with GORM.
package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/TrippyLeaf/solana-pay/types"
)

// ErrNotFound is returned when no payment matches a lookup.
var ErrNotFound = errors.New("payment not found")

// Store reads and writes Payment records.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the schema. DSNs starting with "file:"
// or equal to ":memory:" open SQLite, anything else is handed to MySQL.
func Open(dsn string) (*Store, error) {
	var dialector gorm.Dialector
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		dialector = sqlite.Open(dsn)
	} else {
		dialector = mysql.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, types.WrapError(types.ErrCodeConfig, err, "failed to open database")
	}
	return New(db)
}

// New wraps an open connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Payment{}); err != nil {
		return nil, types.WrapError(types.ErrCodeConfig, err, "failed to migrate payments")
	}
	return &Store{db: db}, nil
}

// Create inserts p.
func (s *Store) Create(ctx context.Context, p *Payment) error {
	return s.db.WithContext(ctx).Create(p).Error
}

// GetByOrderID returns the payment with the given order ID.
func (s *Store) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	return s.first(ctx, "order_id = ?", orderID)
}

// GetByReference returns the payment tagged with reference.
func (s *Store) GetByReference(ctx context.Context, reference string) (*Payment, error) {
	return s.first(ctx, "reference = ?", reference)
}

// UpdateStatus moves a payment to status, recording the settling signature
// and, for failures, the reason.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, status Status, signature, reason string) error {
	res := s.db.WithContext(ctx).Model(&Payment{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{"status": status, "signature": signature, "reason": reason})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPending returns up to limit pending payments, oldest first.
func (s *Store) ListPending(ctx context.Context, limit int) ([]Payment, error) {
	var out []Payment
	q := s.db.WithContext(ctx).Where("status = ?", StatusPending).Order("id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return out, q.Find(&out).Error
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) first(ctx context.Context, query string, arg string) (*Payment, error) {
	var p Payment
	err := s.db.WithContext(ctx).Where(query, arg).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
