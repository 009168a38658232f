package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Store 聚合所有账本仓储；Transaction 内的 *Store 共享同一个 tx
type Store struct {
	db *gorm.DB

	Orders        OrderRepository
	Products      ProductRepository
	Commissions   CommissionRepository
	Notifications NotificationRepository
	Referrals     ReferralRepository
	Outbox        OutboxRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Orders:        NewOrderRepository(db),
		Products:      NewProductRepository(db),
		Commissions:   NewCommissionRepository(db),
		Notifications: NewNotificationRepository(db),
		Referrals:     NewReferralRepository(db),
		Outbox:        NewOutboxRepository(db),
	}
}

// DB exposes the handle for health checks and migrations.
func (s *Store) DB() *gorm.DB { return s.db }

// Transaction runs fn against a Store bound to one database transaction.
// Every repository call inside fn must go through tx.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// Ping checks the connection pool.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateKey matches unique-constraint violations from postgres and sqlite.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

func offsetLimit(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return (page - 1) * pageSize, pageSize
}
