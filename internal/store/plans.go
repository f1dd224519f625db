// Package store reads user plans for the HTTP API. Room and document state
// never reach the database.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrPlanNotFound = errors.New("plan not found")

// UserPlan is the subscription tier recorded for a user id.
type UserPlan struct {
	UserID    string    `gorm:"column:user_id;primaryKey" json:"userId"`
	Plan      string    `gorm:"column:plan;not null;default:Free" json:"plan"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (UserPlan) TableName() string { return "user_plans" }

// Open connects to PostgreSQL through GORM's pgx driver.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

type PlanStore struct {
	db *gorm.DB
}

func NewPlanStore(db *gorm.DB) *PlanStore {
	return &PlanStore{db: db}
}

func (s *PlanStore) PlanFor(ctx context.Context, userID string) (UserPlan, error) {
	var p UserPlan
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return UserPlan{}, fmt.Errorf("%s: %w", userID, ErrPlanNotFound)
	}
	if err != nil {
		return UserPlan{}, fmt.Errorf("query plan: %w", err)
	}
	return p, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
