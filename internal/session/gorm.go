package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is the sessions table row used by GormPersister
type Record struct {
	ID        string `gorm:"primaryKey;size:64"`
	Data      []byte
	ExpiresAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (Record) TableName() string {
	return "frontend_sessions"
}

// Migrate creates the sessions table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

// PurgeExpired deletes rows past their expiry
func PurgeExpired(ctx context.Context, db *gorm.DB) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at < ?", time.Now()).Delete(&Record{})
	return res.RowsAffected, res.Error
}

// GormPersister stores one browser session as a row in postgres
type GormPersister struct {
	db  *gorm.DB
	id  string
	ttl time.Duration
}

func NewGormPersister(db *gorm.DB, sessionID string, ttl time.Duration) *GormPersister {
	return &GormPersister{db: db, id: sessionID, ttl: ttl}
}

func (g *GormPersister) Load(ctx context.Context) (*State, error) {
	var rec Record
	err := g.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", g.id, time.Now()).
		First(&rec).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session row: %w", err)
	}

	var st State
	if err := json.Unmarshal(rec.Data, &st); err != nil {
		return nil, nil
	}
	return &st, nil
}

func (g *GormPersister) Save(ctx context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	rec := Record{ID: g.id, Data: data, ExpiresAt: time.Now().Add(g.ttl)}
	err = g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save session row: %w", err)
	}
	return nil
}

func (g *GormPersister) Clear(ctx context.Context) error {
	if err := g.db.WithContext(ctx).Delete(&Record{}, "id = ?", g.id).Error; err != nil {
		return fmt.Errorf("delete session row: %w", err)
	}
	return nil
}
