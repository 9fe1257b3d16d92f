// Package archive persists completed conversations to a relational store so
// they outlive the process. Live conversations never touch the archive; the
// manager's completion hook writes one record per completed run.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/colloquy-ai/colloquy/config"
	"github.com/colloquy-ai/colloquy/conversation"
	"github.com/colloquy-ai/colloquy/types"
)

// ConversationRecord is one archived conversation.
type ConversationRecord struct {
	ID         string `gorm:"primaryKey"`
	Topic      string
	Status     string
	TurnCount  int
	AgentCount int
	Summary    string
	ArchivedAt time.Time
	Messages   []MessageRecord `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

// MessageRecord is one transcript entry of an archived conversation.
type MessageRecord struct {
	ID             string `gorm:"primaryKey"`
	ConversationID string `gorm:"index"`
	Seq            int
	SenderID       string
	Text           string
	Timestamp      time.Time
}

// Archiver owns the database handle.
type Archiver struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to the configured database and migrates the schema.
func Open(cfg config.ArchiveConfig, logger *zap.Logger) (*Archiver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&ConversationRecord{}, &MessageRecord{}); err != nil {
		return nil, fmt.Errorf("migrate archive schema: %w", err)
	}

	return &Archiver{
		db:     db,
		logger: logger.With(zap.String("component", "archive")),
	}, nil
}

// Save writes the snapshot, replacing any previous archive of the same
// conversation. A re-completed conversation overwrites its earlier record.
func (a *Archiver) Save(ctx context.Context, snap conversation.Snapshot) error {
	record := ConversationRecord{
		ID:         snap.ID,
		Topic:      snap.Topic,
		Status:     string(snap.Status),
		TurnCount:  snap.TurnCount,
		AgentCount: len(snap.Agents),
		ArchivedAt: time.Now(),
	}
	for i, m := range snap.Transcript {
		if m.SenderID == types.SenderSummary {
			record.Summary = m.Text
		}
		record.Messages = append(record.Messages, MessageRecord{
			ID:             m.ID,
			ConversationID: snap.ID,
			Seq:            i,
			SenderID:       m.SenderID,
			Text:           m.Text,
			Timestamp:      m.Timestamp,
		})
	}

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", snap.ID).Delete(&MessageRecord{}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error
	})
	if err != nil {
		return fmt.Errorf("archive conversation %s: %w", snap.ID, err)
	}

	a.logger.Info("conversation archived",
		zap.String("conversation_id", snap.ID),
		zap.Int("messages", len(record.Messages)),
	)
	return nil
}

// Get loads one archived conversation with its transcript in order.
func (a *Archiver) Get(ctx context.Context, id string) (*ConversationRecord, error) {
	var record ConversationRecord
	err := a.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		First(&record, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, types.NewError(types.ErrSessionNotFound, "no archived conversation with id "+id)
	}
	if err != nil {
		return nil, fmt.Errorf("load archived conversation %s: %w", id, err)
	}
	return &record, nil
}

// List returns archived conversations newest first, without transcripts.
func (a *Archiver) List(ctx context.Context, limit int) ([]ConversationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []ConversationRecord
	err := a.db.WithContext(ctx).
		Order("archived_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list archived conversations: %w", err)
	}
	return records, nil
}

// Close releases the database handle.
func (a *Archiver) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
