package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/config"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/model"
)

// Storage 快照的 Postgres 镜像
type Storage struct {
	db *sql.DB
}

// ConnString 由配置生成连接串
func ConnString(cfg config.DBConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
}

// NewStorage 连接数据库并初始化表结构
func NewStorage(ctx context.Context, cfg config.DBConfig) (*Storage, error) {
	db, err := sql.Open("postgres", ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			snapshot_id TEXT PRIMARY KEY,
			run_timestamp TIMESTAMPTZ NOT NULL,
			overall_score DOUBLE PRECISION NOT NULL,
			events_count INTEGER NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			snapshot_id TEXT NOT NULL REFERENCES snapshots(snapshot_id),
			timestamp TEXT,
			source TEXT NOT NULL,
			place TEXT,
			text TEXT NOT NULL,
			thematic_category TEXT,
			opportunity_score DOUBLE PRECISION NOT NULL,
			opportunity_confidence DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS impacts (
			id SERIAL PRIMARY KEY,
			event_id TEXT NOT NULL REFERENCES events(id),
			industry TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			impact_type TEXT NOT NULL,
			relevance DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_snapshot ON events(snapshot_id)`,
		`CREATE INDEX IF NOT EXISTS idx_impacts_industry ON impacts(industry)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}

	return nil
}

// SaveSnapshot 在一个事务中写入快照、事件与行业影响
func (s *Storage) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (snapshot_id, run_timestamp, overall_score, events_count)
		VALUES ($1, $2, $3, $4)`,
		snap.SnapshotID, snap.RunTimestamp, snap.OverallScore, snap.EventsCount)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if len(snap.Events) == 0 {
		return tx.Commit()
	}

	events, err := tx.PrepareContext(ctx, pq.CopyIn("events",
		"id", "snapshot_id", "timestamp", "source", "place", "text",
		"thematic_category", "opportunity_score", "opportunity_confidence"))
	if err != nil {
		return fmt.Errorf("failed to prepare event copy: %w", err)
	}
	for _, e := range snap.Events {
		_, err = events.ExecContext(ctx, e.ID, snap.SnapshotID, e.Timestamp, string(e.Source),
			sanitize(e.Place), sanitize(e.Text), e.ThematicCategory, e.OpportunityScore, e.OpportunityConfidence)
		if err != nil {
			events.Close()
			return fmt.Errorf("failed to copy event: %w", err)
		}
	}
	if _, err := events.ExecContext(ctx); err != nil {
		events.Close()
		return fmt.Errorf("failed to flush events: %w", err)
	}
	if err := events.Close(); err != nil {
		return fmt.Errorf("failed to close event copy: %w", err)
	}

	impacts, err := tx.PrepareContext(ctx, pq.CopyIn("impacts",
		"event_id", "industry", "score", "impact_type", "relevance"))
	if err != nil {
		return fmt.Errorf("failed to prepare impact copy: %w", err)
	}
	for _, e := range snap.Events {
		for _, imp := range e.Impacts {
			_, err = impacts.ExecContext(ctx, e.ID, imp.Industry, imp.Score, string(imp.ImpactType), imp.Relevance)
			if err != nil {
				impacts.Close()
				return fmt.Errorf("failed to copy impact: %w", err)
			}
		}
	}
	if _, err := impacts.ExecContext(ctx); err != nil {
		impacts.Close()
		return fmt.Errorf("failed to flush impacts: %w", err)
	}
	if err := impacts.Close(); err != nil {
		return fmt.Errorf("failed to close impact copy: %w", err)
	}

	return tx.Commit()
}

// sanitize 移除无效的 UTF-8 字符和 NULL 字节，PostgreSQL 文本字段不支持 NULL 字节
func sanitize(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, ""), "\x00", "")
}
