// Package storage 以 PostgreSQL 持久化分析紀錄與點數帳戶。
// 設定中 Host 留空即停用，上層元件對 nil Storage 均安全。
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/straitwatch/strait_radar/pkg/config"
	"github.com/straitwatch/strait_radar/pkg/model"
)

// Storage 資料庫存取
type Storage struct {
	db *sql.DB
}

// New 建立連線並初始化結構
func New(cfg config.DBConfig) (*Storage, func(), error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, err
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS analysis_runs (
			id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			probability TEXT NOT NULL,
			confidence TEXT NOT NULL,
			enhanced BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to init analysis_runs table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS credit_accounts (
			user_id TEXT PRIMARY KEY,
			credits DOUBLE PRECISION NOT NULL,
			last_reset TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to init credit_accounts table: %w", err)
	}

	cleanup := func() { db.Close() }
	return &Storage{db: db}, cleanup, nil
}

// SaveRun 寫入一筆分析紀錄
func (s *Storage) SaveRun(ctx context.Context, run model.AnalysisRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (id, model, probability, confidence, enhanced)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID, run.Model, run.Probability, run.Confidence, run.Enhanced)
	return err
}

// ListRuns 取最近的分析紀錄
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]model.AnalysisRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model, probability, confidence, enhanced, created_at::TEXT
		FROM analysis_runs ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.AnalysisRun
	for rows.Next() {
		var run model.AnalysisRun
		if err := rows.Scan(&run.ID, &run.Model, &run.Probability, &run.Confidence, &run.Enhanced, &run.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// EnsureAccount 建立帳戶或在跨月時重置額度
func (s *Storage) EnsureAccount(ctx context.Context, userID, monthKey string, quota float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credit_accounts (user_id, credits, last_reset)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET credits = EXCLUDED.credits, last_reset = EXCLUDED.last_reset
		WHERE credit_accounts.last_reset <> EXCLUDED.last_reset
	`, userID, quota, monthKey)
	return err
}

// GetCredits 查詢餘額
func (s *Storage) GetCredits(ctx context.Context, userID string) (float64, error) {
	var credits float64
	err := s.db.QueryRowContext(ctx,
		`SELECT credits FROM credit_accounts WHERE user_id = $1`, userID).Scan(&credits)
	return credits, err
}

// DebitIfEnough 單一條件更新完成扣點，等價於 compare-and-swap：
// 餘額不足時不更動任何資料並回報 false。
func (s *Storage) DebitIfEnough(ctx context.Context, userID string, amount float64) (float64, bool, error) {
	var remaining float64
	err := s.db.QueryRowContext(ctx, `
		UPDATE credit_accounts SET credits = credits - $2
		WHERE user_id = $1 AND credits >= $2
		RETURNING credits
	`, userID, amount).Scan(&remaining)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return remaining, true, nil
}
