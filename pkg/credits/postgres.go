package credits

import (
	"context"
	"time"

	"github.com/straitwatch/strait_radar/pkg/storage"
)

// PostgresLedger 資料庫帳本，扣點由單一條件 UPDATE 保證原子性
type PostgresLedger struct {
	store *storage.Storage
	quota float64
	now   func() time.Time
}

// NewPostgresLedger 建立資料庫帳本
func NewPostgresLedger(store *storage.Storage, monthlyQuota float64) *PostgresLedger {
	return &PostgresLedger{store: store, quota: monthlyQuota, now: time.Now}
}

// Balance 查詢餘額，必要時套用每月重置
func (l *PostgresLedger) Balance(ctx context.Context, userID string) (Account, error) {
	month := MonthKey(l.now())
	if err := l.store.EnsureAccount(ctx, userID, month, l.quota); err != nil {
		return Account{}, err
	}
	credits, err := l.store.GetCredits(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	return Account{Credits: credits, MaxCredits: l.quota, LastReset: month}, nil
}

// Debit 原子扣點
func (l *PostgresLedger) Debit(ctx context.Context, userID string, amount float64) (Account, error) {
	month := MonthKey(l.now())
	if err := l.store.EnsureAccount(ctx, userID, month, l.quota); err != nil {
		return Account{}, err
	}

	remaining, ok, err := l.store.DebitIfEnough(ctx, userID, amount)
	if err != nil {
		return Account{}, err
	}
	if !ok {
		balance, berr := l.store.GetCredits(ctx, userID)
		if berr != nil {
			balance = 0
		}
		return Account{Credits: balance, MaxCredits: l.quota}, ErrInsufficient
	}
	return Account{Credits: remaining, MaxCredits: l.quota, LastReset: month}, nil
}
