// Package credits 管理使用者點數：每月重置固定額度，扣點為
// 單一原子操作（讀取、檢查、寫入在同一把鎖或同一條 SQL 內完
// 成），並發請求不會重複扣款。
package credits

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInsufficient 餘額不足
var ErrInsufficient = errors.New("credits: insufficient balance")

// Account 使用者點數狀態
type Account struct {
	Credits    float64 `json:"credits"`
	MaxCredits float64 `json:"maxCredits"`
	LastReset  string  `json:"-"`
}

// Ledger 點數帳本介面
type Ledger interface {
	// Balance 查詢餘額，必要時套用每月重置
	Balance(ctx context.Context, userID string) (Account, error)
	// Debit 原子扣點，餘額不足回傳 ErrInsufficient
	Debit(ctx context.Context, userID string, amount float64) (Account, error)
}

// MonthKey 每月重置的鍵，格式 YYYY-MM
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

type memoryEntry struct {
	credits   float64
	lastReset string
}

// MemoryLedger 行程內記憶體帳本。所有讀檢寫都在同一把鎖內，
// 同一使用者的並發扣點不會發生重複消費。
type MemoryLedger struct {
	mu       sync.Mutex
	quota    float64
	accounts map[string]*memoryEntry
	now      func() time.Time
}

// NewMemoryLedger 建立記憶體帳本
func NewMemoryLedger(monthlyQuota float64) *MemoryLedger {
	return &MemoryLedger{
		quota:    monthlyQuota,
		accounts: make(map[string]*memoryEntry),
		now:      time.Now,
	}
}

func (l *MemoryLedger) ensureLocked(userID string) *memoryEntry {
	month := MonthKey(l.now())
	entry, ok := l.accounts[userID]
	if !ok || entry.lastReset != month {
		entry = &memoryEntry{credits: l.quota, lastReset: month}
		l.accounts[userID] = entry
	}
	return entry
}

// Balance 查詢餘額
func (l *MemoryLedger) Balance(_ context.Context, userID string) (Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.ensureLocked(userID)
	return Account{Credits: entry.credits, MaxCredits: l.quota, LastReset: entry.lastReset}, nil
}

// Debit 原子扣點
func (l *MemoryLedger) Debit(_ context.Context, userID string, amount float64) (Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.ensureLocked(userID)
	if entry.credits < amount {
		return Account{Credits: entry.credits, MaxCredits: l.quota}, ErrInsufficient
	}
	entry.credits -= amount
	return Account{Credits: entry.credits, MaxCredits: l.quota, LastReset: entry.lastReset}, nil
}
