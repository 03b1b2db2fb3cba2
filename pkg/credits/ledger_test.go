package credits

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2026-03", MonthKey(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)))
	// 時區換算以 UTC 為準
	tz := time.FixedZone("UTC+8", 8*3600)
	assert.Equal(t, "2026-02", MonthKey(time.Date(2026, 3, 1, 2, 0, 0, 0, tz)))
}

func TestMemoryLedgerBalanceInitializes(t *testing.T) {
	l := NewMemoryLedger(1000)

	account, err := l.Balance(context.Background(), "alice")

	require.NoError(t, err)
	assert.Equal(t, 1000.0, account.Credits)
	assert.Equal(t, 1000.0, account.MaxCredits)
}

func TestMemoryLedgerDebit(t *testing.T) {
	l := NewMemoryLedger(1000)

	account, err := l.Debit(context.Background(), "alice", 27.5)

	require.NoError(t, err)
	assert.Equal(t, 972.5, account.Credits)

	// 不同使用者互不影響
	other, err := l.Balance(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, other.Credits)
}

func TestMemoryLedgerInsufficient(t *testing.T) {
	l := NewMemoryLedger(10)

	_, err := l.Debit(context.Background(), "alice", 50)

	assert.ErrorIs(t, err, ErrInsufficient)

	// 失敗的扣點不得動到餘額
	account, _ := l.Balance(context.Background(), "alice")
	assert.Equal(t, 10.0, account.Credits)
}

func TestMemoryLedgerMonthlyReset(t *testing.T) {
	l := NewMemoryLedger(1000)
	current := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	_, err := l.Debit(context.Background(), "alice", 600)
	require.NoError(t, err)

	// 跨月後餘額重置為額度
	current = time.Date(2026, 4, 1, 0, 30, 0, 0, time.UTC)
	account, err := l.Balance(context.Background(), "alice")

	require.NoError(t, err)
	assert.Equal(t, 1000.0, account.Credits)
	assert.Equal(t, "2026-04", account.LastReset)
}

func TestMemoryLedgerConcurrentDebitNoDoubleSpend(t *testing.T) {
	l := NewMemoryLedger(50)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Debit(context.Background(), "alice", 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, succeeded)
	account, _ := l.Balance(context.Background(), "alice")
	assert.Equal(t, 0.0, account.Credits)
}
