// Package fallback 提供通用的資料來源遞補鏈：依序嘗試各來源，
// 第一個成功且通過品質檢查者勝出。鏈本身絕不回傳錯誤，部分或
// 全部失敗一律降級為資料，來源出處以 Outcome 回報給呼叫端。
package fallback

import (
	"context"
	"time"
)

// Step 鏈中的一個資料來源
type Step[T any] struct {
	Name      string
	Synthetic bool          // 此來源屬於備援／模擬資料
	Timeout   time.Duration // 0 表示沿用外層 context
	Produce   func(ctx context.Context) (T, error)
	Accept    func(T) bool // nil 表示只要沒出錯即接受
}

// Outcome 鏈的結果與出處
type Outcome[T any] struct {
	Value     T
	Source    string
	Synthetic bool
}

// Run 依序執行各來源，逾時或出錯即換下一個，不在原地重試。
// 全部失敗時回傳最後一個來源的輸出並標記為模擬資料；最後一個
// 來源應為不會失敗的靜態資料。
func Run[T any](ctx context.Context, steps []Step[T]) Outcome[T] {
	var last Outcome[T]
	for i, step := range steps {
		value, err := produce(ctx, step)
		if err != nil {
			continue
		}
		if step.Accept != nil && !step.Accept(value) {
			// 技術上成功但品質不足，視同失敗
			if i == len(steps)-1 {
				last = Outcome[T]{Value: value, Source: step.Name, Synthetic: true}
			}
			continue
		}
		return Outcome[T]{Value: value, Source: step.Name, Synthetic: step.Synthetic}
	}
	last.Synthetic = true
	if last.Source == "" && len(steps) > 0 {
		last.Source = steps[len(steps)-1].Name
	}
	return last
}

func produce[T any](ctx context.Context, step Step[T]) (T, error) {
	if step.Timeout <= 0 {
		return step.Produce(ctx)
	}

	stepCtx, cancel := context.WithTimeout(ctx, step.Timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := step.Produce(stepCtx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.value, r.err
	case <-stepCtx.Done():
		var zero T
		return zero, stepCtx.Err()
	}
}
