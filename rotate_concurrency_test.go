package tokenlife

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRotateConcurrencySingleWinner(t *testing.T) {
	engine, _, done := newTestEngine(t, testConfig())
	defer done()

	created, err := engine.CreateSession(context.Background(), "u1", AuthMethodPassword)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := engine.Rotate(context.Background(), created.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	fail := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, ErrRefreshReuse) || errors.Is(err, ErrRefreshRevoked) {
			fail++
			continue
		}
		t.Fatalf("unexpected rotation error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one rotation success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d rotation failures, got %d", n-1, fail)
	}
}
