package net

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hati/internal/engine"
	"hati/internal/ledger"
)

func TestRun_StopsOnContextCancel(t *testing.T) {
	exch := engine.New(ledger.New("ETH", "USD", []ledger.Seed{
		{Account: "alice", Base: d("10"), Quote: d("50000")},
	}))
	srv := New("127.0.0.1", 0, 1, exch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Run(ctx)
		close(done)
	}()

	// Let the listener come up, then cancel with no client ever
	// connecting. Run must not stay blocked in Accept.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "server did not stop on context cancellation")
	}
}
