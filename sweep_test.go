package multitoken

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/multitoken/store/memory"
)

// settled returns a pending transfer that eviction leaves alone.
func settled() *Pending {
	p := &Pending{done: make(chan struct{})}
	p.claim()
	return p
}

func TestSweepRunsUntilStop(t *testing.T) {
	l := New(memory.New(), WithOwner("root"), WithLogger(slog.New(slog.DiscardHandler)))
	l.sweepInterval = 5 * time.Millisecond
	require.NoError(t, l.Start(context.Background()))

	l.pending.Set("expired", settled(), time.Millisecond)
	require.Eventually(t, func() bool { return l.pending.ItemCount() == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, l.Stop())

	l.pending.Set("after-stop", settled(), time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, l.pending.ItemCount())
}
