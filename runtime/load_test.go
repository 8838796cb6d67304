package runtime_test

import (
	"context"
	"estate-chat/domain/event"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingSink struct {
	count *atomic.Int64
}

func (s countingSink) Consume(_ context.Context, _ event.ChangeEvent) error {
	s.count.Add(1)
	return nil
}

func TestOrchestrator_LoadTest(t *testing.T) {
	req := require.New(t)
	orchestrator, monitoring := newOrchestrator(5000)

	// Given 200 pairs of users, each with two open tabs
	const pairs = 200
	var received atomic.Int64
	for i := 0; i < pairs; i++ {
		for _, user := range []string{fmt.Sprintf("buyer-%d", i), fmt.Sprintf("seller-%d", i)} {
			orchestrator.RegisterConnection(user, user+"-tab1", countingSink{count: &received})
			orchestrator.RegisterConnection(user, user+"-tab2", countingSink{count: &received})
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orchestrator.Start(ctx)
	defer orchestrator.Stop()

	// When every buyer writes 10 messages
	const perPair = 10
	start := time.Now()
	for n := 0; n < perPair; n++ {
		for i := 0; i < pairs; i++ {
			orchestrator.Publish(event.MessageInserted{
				Message: message(fmt.Sprintf("buyer-%d", i), fmt.Sprintf("seller-%d", i)),
			})
		}
	}

	// Then each message reaches the four tabs of its pair
	expected := int64(pairs * perPair * 4)
	req.Eventually(func() bool { return received.Load() == expected }, 5*time.Second, 10*time.Millisecond)
	req.Zero(monitoring.EventsDropped)
	t.Logf("%d deliveries in %v", expected, time.Since(start))
}
