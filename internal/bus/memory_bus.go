// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/loopcast/loopcast/internal/log"
	"github.com/loopcast/loopcast/internal/metrics"
)

// MemoryBus is an in-process pub/sub. It is not durable; delivery is
// best-effort and at most once, and a full subscriber channel is treated as
// backpressure: the publish gives up on that one subscriber rather than
// blocking every other one.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[Topic][]chan Message
}

const subscriberBuffer = 64

const dropLogEvery = 100

var dropCount atomic.Uint64

// NewMemoryBus constructs an empty MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[Topic][]chan Message)}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

// Publish fans msg out to every current subscriber of topic. A subscriber
// whose channel is full is skipped for this message only; it is never
// removed by Publish (removal happens on the subscriber's own send-failure
// path, owned by the caller that reads from C()).
func (b *MemoryBus) Publish(ctx context.Context, topic Topic, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	b.mu.RLock()
	chs := append([]chan Message(nil), b.subs[topic]...)
	b.mu.RUnlock()

	for _, ch := range chs {
		select {
		case ch <- msg:
		case <-ctx.Done():
			reason := publishDropReason(ctx.Err())
			metrics.IncBusDropReason(string(topic), reason)
			count := dropCount.Add(1)
			if count%dropLogEvery == 0 {
				log.L().Warn().
					Str("topic", string(topic)).
					Str("reason", reason).
					Uint64("dropped", count).
					Msg("memory bus failed to publish due to context cancellation")
			}
			return fmt.Errorf("publish topic %q: %w", topic, ctx.Err())
		default:
			metrics.IncBusDropReason(string(topic), "full")
		}
	}
	return nil
}

// Subscribe registers a new, buffered subscriber on topic.
func (b *MemoryBus) Subscribe(ctx context.Context, topic Topic) (Subscriber, error) {
	ch := make(chan Message, subscriberBuffer)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	return &memSub{b: b, topic: topic, ch: ch}, nil
}

type memSub struct {
	b     *MemoryBus
	topic Topic
	ch    chan Message
}

func (s *memSub) C() <-chan Message {
	return s.ch
}

func (s *memSub) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	lst := s.b.subs[s.topic]
	out := lst[:0]
	for _, c := range lst {
		if c != s.ch {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(s.b.subs, s.topic)
	} else {
		s.b.subs[s.topic] = out
	}
	close(s.ch)
	return nil
}

var _ Bus = (*MemoryBus)(nil)
