package storage

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mvpetrera/portfolio/internal/models"
)

const subscriberBuffer = 16

// broker fans replies out to in-process subscribers of a post.
type broker struct {
	mu     sync.Mutex
	subs   map[string]map[chan *models.Reply]struct{}
	logger *zap.Logger
}

func newBroker(logger *zap.Logger) *broker {
	return &broker{
		subs:   make(map[string]map[chan *models.Reply]struct{}),
		logger: logger,
	}
}

// subscribe registers a channel for postID. The channel is closed once ctx is done.
func (b *broker) subscribe(ctx context.Context, postID string) <-chan *models.Reply {
	ch := make(chan *models.Reply, subscriberBuffer)

	b.mu.Lock()
	if b.subs[postID] == nil {
		b.subs[postID] = make(map[chan *models.Reply]struct{})
	}
	b.subs[postID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[postID], ch)
		if len(b.subs[postID]) == 0 {
			delete(b.subs, postID)
		}
		close(ch)
	}()
	return ch
}

// publish never blocks: a subscriber with a full buffer misses the reply.
func (b *broker) publish(reply *models.Reply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[reply.PostID] {
		select {
		case ch <- reply:
		default:
			b.logger.Warn("Dropping reply for slow subscriber", zap.String("post_id", reply.PostID))
		}
	}
}

func (b *broker) subscribers(postID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[postID])
}
