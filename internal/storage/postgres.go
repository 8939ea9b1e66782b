package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mvpetrera/portfolio/internal/models"
)

const (
	listenerPingInterval = 90 * time.Second

	// maxNoticeBytes is the largest payload pg_notify accepts.
	maxNoticeBytes = 8000
)

// replyNotice is the pg_notify payload. Only the ids travel; listeners load
// the reply itself, whose content may not fit in a notification.
type replyNotice struct {
	ID     string `json:"id"`
	PostID string `json:"postId"`
}

func encodeNotice(reply *models.Reply) (string, error) {
	payload, err := json.Marshal(replyNotice{ID: reply.ID, PostID: reply.PostID})
	if err != nil {
		return "", err
	}
	if len(payload) > maxNoticeBytes {
		return "", fmt.Errorf("reply notice is %d bytes, limit is %d", len(payload), maxNoticeBytes)
	}
	return string(payload), nil
}

// replyLoader reads a stored reply by id.
type replyLoader func(ctx context.Context, id string) (*models.Reply, error)

// listenReplies opens a dedicated LISTEN connection and forwards the replies
// of postID announced with pg_notify. The listener is closed once ctx is done.
func listenReplies(ctx context.Context, dataSource, postID string, load replyLoader, logger *zap.Logger) (<-chan *models.Reply, error) {
	listener := pq.NewListener(dataSource, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("Postgres listener error", zap.Error(err))
		}
	})
	if err := listener.Listen(repliesChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", repliesChannel, err)
	}

	ch := make(chan *models.Reply, subscriberBuffer)
	go func() {
		defer close(ch)
		defer listener.Close()

		ticker := time.NewTicker(listenerPingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case <-ticker.C:
				if err := listener.Ping(); err != nil {
					logger.Warn("Postgres listener ping error", zap.Error(err))
					return
				}

			case notification := <-listener.Notify:
				// nil after a reconnect
				if notification == nil {
					continue
				}
				var notice replyNotice
				if err := json.Unmarshal([]byte(notification.Extra), &notice); err != nil {
					logger.Warn("Malformed reply notification", zap.Error(err))
					continue
				}
				if notice.PostID != postID {
					continue
				}
				reply, err := load(ctx, notice.ID)
				if err != nil {
					logger.Warn("Could not load notified reply", zap.String("reply_id", notice.ID), zap.Error(err))
					continue
				}
				select {
				case ch <- reply:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	logger.Debug("Listening for replies", zap.String("channel", repliesChannel), zap.String("post_id", postID))
	return ch, nil
}
