package web

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// readers only answer pings, nothing they send is used
	maxMessageSize = 512
)

// live streams new replies to a post over a websocket, one JSON encoded
// feed.ReplyView per message.
func (s *Server) live(c *gin.Context) {
	postID := c.Param("id")
	if err := s.postExists(c.Request.Context(), postID); err != nil {
		s.fail(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warn("Websocket upgrade failed", zap.String("post_id", postID), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	replies, err := s.Feed.Subscribe(ctx, postID)
	if err != nil {
		s.Logger.Warn("Could not subscribe to replies", zap.String("post_id", postID), zap.Error(err))
		return
	}

	s.metrics.live.Inc()
	defer s.metrics.live.Dec()
	s.Logger.Debug("Live stream opened", zap.String("post_id", postID))

	go func() {
		defer cancel()
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case reply, ok := <-replies:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(reply); err != nil {
				s.Logger.Debug("Live stream closed", zap.String("post_id", postID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// postExists checks id before a long lived stream is opened for it.
func (s *Server) postExists(ctx context.Context, id string) error {
	_, err := s.Feed.Storage.GetPostByID(ctx, id)
	return err
}
