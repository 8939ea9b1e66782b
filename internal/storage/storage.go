package storage

import (
	"context"
	"errors"

	"github.com/mvpetrera/portfolio/internal/models"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrTopicNotFound   = errors.New("topic not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrParentNotFound  = errors.New("parent reply not found")
	ErrEmptyContent    = errors.New("content is empty")
	ErrReplyTooLong    = errors.New("reply is too long")
	ErrInvalidReaction = errors.New("unknown reaction")
)

// Storage is implemented by every community backend (in-memory, PostgreSQL, SQLite).
// Post listings are newest first, replies oldest first.
type Storage interface {
	GetAllPosts(ctx context.Context) ([]models.Post, error)
	GetPostsByTopic(ctx context.Context, topicID string) ([]models.Post, error)
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	AddPost(ctx context.Context, authorID, topicID, content string) (models.Post, error)

	GetTopics(ctx context.Context) ([]models.Topic, error)
	AddTopic(ctx context.Context, name string) (models.Topic, error)

	GetUser(ctx context.Context, id string) (*models.User, error)
	AddUser(ctx context.Context, user models.User) (models.User, error)
	DeleteUser(ctx context.Context, id string) error

	AddReply(ctx context.Context, postID string, parentID *string, authorID, content string) (*models.Reply, error)
	GetRepliesByPostID(ctx context.Context, postID string, limit, offset int) ([]*models.Reply, error)
	CountReplies(ctx context.Context, postID string) (int, error)
	// SubscribeToReplies streams replies added to postID until ctx is done.
	SubscribeToReplies(ctx context.Context, postID string) (<-chan *models.Reply, error)

	// React sets reactor's reaction on a post. Choosing the reaction already
	// selected clears it. The reaction in effect afterwards is returned.
	React(ctx context.Context, postID, reactor string, emoji models.Reaction) (models.Reaction, error)
	GetReactions(ctx context.Context, postID, reactor string) (models.ReactionSummary, error)
}

func validateReply(content string) error {
	if content == "" {
		return ErrEmptyContent
	}
	if len(content) > models.MaxReplyLength {
		return ErrReplyTooLong
	}
	return nil
}

// DefaultTopics are created on an empty store.
var DefaultTopics = []string{"General", "Projects", "Feedback"}

// SeedTopics adds DefaultTopics when s has no topic yet.
func SeedTopics(ctx context.Context, s Storage) error {
	topics, err := s.GetTopics(ctx)
	if err != nil {
		return err
	}
	if len(topics) > 0 {
		return nil
	}
	for _, name := range DefaultTopics {
		if _, err := s.AddTopic(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
