// Package feed assembles the community feed: posts and replies from storage,
// rendered with links, author presentation and relative timestamps.
package feed

import (
	"context"
	"errors"
	"html/template"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/mvpetrera/portfolio/internal/identity"
	"github.com/mvpetrera/portfolio/internal/linkify"
	"github.com/mvpetrera/portfolio/internal/models"
	"github.com/mvpetrera/portfolio/internal/storage"
)

// DefaultReplyPage is the number of replies shown under a post.
const DefaultReplyPage = 50

var ErrReplyFailed = errors.New("failed to add reply")

type PostView struct {
	ID        string                 `json:"id"`
	Content   template.HTML          `json:"content"`
	Author    identity.Identity      `json:"author"`
	CreatedAt time.Time              `json:"createdAt"`
	Relative  string                 `json:"relative"`
	Topic     models.Topic           `json:"topic"`
	Replies   int                    `json:"replies"`
	Reactions models.ReactionSummary `json:"reactions"`
}

type ReplyView struct {
	ID        string            `json:"id"`
	PostID    string            `json:"postId"`
	ParentID  *string           `json:"parentId,omitempty"`
	Content   template.HTML     `json:"content"`
	Author    identity.Identity `json:"author"`
	CreatedAt time.Time         `json:"createdAt"`
	Relative  string            `json:"relative"`
}

// Author is who writes a post, reply or reaction. A New author has no stored
// record yet; it is kept only if the write succeeds.
type Author struct {
	User models.User
	New  bool
}

type Service struct {
	Storage storage.Storage
	Logger  *zap.Logger
	Now     func() time.Time
}

func NewService(store storage.Storage, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Storage: store, Logger: logger, Now: time.Now}
}

// author resolves the presentation of u. A missing record is logged and
// rendered as an empty name.
func (s *Service) author(u *models.User, field zap.Field) identity.Identity {
	id, err := identity.Resolve(u)
	if err != nil {
		s.Logger.Warn("Could not read author record", field, zap.Error(err))
	}
	return id
}

func (s *Service) relative(t time.Time) string {
	return humanize.RelTime(t, s.Now(), "ago", "from now")
}

func (s *Service) postView(ctx context.Context, post models.Post, viewer string) (PostView, error) {
	replies, err := s.Storage.CountReplies(ctx, post.ID)
	if err != nil {
		return PostView{}, err
	}
	reactions, err := s.Storage.GetReactions(ctx, post.ID, viewer)
	if err != nil {
		return PostView{}, err
	}
	return PostView{
		ID:        post.ID,
		Content:   linkify.Linkify(post.Content),
		Author:    s.author(post.User, zap.String("post_id", post.ID)),
		CreatedAt: post.CreatedAt,
		Relative:  s.relative(post.CreatedAt),
		Topic:     models.Topic{ID: post.TopicID, Name: post.TopicName},
		Replies:   replies,
		Reactions: reactions,
	}, nil
}

func (s *Service) replyView(reply *models.Reply) ReplyView {
	return ReplyView{
		ID:        reply.ID,
		PostID:    reply.PostID,
		ParentID:  reply.ParentID,
		Content:   linkify.Linkify(reply.Content),
		Author:    s.author(reply.User, zap.String("reply_id", reply.ID)),
		CreatedAt: reply.CreatedAt,
		Relative:  s.relative(reply.CreatedAt),
	}
}

// Feed returns the posts of topicID, or of every topic when topicID is empty,
// newest first. viewer identifies whose reaction is marked as selected.
func (s *Service) Feed(ctx context.Context, topicID, viewer string) ([]PostView, error) {
	var (
		posts []models.Post
		err   error
	)
	if topicID == "" {
		posts, err = s.Storage.GetAllPosts(ctx)
	} else {
		posts, err = s.Storage.GetPostsByTopic(ctx, topicID)
	}
	if err != nil {
		return nil, err
	}

	views := make([]PostView, 0, len(posts))
	for _, post := range posts {
		view, err := s.postView(ctx, post, viewer)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// Post returns a single post.
func (s *Service) Post(ctx context.Context, id, viewer string) (*PostView, error) {
	post, err := s.Storage.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view, err := s.postView(ctx, *post, viewer)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// AddPost publishes a new post.
func (s *Service) AddPost(ctx context.Context, author Author, topicID, content string) (*PostView, error) {
	var post models.Post
	err := s.writeAs(ctx, author, func() (err error) {
		post, err = s.Storage.AddPost(ctx, author.User.ID, topicID, content)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("Post published", zap.String("post_id", post.ID), zap.String("topic_id", topicID))
	view, err := s.postView(ctx, post, author.User.ID)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// writeAs runs write on behalf of author. A new author is stored first so the
// write sees the record, and removed again when the write fails.
func (s *Service) writeAs(ctx context.Context, author Author, write func() error) error {
	if !author.New {
		return write()
	}
	if _, err := s.Register(ctx, author.User); err != nil {
		return err
	}
	if err := write(); err != nil {
		if derr := s.Storage.DeleteUser(ctx, author.User.ID); derr != nil {
			s.Logger.Warn("Could not remove unused author", zap.String("user_id", author.User.ID), zap.Error(derr))
		}
		return err
	}
	return nil
}

func (s *Service) Topics(ctx context.Context) ([]models.Topic, error) {
	return s.Storage.GetTopics(ctx)
}

// Register stores a new author record. Every name field may be empty.
func (s *Service) Register(ctx context.Context, user models.User) (models.User, error) {
	user, err := s.Storage.AddUser(ctx, user)
	if err != nil {
		return models.User{}, err
	}
	s.Logger.Debug("Author registered", zap.String("user_id", user.ID))
	return user, nil
}

// Replies returns one page of replies to postID, oldest first.
func (s *Service) Replies(ctx context.Context, postID string, limit, offset int) ([]ReplyView, error) {
	replies, err := s.Storage.GetRepliesByPostID(ctx, postID, limit, offset)
	if err != nil {
		s.Logger.Warn("Could not load replies", zap.String("post_id", postID), zap.Error(err))
		return nil, err
	}

	views := make([]ReplyView, 0, len(replies))
	for _, reply := range replies {
		views = append(views, s.replyView(reply))
	}
	return views, nil
}

func (s *Service) AddReply(ctx context.Context, postID string, parentID *string, author Author, content string) (*ReplyView, error) {
	var reply *models.Reply
	err := s.writeAs(ctx, author, func() (err error) {
		reply, err = s.Storage.AddReply(ctx, postID, parentID, author.User.ID, content)
		return err
	})
	if err != nil {
		return nil, err
	}
	if reply == nil || reply.ID == "" {
		return nil, ErrReplyFailed
	}
	view := s.replyView(reply)
	return &view, nil
}

// React toggles viewer's reaction on a post and returns the updated summary.
func (s *Service) React(ctx context.Context, postID string, viewer Author, emoji models.Reaction) (models.ReactionSummary, error) {
	err := s.writeAs(ctx, viewer, func() error {
		_, err := s.Storage.React(ctx, postID, viewer.User.ID, emoji)
		return err
	})
	if err != nil {
		return models.ReactionSummary{}, err
	}
	return s.Storage.GetReactions(ctx, postID, viewer.User.ID)
}

// Subscribe streams rendered replies to postID until ctx is done.
func (s *Service) Subscribe(ctx context.Context, postID string) (<-chan *ReplyView, error) {
	replies, err := s.Storage.SubscribeToReplies(ctx, postID)
	if err != nil {
		return nil, err
	}

	ch := make(chan *ReplyView, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case reply, ok := <-replies:
				if !ok {
					return
				}
				view := s.replyView(reply)
				select {
				case ch <- &view:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
