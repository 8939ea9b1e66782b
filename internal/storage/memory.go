package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mvpetrera/portfolio/internal/models"
)

// MemoryStorage keeps the community in process memory.
type MemoryStorage struct {
	posts     map[string]models.Post
	topics    map[string]models.Topic
	users     map[string]models.User
	replies   map[string][]models.Reply
	reactions map[string]map[string]models.Reaction // post id -> reactor -> reaction
	broker    *broker
	logger    *zap.Logger
	now       func() time.Time
	mu        sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage(logger *zap.Logger) *MemoryStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStorage{
		posts:     make(map[string]models.Post),
		topics:    make(map[string]models.Topic),
		users:     make(map[string]models.User),
		replies:   make(map[string][]models.Reply),
		reactions: make(map[string]map[string]models.Reaction),
		broker:    newBroker(logger),
		logger:    logger,
		now:       time.Now,
	}
}

// hydrate fills in the topic name and author of a stored post.
func (s *MemoryStorage) hydrate(post models.Post) models.Post {
	if topic, ok := s.topics[post.TopicID]; ok {
		post.TopicName = topic.Name
	}
	if user, ok := s.users[post.AuthorID]; ok {
		post.User = &user
	}
	return post
}

func (s *MemoryStorage) listPosts(match func(models.Post) bool) []models.Post {
	result := make([]models.Post, 0, len(s.posts))
	for _, post := range s.posts {
		if match(post) {
			result = append(result, s.hydrate(post))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// GetAllPosts returns every post, newest first.
func (s *MemoryStorage) GetAllPosts(ctx context.Context) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.logger.Debug("Fetching all posts from memory")
	return s.listPosts(func(models.Post) bool { return true }), nil
}

// GetPostsByTopic returns the posts of one topic, newest first.
func (s *MemoryStorage) GetPostsByTopic(ctx context.Context, topicID string) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.topics[topicID]; !ok {
		return nil, ErrTopicNotFound
	}
	return s.listPosts(func(p models.Post) bool { return p.TopicID == topicID }), nil
}

// GetPostByID returns a post by ID.
func (s *MemoryStorage) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.logger.Debug("Fetching post", zap.String("post_id", id))
	post, exists := s.posts[id]
	if !exists {
		return nil, ErrPostNotFound
	}
	post = s.hydrate(post)
	return &post, nil
}

// AddPost stores a new post. An unknown author is accepted and shows up as a
// missing author record when read back.
func (s *MemoryStorage) AddPost(ctx context.Context, authorID, topicID, content string) (models.Post, error) {
	if content == "" {
		return models.Post{}, ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.topics[topicID]; topicID != "" && !ok {
		return models.Post{}, ErrTopicNotFound
	}
	post := models.Post{
		ID:        uuid.New().String(),
		Content:   content,
		AuthorID:  authorID,
		TopicID:   topicID,
		CreatedAt: s.now().UTC(),
	}
	s.posts[post.ID] = post
	s.logger.Debug("Added post", zap.String("post_id", post.ID), zap.String("topic_id", topicID))
	return s.hydrate(post), nil
}

// GetTopics returns all topics ordered by name.
func (s *MemoryStorage) GetTopics(ctx context.Context) ([]models.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make([]models.Topic, 0, len(s.topics))
	for _, t := range s.topics {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Name < topics[j].Name })
	return topics, nil
}

func (s *MemoryStorage) AddTopic(ctx context.Context, name string) (models.Topic, error) {
	if name == "" {
		return models.Topic{}, ErrEmptyContent
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	topic := models.Topic{ID: uuid.New().String(), Name: name}
	s.topics[topic.ID] = topic
	return topic, nil
}

func (s *MemoryStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

// AddUser stores user, assigning an ID when it has none.
func (s *MemoryStorage) AddUser(ctx context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *MemoryStorage) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

// AddReply stores a reply and notifies live subscribers of the post.
func (s *MemoryStorage) AddReply(ctx context.Context, postID string, parentID *string, authorID, content string) (*models.Reply, error) {
	if err := validateReply(content); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("Adding reply", zap.String("post_id", postID))
	if _, exists := s.posts[postID]; !exists {
		return nil, ErrPostNotFound
	}
	if parentID != nil && !s.hasReply(postID, *parentID) {
		return nil, ErrParentNotFound
	}

	reply := models.Reply{
		ID:        uuid.New().String(),
		PostID:    postID,
		ParentID:  parentID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	s.replies[postID] = append(s.replies[postID], reply)

	out := s.hydrateReply(reply)
	s.broker.publish(&out)
	return &out, nil
}

func (s *MemoryStorage) hasReply(postID, replyID string) bool {
	for _, r := range s.replies[postID] {
		if r.ID == replyID {
			return true
		}
	}
	return false
}

func (s *MemoryStorage) hydrateReply(reply models.Reply) models.Reply {
	if user, ok := s.users[reply.AuthorID]; ok {
		reply.User = &user
	}
	return reply
}

// GetRepliesByPostID returns one page of a post's replies, oldest first.
func (s *MemoryStorage) GetRepliesByPostID(ctx context.Context, postID string, limit, offset int) ([]*models.Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.posts[postID]; !exists {
		return nil, ErrPostNotFound
	}

	replies := s.replies[postID]
	start := offset
	end := offset + limit
	if start > len(replies) {
		return []*models.Reply{}, nil
	}
	if end > len(replies) {
		end = len(replies)
	}

	result := make([]*models.Reply, 0, end-start)
	for i := start; i < end; i++ {
		reply := s.hydrateReply(replies[i])
		result = append(result, &reply)
	}
	return result, nil
}

func (s *MemoryStorage) CountReplies(ctx context.Context, postID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.posts[postID]; !exists {
		return 0, ErrPostNotFound
	}
	return len(s.replies[postID]), nil
}

// SubscribeToReplies streams new replies of postID until ctx is done.
func (s *MemoryStorage) SubscribeToReplies(ctx context.Context, postID string) (<-chan *models.Reply, error) {
	s.mu.RLock()
	_, exists := s.posts[postID]
	s.mu.RUnlock()
	if !exists {
		return nil, ErrPostNotFound
	}

	s.logger.Debug("Subscribing to replies", zap.String("post_id", postID))
	return s.broker.subscribe(ctx, postID), nil
}

func (s *MemoryStorage) React(ctx context.Context, postID, reactor string, emoji models.Reaction) (models.Reaction, error) {
	if !emoji.Valid() {
		return "", ErrInvalidReaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[postID]; !exists {
		return "", ErrPostNotFound
	}
	byReactor := s.reactions[postID]
	if byReactor == nil {
		byReactor = make(map[string]models.Reaction)
		s.reactions[postID] = byReactor
	}
	if byReactor[reactor] == emoji {
		delete(byReactor, reactor)
		return "", nil
	}
	byReactor[reactor] = emoji
	return emoji, nil
}

func (s *MemoryStorage) GetReactions(ctx context.Context, postID, reactor string) (models.ReactionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.posts[postID]; !exists {
		return models.ReactionSummary{}, ErrPostNotFound
	}
	summary := models.ReactionSummary{Counts: make(map[models.Reaction]int)}
	for who, emoji := range s.reactions[postID] {
		summary.Counts[emoji]++
		if who == reactor {
			summary.Selected = emoji
		}
	}
	return summary, nil
}
