package storage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mvpetrera/portfolio/internal/models"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GetAllPosts(ctx context.Context) ([]models.Post, error) {
	args := m.Called()
	return args.Get(0).([]models.Post), args.Error(1)
}

func (m *MockStorage) GetPostsByTopic(ctx context.Context, topicID string) ([]models.Post, error) {
	args := m.Called(topicID)
	return args.Get(0).([]models.Post), args.Error(1)
}

func (m *MockStorage) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	args := m.Called(id)
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockStorage) AddPost(ctx context.Context, authorID, topicID, content string) (models.Post, error) {
	args := m.Called(authorID, topicID, content)
	return args.Get(0).(models.Post), args.Error(1)
}

func (m *MockStorage) GetTopics(ctx context.Context) ([]models.Topic, error) {
	args := m.Called()
	return args.Get(0).([]models.Topic), args.Error(1)
}

func (m *MockStorage) AddTopic(ctx context.Context, name string) (models.Topic, error) {
	args := m.Called(name)
	return args.Get(0).(models.Topic), args.Error(1)
}

func (m *MockStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(id)
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) AddUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(user)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStorage) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockStorage) AddReply(ctx context.Context, postID string, parentID *string, authorID, content string) (*models.Reply, error) {
	args := m.Called(postID, parentID, authorID, content)
	return args.Get(0).(*models.Reply), args.Error(1)
}

func (m *MockStorage) GetRepliesByPostID(ctx context.Context, postID string, limit, offset int) ([]*models.Reply, error) {
	args := m.Called(postID, limit, offset)
	return args.Get(0).([]*models.Reply), args.Error(1)
}

func (m *MockStorage) CountReplies(ctx context.Context, postID string) (int, error) {
	args := m.Called(postID)
	return args.Int(0), args.Error(1)
}

func (m *MockStorage) SubscribeToReplies(ctx context.Context, postID string) (<-chan *models.Reply, error) {
	args := m.Called(postID)
	return args.Get(0).(chan *models.Reply), args.Error(1)
}

func (m *MockStorage) React(ctx context.Context, postID, reactor string, emoji models.Reaction) (models.Reaction, error) {
	args := m.Called(postID, reactor, emoji)
	return args.Get(0).(models.Reaction), args.Error(1)
}

func (m *MockStorage) GetReactions(ctx context.Context, postID, reactor string) (models.ReactionSummary, error) {
	args := m.Called(postID, reactor)
	return args.Get(0).(models.ReactionSummary), args.Error(1)
}
