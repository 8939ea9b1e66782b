package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mvpetrera/portfolio/internal/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	repliesChannel = "replies_channel"
)

// SQLStorage stores the community in PostgreSQL or SQLite. Live replies go
// through LISTEN/NOTIFY on PostgreSQL and an in-process broker on SQLite.
type SQLStorage struct {
	DB         *sql.DB
	Driver     string
	DataSource string

	broker *broker
	logger *zap.Logger
	now    func() time.Time
}

// NewSQLStorage wraps an open database handle. dataSource is needed on
// PostgreSQL to open the notification listener.
func NewSQLStorage(db *sql.DB, driver, dataSource string, logger *zap.Logger) *SQLStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStorage{
		DB:         db,
		Driver:     driver,
		DataSource: dataSource,
		broker:     newBroker(logger),
		logger:     logger,
		now:        time.Now,
	}
}

const postColumns = `p.id, p.content, p.author_id, p.topic_id, COALESCE(t.name, ''), p.created_at,
	u.id, u.first_name, u.last_name, u.username, u.image_url`

const postFrom = ` FROM posts p
	LEFT JOIN topics t ON t.id = p.topic_id
	LEFT JOIN users u ON u.id = p.author_id`

const replyColumns = `r.id, r.post_id, r.parent_id, r.author_id, r.content, r.created_at,
	u.id, u.first_name, u.last_name, u.username, u.image_url`

const replyFrom = ` FROM replies r
	LEFT JOIN users u ON u.id = r.author_id`

type rowScanner interface {
	Scan(dest ...any) error
}

// userColumns receives the LEFT JOINed users columns, all of which are NULL
// when the author record is missing.
type userColumns struct {
	id, first, last, username, image sql.NullString
}

func (c *userColumns) targets() []any {
	return []any{&c.id, &c.first, &c.last, &c.username, &c.image}
}

func (c *userColumns) user() *models.User {
	if !c.id.Valid {
		return nil
	}
	return &models.User{
		ID:        c.id.String,
		FirstName: c.first.String,
		LastName:  c.last.String,
		Username:  c.username.String,
		ImageURL:  c.image.String,
	}
}

func scanPost(row rowScanner) (models.Post, error) {
	var post models.Post
	var u userColumns
	dest := append([]any{&post.ID, &post.Content, &post.AuthorID, &post.TopicID, &post.TopicName, &post.CreatedAt}, u.targets()...)
	if err := row.Scan(dest...); err != nil {
		return models.Post{}, err
	}
	post.User = u.user()
	return post, nil
}

func (s *SQLStorage) queryPosts(ctx context.Context, query string, args ...any) ([]models.Post, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// GetAllPosts returns every post, newest first.
func (s *SQLStorage) GetAllPosts(ctx context.Context) ([]models.Post, error) {
	s.logger.Debug("Fetching all posts from database")
	return s.queryPosts(ctx, `SELECT `+postColumns+postFrom+` ORDER BY p.created_at DESC`)
}

func (s *SQLStorage) GetPostsByTopic(ctx context.Context, topicID string) ([]models.Post, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM topics WHERE id = $1)`, topicID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("look up topic: %w", err)
	}
	if !exists {
		return nil, ErrTopicNotFound
	}
	return s.queryPosts(ctx, `SELECT `+postColumns+postFrom+` WHERE p.topic_id = $1 ORDER BY p.created_at DESC`, topicID)
}

func (s *SQLStorage) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	s.logger.Debug("Fetching post", zap.String("post_id", id))
	post, err := scanPost(s.DB.QueryRowContext(ctx, `SELECT `+postColumns+postFrom+` WHERE p.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch post %s: %w", id, err)
	}
	return &post, nil
}

func (s *SQLStorage) AddPost(ctx context.Context, authorID, topicID, content string) (models.Post, error) {
	if content == "" {
		return models.Post{}, ErrEmptyContent
	}
	post := models.Post{
		ID:        uuid.New().String(),
		Content:   content,
		AuthorID:  authorID,
		TopicID:   topicID,
		CreatedAt: s.now().UTC(),
	}
	if topicID != "" {
		var name string
		err := s.DB.QueryRowContext(ctx, `SELECT name FROM topics WHERE id = $1`, topicID).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return models.Post{}, ErrTopicNotFound
		}
		if err != nil {
			return models.Post{}, fmt.Errorf("look up topic: %w", err)
		}
		post.TopicName = name
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO posts (id, content, author_id, topic_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		post.ID, post.Content, post.AuthorID, post.TopicID, post.CreatedAt)
	if err != nil {
		return models.Post{}, fmt.Errorf("insert post: %w", err)
	}
	if user, err := s.GetUser(ctx, authorID); err == nil {
		post.User = user
	}
	s.logger.Debug("Added post", zap.String("post_id", post.ID))
	return post, nil
}

func (s *SQLStorage) GetTopics(ctx context.Context) ([]models.Topic, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, name FROM topics ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	topics := []models.Topic{}
	for rows.Next() {
		var t models.Topic
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (s *SQLStorage) AddTopic(ctx context.Context, name string) (models.Topic, error) {
	if name == "" {
		return models.Topic{}, ErrEmptyContent
	}
	topic := models.Topic{ID: uuid.New().String(), Name: name}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO topics (id, name) VALUES ($1, $2)`, topic.ID, topic.Name)
	if err != nil {
		return models.Topic{}, fmt.Errorf("insert topic: %w", err)
	}
	return topic, nil
}

func (s *SQLStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u userColumns
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, username, image_url FROM users WHERE id = $1`, id).
		Scan(u.targets()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	return u.user(), nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *SQLStorage) AddUser(ctx context.Context, user models.User) (models.User, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (id, first_name, last_name, username, image_url) VALUES ($1, $2, $3, $4, $5)`,
		user.ID, nullable(user.FirstName), nullable(user.LastName), nullable(user.Username), nullable(user.ImageURL))
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *SQLStorage) DeleteUser(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLStorage) postExists(ctx context.Context, postID string) error {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("look up post: %w", err)
	}
	if !exists {
		return ErrPostNotFound
	}
	return nil
}

// AddReply stores a reply and notifies live subscribers.
func (s *SQLStorage) AddReply(ctx context.Context, postID string, parentID *string, authorID, content string) (*models.Reply, error) {
	if err := validateReply(content); err != nil {
		return nil, err
	}
	s.logger.Debug("Adding reply", zap.String("post_id", postID))
	if err := s.postExists(ctx, postID); err != nil {
		return nil, err
	}
	if parentID != nil {
		var exists bool
		err := s.DB.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM replies WHERE id = $1 AND post_id = $2)`, *parentID, postID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("look up parent reply: %w", err)
		}
		if !exists {
			return nil, ErrParentNotFound
		}
	}

	reply := models.Reply{
		ID:        uuid.New().String(),
		PostID:    postID,
		ParentID:  parentID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO replies (id, post_id, parent_id, author_id, content, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		reply.ID, reply.PostID, reply.ParentID, reply.AuthorID, reply.Content, reply.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert reply: %w", err)
	}
	if user, err := s.GetUser(ctx, authorID); err == nil {
		reply.User = user
	}

	if err := s.notify(ctx, &reply); err != nil {
		// the reply is stored; only live delivery failed
		s.logger.Warn("Reply notification failed", zap.String("reply_id", reply.ID), zap.Error(err))
	}
	return &reply, nil
}

func (s *SQLStorage) notify(ctx context.Context, reply *models.Reply) error {
	if s.Driver != DriverPostgres {
		s.broker.publish(reply)
		return nil
	}
	payload, err := encodeNotice(reply)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, repliesChannel, payload)
	return err
}

// GetRepliesByPostID returns one page of replies, oldest first.
func (s *SQLStorage) GetRepliesByPostID(ctx context.Context, postID string, limit, offset int) ([]*models.Reply, error) {
	if err := s.postExists(ctx, postID); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+replyColumns+replyFrom+`
		WHERE r.post_id = $1
		ORDER BY r.created_at ASC
		LIMIT $2 OFFSET $3`, postID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query replies: %w", err)
	}
	defer rows.Close()

	replies := []*models.Reply{}
	for rows.Next() {
		reply, err := scanReply(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		replies = append(replies, reply)
	}
	return replies, rows.Err()
}

func scanReply(row rowScanner) (*models.Reply, error) {
	var reply models.Reply
	var parent sql.NullString
	var u userColumns
	dest := append([]any{&reply.ID, &reply.PostID, &parent, &reply.AuthorID, &reply.Content, &reply.CreatedAt}, u.targets()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if parent.Valid {
		reply.ParentID = &parent.String
	}
	reply.User = u.user()
	return &reply, nil
}

// getReply loads a single reply with its author.
func (s *SQLStorage) getReply(ctx context.Context, id string) (*models.Reply, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+replyColumns+replyFrom+` WHERE r.id = $1`, id)
	reply, err := scanReply(row)
	if err != nil {
		return nil, fmt.Errorf("load reply %s: %w", id, err)
	}
	return reply, nil
}

func (s *SQLStorage) CountReplies(ctx context.Context, postID string) (int, error) {
	if err := s.postExists(ctx, postID); err != nil {
		return 0, err
	}
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM replies WHERE post_id = $1`, postID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count replies: %w", err)
	}
	return n, nil
}

// SubscribeToReplies streams replies of postID until ctx is done.
func (s *SQLStorage) SubscribeToReplies(ctx context.Context, postID string) (<-chan *models.Reply, error) {
	if err := s.postExists(ctx, postID); err != nil {
		return nil, err
	}
	s.logger.Debug("Subscribing to replies", zap.String("post_id", postID))
	if s.Driver != DriverPostgres {
		return s.broker.subscribe(ctx, postID), nil
	}
	return listenReplies(ctx, s.DataSource, postID, s.getReply, s.logger)
}

// React toggles reactor's reaction inside a transaction.
func (s *SQLStorage) React(ctx context.Context, postID, reactor string, emoji models.Reaction) (models.Reaction, error) {
	if !emoji.Valid() {
		return "", ErrInvalidReaction
	}
	if err := s.postExists(ctx, postID); err != nil {
		return "", err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin reaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT emoji FROM reactions WHERE post_id = $1 AND reactor = $2`, postID, reactor).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read reaction: %w", err)
	}

	result := emoji
	if models.Reaction(current) == emoji {
		_, err = tx.ExecContext(ctx, `DELETE FROM reactions WHERE post_id = $1 AND reactor = $2`, postID, reactor)
		result = ""
	} else {
		_, err = tx.ExecContext(ctx, `INSERT INTO reactions (post_id, reactor, emoji, created_at) VALUES ($1, $2, $3, $4)
			ON CONFLICT (post_id, reactor) DO UPDATE SET emoji = excluded.emoji, created_at = excluded.created_at`,
			postID, reactor, string(emoji), s.now().UTC())
	}
	if err != nil {
		return "", fmt.Errorf("write reaction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit reaction: %w", err)
	}
	return result, nil
}

func (s *SQLStorage) GetReactions(ctx context.Context, postID, reactor string) (models.ReactionSummary, error) {
	if err := s.postExists(ctx, postID); err != nil {
		return models.ReactionSummary{}, err
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT emoji, reactor FROM reactions WHERE post_id = $1`, postID)
	if err != nil {
		return models.ReactionSummary{}, fmt.Errorf("query reactions: %w", err)
	}
	defer rows.Close()

	summary := models.ReactionSummary{Counts: make(map[models.Reaction]int)}
	for rows.Next() {
		var emoji, who string
		if err := rows.Scan(&emoji, &who); err != nil {
			return models.ReactionSummary{}, err
		}
		summary.Counts[models.Reaction(emoji)]++
		if who == reactor {
			summary.Selected = models.Reaction(emoji)
		}
	}
	return summary, rows.Err()
}
