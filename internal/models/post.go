package models

import "time"

// Community post. TopicName and User are filled in by the storage layer
// when the post is read back.
type Post struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"authorId"`
	TopicID   string    `json:"topicId"`
	TopicName string    `json:"topicName"`
	CreatedAt time.Time `json:"createdAt"`
	User      *User     `json:"user,omitempty"` // nil when the author record is missing
}
