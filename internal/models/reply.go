package models

import "time"

// MaxReplyLength is the longest reply body accepted, in bytes.
const MaxReplyLength = 2000

// Reply to a community post
type Reply struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`   // post the reply belongs to
	ParentID  *string   `json:"parentId"` // parent reply, nil for a top-level reply
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	User      *User     `json:"user,omitempty"`
}
