// Package identity decides how an author is presented: the name shown next to
// a post and the initials drawn in the avatar placeholder.
package identity

import (
	"errors"
	"strings"

	"github.com/mvpetrera/portfolio/internal/models"
)

// AnonymousName is shown when an author has neither a full name nor a username.
const AnonymousName = "Anonymous"

// ErrMissingAuthor is returned when a post or reply has no readable author record.
var ErrMissingAuthor = errors.New("author record is missing")

type Kind int

const (
	// Unknown is the zero value, used when the author record could not be read.
	Unknown Kind = iota
	FullName
	UserName
	Anonymous
)

func (k Kind) String() string {
	switch k {
	case FullName:
		return "full_name"
	case UserName:
		return "username"
	case Anonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "full_name":
		*k = FullName
	case "username":
		*k = UserName
	case "anonymous":
		*k = Anonymous
	default:
		*k = Unknown
	}
	return nil
}

// Identity is the resolved presentation of an author.
type Identity struct {
	Kind        Kind   `json:"kind"`
	DisplayName string `json:"displayName"`
	Initials    string `json:"initials"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// Resolve picks the presentation for u: first and last name when both are
// set, the username otherwise, and "Anonymous" as the last resort. A nil
// record yields ErrMissingAuthor together with an empty Identity.
func Resolve(u *models.User) (Identity, error) {
	if u == nil {
		return Identity{}, ErrMissingAuthor
	}
	var id Identity
	switch {
	case u.FirstName != "" && u.LastName != "":
		id = Identity{Kind: FullName, DisplayName: u.FirstName + " " + u.LastName}
	case u.Username != "":
		id = Identity{Kind: UserName, DisplayName: u.Username}
	default:
		id = Identity{Kind: Anonymous, DisplayName: AnonymousName}
	}
	id.Initials = Initials(id.DisplayName)
	id.ImageURL = u.ImageURL
	return id, nil
}

// Initials takes the first character of every space separated word, or the
// first two characters when name is a single word.
func Initials(name string) string {
	words := strings.Split(name, " ")
	if len(words) > 1 {
		var b strings.Builder
		for _, w := range words {
			for _, r := range w {
				b.WriteRune(r)
				break
			}
		}
		return b.String()
	}
	runes := []rune(name)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return string(runes)
}
