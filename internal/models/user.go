package models

// User is an author record. Every name field is optional.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Username  string `json:"username,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}
