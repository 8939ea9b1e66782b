package models

type Topic struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
