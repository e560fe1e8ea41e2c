package models

import "time"

type User struct {
	ID        string    `json:"id,omitempty"`
	FullName  string    `json:"full_name"`
	Mobile    string    `json:"mobile"`
	CreatedAt time.Time `json:"created_at"`
}
