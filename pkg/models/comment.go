package models

import "time"

type Comment struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"productId"`
	UserID           string    `json:"userId"`
	Username         string    `json:"username"`
	IsAdmin          bool      `json:"isAdmin"`
	AdminPrefix      string    `json:"adminPrefix,omitempty"`
	AdminPrefixColor string    `json:"adminPrefixColor,omitempty"`
	Text             string    `json:"text"`
	CreatedAt        time.Time `json:"createdAt"`
	Replies          []Reply   `json:"replies"`
}

type Reply struct {
	ID               string    `json:"id"`
	CommentID        string    `json:"commentId"`
	UserID           string    `json:"userId"`
	Username         string    `json:"username"`
	IsAdmin          bool      `json:"isAdmin"`
	AdminPrefix      string    `json:"adminPrefix,omitempty"`
	AdminPrefixColor string    `json:"adminPrefixColor,omitempty"`
	Text             string    `json:"text"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (c Comment) Clone() Comment {
	out := c
	out.Replies = append([]Reply{}, c.Replies...)
	return out
}
