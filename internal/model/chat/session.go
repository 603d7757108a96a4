package chat

import "time"

// DefaultName is given to chats created from a first exchange.
const DefaultName = "new chat"

// Chat is a conversation thread scoped to one user and one day. The id is
// generated by the client, so uniqueness is per user.
type Chat struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(128);primaryKey" json:"userId"`
	DayID     string    `gorm:"type:varchar(36);not null;index" json:"dayId"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Messages  []Message `gorm:"-" json:"messages,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
