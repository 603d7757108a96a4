package day

import (
	"time"

	"github.com/campanio/backend/internal/model/chat"
)

// DateLayout is the server-side format of a calendar date key.
const DateLayout = "2006.01.02"

// Day aggregates everything a user recorded for one calendar date.
type Day struct {
	ID         string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     string      `gorm:"type:varchar(128);not null;uniqueIndex:uidx_day_user_date" json:"userId"`
	Date       string      `gorm:"type:varchar(32);not null;uniqueIndex:uidx_day_user_date" json:"date"`
	Mood       string      `gorm:"type:varchar(32);not null;default:''" json:"mood"`
	Journal    string      `gorm:"type:text;not null;default:''" json:"journal"`
	Reflection string      `gorm:"type:text;not null;default:''" json:"reflection"`
	Chats      []chat.Chat `gorm:"-" json:"chats,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// MoodEntry is the calendar projection of a Day.
type MoodEntry struct {
	Date string `json:"date"`
	Mood string `json:"mood"`
}
