package chat

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Role tags the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Message is one persisted turn. Parts is stored as-is. Seq is the position
// of the message inside its chat, starting at 1.
type Message struct {
	ID        string         `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID    string         `gorm:"type:varchar(128);primaryKey" json:"userId"`
	ChatID    string         `gorm:"type:varchar(64);not null;index:idx_message_chat_seq,priority:1" json:"chatId"`
	Seq       int64          `gorm:"not null;default:0;index:idx_message_chat_seq,priority:2" json:"seq"`
	Role      Role           `gorm:"type:varchar(16);not null" json:"role"`
	Parts     datatypes.JSON `json:"parts"`
	CreatedAt time.Time      `json:"createdAt"`
}

// UIMessage is the client-side message shape: an id, a role and a list of parts.
type UIMessage struct {
	ID    string          `json:"id"`
	Role  Role            `json:"role"`
	Parts json.RawMessage `json:"parts"`
}

// Part is the subset of a message part the server understands.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Text joins the text parts of the message. Non-text parts are skipped.
func (m UIMessage) Text() string {
	if len(m.Parts) == 0 {
		return ""
	}
	var parts []Part
	if err := json.Unmarshal(m.Parts, &parts); err != nil {
		return ""
	}
	texts := make([]string, 0, len(parts))
	for _, part := range parts {
		if part.Type == "text" && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}
