package mood

import "strings"

// Mood describes one selectable mood.
type Mood struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Emoji   string `json:"emoji"`
	Color   string `json:"color"`
	BgColor string `json:"bgColor"`
}

const (
	Happy   = "happy"
	Calm    = "calm"
	Sad     = "sad"
	Angry   = "angry"
	Neutral = "neutral"
	Tired   = "tired"
	Anxious = "anxious"
	Excited = "excited"
)

// Catalog returns the moods a user can pick, in display order.
func Catalog() []Mood {
	return []Mood{
		{ID: Happy, Name: "Happy", Emoji: "😊", Color: "#22c55e", BgColor: "#dcfce7"},
		{ID: Calm, Name: "Calm", Emoji: "😌", Color: "#06b6d4", BgColor: "#cffafe"},
		{ID: Sad, Name: "Sad", Emoji: "😞", Color: "#8b5cf6", BgColor: "#ede9fe"},
		{ID: Angry, Name: "Angry", Emoji: "😡", Color: "#ef4444", BgColor: "#fee2e2"},
		{ID: Neutral, Name: "Neutral", Emoji: "😐", Color: "#6b7280", BgColor: "#f3f4f6"},
		{ID: Tired, Name: "Tired", Emoji: "🥱", Color: "#f59e0b", BgColor: "#fef3c7"},
		{ID: Anxious, Name: "Anxious", Emoji: "😰", Color: "#f97316", BgColor: "#fed7aa"},
		{ID: Excited, Name: "Excited", Emoji: "🤩", Color: "#ec4899", BgColor: "#fce7f3"},
	}
}

// Normalize lower-cases and trims a mood id and reports whether it is known.
func Normalize(raw string) (string, bool) {
	id := strings.ToLower(strings.TrimSpace(raw))
	for _, m := range Catalog() {
		if m.ID == id {
			return id, true
		}
	}
	return "", false
}
