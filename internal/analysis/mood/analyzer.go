package mood

import (
	"strings"

	catalog "github.com/campanio/backend/internal/model/mood"
)

// Decision is the outcome of scoring a piece of text against the mood catalog.
type Decision struct {
	Mood  string `json:"mood"`
	Score int    `json:"score"`
}

var keywordBuckets = map[string][]string{
	catalog.Happy: {
		"happy", "glad", "grateful", "thankful", "joy", "smile", "laughed", "great day", "good day",
		"proud", "love", "wonderful", "awesome", "amazing", "fun", "enjoyed", "開心", "开心", "高兴",
	},
	catalog.Calm: {
		"calm", "peaceful", "relaxed", "quiet", "meditat", "breathe", "rested", "content", "slow morning",
		"at ease", "serene", "balanced", "平静", "放松",
	},
	catalog.Sad: {
		"sad", "cry", "cried", "lonely", "alone", "miss ", "hurt", "heartbroken", "down", "upset",
		"disappointed", "empty", "grief", "lost", "hopeless", "难过", "伤心",
	},
	catalog.Angry: {
		"angry", "furious", "mad at", "annoyed", "irritated", "frustrated", "hate", "rage", "pissed",
		"unfair", "yelled", "fed up", "生气", "愤怒",
	},
	catalog.Tired: {
		"tired", "exhausted", "sleepy", "drained", "burnt out", "burned out", "no energy", "worn out",
		"fatigue", "couldn't sleep", "insomnia", "累", "疲惫",
	},
	catalog.Anxious: {
		"anxious", "anxiety", "worried", "worry", "nervous", "panic", "stressed", "overwhelmed",
		"scared", "afraid", "deadline", "overthinking", "焦虑", "紧张",
	},
	catalog.Excited: {
		"excited", "can't wait", "thrilled", "pumped", "looking forward", "hyped", "finally", "stoked",
		"wow", "激动", "期待",
	},
}

// Analyze picks the catalog mood whose keywords best match text. Text with no
// signal is neutral with a zero score.
func Analyze(text string) Decision {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Decision{Mood: catalog.Neutral}
	}

	scores := make(map[string]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			scores[label] += 3 * strings.Count(normalized, word)
		}
	}

	exclamations := strings.Count(text, "!")
	if exclamations > 1 {
		scores[catalog.Excited] += exclamations
	}

	best := catalog.Neutral
	bestScore := 0
	// Iterate the catalog so ties resolve in display order, not map order.
	for _, m := range catalog.Catalog() {
		if s := scores[m.ID]; s > bestScore {
			best = m.ID
			bestScore = s
		}
	}
	return Decision{Mood: best, Score: bestScore}
}

var toneByMood = map[string]string{
	catalog.Happy:   "The user feels happy today. Share their joy and help them savour what went well.",
	catalog.Calm:    "The user feels calm today. Keep a gentle, unhurried pace.",
	catalog.Sad:     "The user feels sad today. Be especially gentle, validate their feelings and offer comfort.",
	catalog.Angry:   "The user feels angry or frustrated today. Stay steady, acknowledge the frustration and be solution-focused.",
	catalog.Neutral: "The user feels neutral today. Keep a warm, natural tone.",
	catalog.Tired:   "The user feels tired today. Keep replies short and suggest small restorative steps.",
	catalog.Anxious: "The user feels anxious today. Be calming and grounding, break worries into small manageable steps.",
	catalog.Excited: "The user feels excited today. Match their energy while staying supportive.",
}

// Guidance returns a tone hint for the companion based on the mood the user
// logged, or "" when the mood is unknown.
func Guidance(mood string) string {
	id, ok := catalog.Normalize(mood)
	if !ok {
		return ""
	}
	return toneByMood[id]
}
