package mood

import (
	"fmt"

	catalog "github.com/campanio/backend/internal/model/mood"
)

// StressLevel is the coarse stress bucket reported to the user.
type StressLevel string

const (
	StressLow    StressLevel = "low"
	StressMedium StressLevel = "medium"
	StressHigh   StressLevel = "high"
)

// StressInput describes a day in the terms the estimator understands.
type StressInput struct {
	Mood     string  `json:"mood"`
	Sleep    float64 `json:"sleep"`
	Workload int     `json:"workload"`
}

// StressResult is the estimated level and a few suggestions.
type StressResult struct {
	Level StressLevel `json:"stressLevel"`
	Tips  []string    `json:"tips"`
}

var moodStressWeight = map[string]int{
	catalog.Happy:   0,
	catalog.Calm:    0,
	catalog.Excited: 0,
	catalog.Neutral: 1,
	catalog.Tired:   2,
	catalog.Sad:     2,
	catalog.Angry:   2,
	catalog.Anxious: 3,
}

var stressTips = map[StressLevel][]string{
	StressLow:    {"Keep it up!", "Maintain good sleep habits."},
	StressMedium: {"Take short breaks.", "Practice deep breathing."},
	StressHigh:   {"Talk to a friend.", "Get enough rest."},
}

// EstimateStress scores mood, hours of sleep and workload (0-10) into a stress level.
func EstimateStress(in StressInput) (StressResult, error) {
	id, ok := catalog.Normalize(in.Mood)
	if !ok {
		return StressResult{}, fmt.Errorf("unknown mood %q", in.Mood)
	}
	if in.Sleep < 0 || in.Sleep > 24 {
		return StressResult{}, fmt.Errorf("sleep must be between 0 and 24 hours, got %v", in.Sleep)
	}
	if in.Workload < 0 || in.Workload > 10 {
		return StressResult{}, fmt.Errorf("workload must be between 0 and 10, got %d", in.Workload)
	}

	score := moodStressWeight[id]
	switch {
	case in.Sleep < 5:
		score += 3
	case in.Sleep < 7:
		score += 1
	}
	switch {
	case in.Workload >= 8:
		score += 3
	case in.Workload >= 5:
		score += 1
	}

	level := StressLow
	switch {
	case score >= 5:
		level = StressHigh
	case score >= 3:
		level = StressMedium
	}

	tips := append([]string(nil), stressTips[level]...)
	return StressResult{Level: level, Tips: tips}, nil
}
