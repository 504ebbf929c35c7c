package activity

import (
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
)

const (
	loadingPlaceholder = "..."
	missingPlaceholder = "N/A"

	moveGoalMinutes     = 60
	exerciseGoalMinutes = 30
	// one percent of the steps bar per 100 steps
	stepsPerPercent = 100
)

// CardView is the activity card, formatted for display.
type CardView struct {
	Phase     Phase        `json:"phase"`
	Error     string       `json:"error,omitempty"`
	HeartRate string       `json:"heartRate"`
	Steps     string       `json:"steps"`
	Calories  string       `json:"calories"`
	Progress  CardProgress `json:"progress"`
}

// CardProgress values are percentages in [0, 100].
type CardProgress struct {
	Move     float64 `json:"move"`
	Exercise float64 `json:"exercise"`
	Steps    float64 `json:"steps"`
}

func Card(state FetchState) CardView {
	view := CardView{
		Phase:     state.Phase,
		Error:     state.Message,
		HeartRate: missingPlaceholder,
		Steps:     "0",
		Calories:  missingPlaceholder,
	}

	if state.Phase == PhaseLoading {
		view.HeartRate = loadingPlaceholder
		view.Steps = loadingPlaceholder
		view.Calories = loadingPlaceholder
		return view
	}

	m := state.Metrics
	if m == nil {
		return view
	}

	view.HeartRate = formatFloat(m.HeartRate) + " bpm"
	view.Steps = humanize.Comma(m.Steps)
	view.Calories = formatFloat(m.Calories) + " kcal"
	view.Progress = CardProgress{
		Move:     percentOf(float64(m.ActiveMinutes), moveGoalMinutes),
		Exercise: percentOf(float64(m.ActiveMinutes), exerciseGoalMinutes),
		Steps:    math.Min(float64(m.Steps)/stepsPerPercent, 100),
	}

	return view
}

func percentOf(v, goal float64) float64 {
	return math.Min(v/goal*100, 100)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
