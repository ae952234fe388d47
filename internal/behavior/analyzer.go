package behavior

import (
	"math"
	"strings"

	"github.com/vibeai/backend/internal/config"
)

// Reasons reported by Analyze
const (
	ReasonConsistentTiming = "consistent_timing"
	ReasonSuperhumanSpeed  = "superhuman_speed"
	ReasonNoMouse          = "no_mouse_interaction"
	ReasonRepetitive       = "repetitive_pattern"
)

var reasonLabels = map[string]string{
	ReasonConsistentTiming: "Consistent action timing",
	ReasonSuperhumanSpeed:  "Superhuman action speed",
	ReasonNoMouse:          "No mouse interactions",
	ReasonRepetitive:       "Repetitive action patterns",
}

// ReasonLabel returns the human-readable form of a reason id
func ReasonLabel(reason string) string {
	if label, ok := reasonLabels[reason]; ok {
		return label
	}
	return reason
}

// Heuristic weights. Scores add up independently and are clamped at 100.
const (
	scoreConsistentTiming = 40
	scoreSuperhumanSpeed  = 30
	scoreNoMouse          = 20
	scoreRepetitive       = 30
)

// Analysis is the verdict for one action log
type Analysis struct {
	IsBot      bool     `json:"isBot"`
	Confidence int      `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// Labels returns the reasons in human-readable form
func (a Analysis) Labels() []string {
	labels := make([]string, len(a.Reasons))
	for i, r := range a.Reasons {
		labels[i] = ReasonLabel(r)
	}
	return labels
}

// Analyzer applies the timing and variety heuristics
type Analyzer struct {
	policy config.BehaviorPolicy
}

// NewAnalyzer creates an analyzer with the given thresholds
func NewAnalyzer(policy config.BehaviorPolicy) *Analyzer {
	return &Analyzer{policy: policy}
}

// Analyze scores actions in the order given. Fewer than two actions carry
// no signal and always pass.
func (a *Analyzer) Analyze(actions []ActionEvent) Analysis {
	result := Analysis{Reasons: []string{}}
	if len(actions) < 2 {
		return result
	}

	deltas := make([]float64, 0, len(actions)-1)
	for i := 1; i < len(actions); i++ {
		deltas = append(deltas, float64(actions[i].Timestamp-actions[i-1].Timestamp))
	}

	score := 0

	if len(actions) >= a.policy.MinActionsForTiming && stdDev(deltas) < a.policy.MinStdDevMs {
		score += scoreConsistentTiming
		result.Reasons = append(result.Reasons, ReasonConsistentTiming)
	}

	fast := 0
	for _, d := range deltas {
		if d < float64(a.policy.FastDeltaMs) {
			fast++
		}
	}
	if fast*2 > len(deltas) {
		score += scoreSuperhumanSpeed
		result.Reasons = append(result.Reasons, ReasonSuperhumanSpeed)
	}

	if len(actions) > a.policy.PatternMinActions {
		kinds := make(map[string]struct{})
		mouse := false
		for _, e := range actions {
			kinds[e.Action] = struct{}{}
			if strings.Contains(e.Action, "mouse") {
				mouse = true
			}
		}
		if !mouse {
			score += scoreNoMouse
			result.Reasons = append(result.Reasons, ReasonNoMouse)
		}
		if len(kinds) < a.policy.MinDistinctKinds {
			score += scoreRepetitive
			result.Reasons = append(result.Reasons, ReasonRepetitive)
		}
	}

	result.Confidence = min(score, 100)
	result.IsBot = score >= a.policy.BotThreshold
	return result
}

// stdDev is the population standard deviation
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)))
}
