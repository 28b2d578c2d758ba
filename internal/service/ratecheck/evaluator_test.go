package ratecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateCount(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		threshold int
		want      Outcome
	}{
		{"below threshold", 4, 5, OutcomeNoBreach},
		{"at threshold is inclusive breach", 5, 5, OutcomeBreach},
		{"above threshold", 6, 5, OutcomeBreach},
		{"zero count", 0, 5, OutcomeNoBreach},
		{"zero threshold always breaches", 0, 0, OutcomeBreach},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateCount(tt.count, tt.threshold))
		})
	}
}

func TestEvaluateCount_Monotonic(t *testing.T) {
	// Once a count breaches, every larger count must breach too.
	const threshold = 7
	breached := false
	for count := 0; count < 20; count++ {
		outcome := EvaluateCount(count, threshold)
		if breached {
			assert.Equal(t, OutcomeBreach, outcome, "count %d", count)
		}
		if outcome == OutcomeBreach {
			breached = true
		}
	}
	assert.True(t, breached)
}

func TestEvaluateDeclineRate(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		declined  int
		min       int
		threshold float64
		want      Outcome
		wantRatio string
	}{
		{"insufficient sample", 8, 8, 10, 40, OutcomeInsufficient, ""},
		{"insufficient even with all declined", 9, 9, 10, 40, OutcomeInsufficient, ""},
		{"carding pattern breaches", 12, 5, 10, 40, OutcomeBreach, "41.67"},
		{"exactly at threshold breaches", 10, 4, 10, 40, OutcomeBreach, "40"},
		{"below threshold", 10, 3, 10, 40, OutcomeNoBreach, "30"},
		{"zero total never divides", 0, 0, 0, 40, OutcomeInsufficient, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateDeclineRate(tt.total, tt.declined, tt.min, tt.threshold)
			assert.Equal(t, tt.want, got.Outcome)
			if tt.wantRatio != "" {
				assert.Equal(t, tt.wantRatio, got.Ratio.String())
			}
		})
	}
}

func TestEvaluateDeclineRate_InsufficientIgnoresDeclined(t *testing.T) {
	for declined := 0; declined <= 9; declined++ {
		got := EvaluateDeclineRate(9, declined, 10, 0)
		assert.Equal(t, OutcomeInsufficient, got.Outcome)
	}
}

func TestEvaluateDeclineRate_Deterministic(t *testing.T) {
	first := EvaluateDeclineRate(12, 5, 10, 40)
	for i := 0; i < 50; i++ {
		again := EvaluateDeclineRate(12, 5, 10, 40)
		assert.Equal(t, first.Outcome, again.Outcome)
		assert.True(t, first.Ratio.Equal(again.Ratio))
	}
}
