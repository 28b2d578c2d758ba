package ratecheck

import (
	"github.com/shopspring/decimal"
)

// Outcome is the result of a threshold evaluation.
type Outcome int

const (
	OutcomeNoBreach Outcome = iota
	OutcomeBreach
	// OutcomeInsufficient means the sample was too small to evaluate at all.
	// It applies only to decline-rate evaluations.
	OutcomeInsufficient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBreach:
		return "breach"
	case OutcomeInsufficient:
		return "insufficient"
	default:
		return "no_breach"
	}
}

// EvaluateCount decides whether an observed count breaches a threshold. The
// comparison is inclusive: count == threshold is a breach.
func EvaluateCount(count, threshold int) Outcome {
	if count >= threshold {
		return OutcomeBreach
	}
	return OutcomeNoBreach
}

// DeclineDecision is the outcome of a decline-rate evaluation. Ratio is only
// meaningful when Outcome is not OutcomeInsufficient.
type DeclineDecision struct {
	Outcome Outcome
	Ratio   decimal.Decimal
}

// EvaluateDeclineRate decides whether declined/total crosses thresholdPercent.
// Samples below minTransactions are Insufficient regardless of the declined
// count, which also rules out division by zero.
func EvaluateDeclineRate(total, declined, minTransactions int, thresholdPercent float64) DeclineDecision {
	if total < minTransactions || total == 0 {
		return DeclineDecision{Outcome: OutcomeInsufficient}
	}

	ratio := decimal.NewFromInt(int64(declined)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)

	if ratio.GreaterThanOrEqual(decimal.NewFromFloat(thresholdPercent)) {
		return DeclineDecision{Outcome: OutcomeBreach, Ratio: ratio}
	}
	return DeclineDecision{Outcome: OutcomeNoBreach, Ratio: ratio}
}
