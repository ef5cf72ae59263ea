package service

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxScore is the first value that no longer fits the numeric(5,2) column.
var maxScore = decimal.NewFromInt(1000)

// ParseScore accepts "7.5", "7,50" or blank input. Blank yields an invalid
// NullDecimal rather than an error.
func ParseScore(raw *string) (decimal.NullDecimal, error) {
	if raw == nil {
		return decimal.NullDecimal{}, nil
	}

	normalized := strings.ReplaceAll(strings.TrimSpace(*raw), ",", ".")
	if normalized == "" {
		return decimal.NullDecimal{}, nil
	}

	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.NullDecimal{}, ErrInvalidScore
	}
	if value.Abs().GreaterThanOrEqual(maxScore) {
		return decimal.NullDecimal{}, ErrInvalidScore.WithMessage("score must be below 1000")
	}

	return decimal.NullDecimal{Decimal: value, Valid: true}, nil
}

// ParseScoreOrDefault behaves like ParseScore but substitutes fallback for blank input.
func ParseScoreOrDefault(raw *string, fallback decimal.Decimal) (decimal.NullDecimal, error) {
	score, err := ParseScore(raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if !score.Valid {
		return decimal.NullDecimal{Decimal: fallback, Valid: true}, nil
	}
	return score, nil
}
