package ai

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	minPricePattern      = regexp.MustCompile(`(?i)Minimum price:\s*\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)
	maxPricePattern      = regexp.MustCompile(`(?i)Maximum price:\s*\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)
	justificationPattern = regexp.MustCompile(`(?i)Justification:\s*(.+)`)
	dollarPattern        = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)
	numberRegex          = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]+)?`)
	ErrParseFailed       = errors.New("parse_failed")
)

// PriceEstimate is a valuation range in USD. A single-number answer has Min == Max.
type PriceEstimate struct {
	Min           float64
	Max           float64
	Justification string
}

func (p PriceEstimate) Midpoint() float64 {
	return (p.Min + p.Max) / 2
}

// ParsePriceEstimate reads the "Minimum price / Maximum price / Justification" answer format
// and falls back to the first dollar amount, then the first bare number, in the text.
func ParsePriceEstimate(text string) (*PriceEstimate, error) {
	minM := minPricePattern.FindStringSubmatch(text)
	maxM := maxPricePattern.FindStringSubmatch(text)

	if len(minM) >= 2 || len(maxM) >= 2 {
		var est PriceEstimate
		var err error
		switch {
		case len(minM) >= 2 && len(maxM) >= 2:
			if est.Min, err = parseAmount(minM[1]); err != nil {
				return nil, err
			}
			if est.Max, err = parseAmount(maxM[1]); err != nil {
				return nil, err
			}
		case len(minM) >= 2:
			if est.Min, err = parseAmount(minM[1]); err != nil {
				return nil, err
			}
			est.Max = est.Min
		default:
			if est.Max, err = parseAmount(maxM[1]); err != nil {
				return nil, err
			}
			est.Min = est.Max
		}
		if est.Min > est.Max {
			est.Min, est.Max = est.Max, est.Min
		}
		if j := justificationPattern.FindStringSubmatch(text); len(j) >= 2 {
			est.Justification = strings.TrimSpace(j[1])
		}
		return &est, nil
	}

	var raw string
	if m := dollarPattern.FindStringSubmatch(text); len(m) >= 2 {
		raw = m[1]
	} else {
		raw = numberRegex.FindString(text)
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: no price found", ErrParseFailed)
	}
	v, err := parseAmount(raw)
	if err != nil {
		return nil, err
	}
	return &PriceEstimate{Min: v, Max: v}, nil
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	return v, nil
}
