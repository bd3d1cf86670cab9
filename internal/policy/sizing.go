package policy

import (
	"fmt"
	"math"

	"stockradar/internal/domain"
)

const (
	DefaultMaxRiskFrac     = 0.02 // risk at most 2% of portfolio value per trade
	DefaultMaxPositionFrac = 0.20 // cap any single position at 20% of portfolio value
)

// SizeResult is the outcome of sizing a new position. Shares is the smaller
// of the risk-based and concentration-capped share counts.
type SizeResult struct {
	Shares       int
	RiskShares   int
	CapShares    int
	RiskPerShare float64
	RiskDollars  float64
	Cost         float64
}

// ShareCount sizes a new position. The risk leg allows
// portfolioValue*maxRiskFrac dollars of loss to the stop; the concentration
// leg caps the position cost at portfolioValue*maxPositionFrac. Both legs
// round down to whole shares and the smaller wins.
func ShareCount(portfolioValue, entry, stop, maxRiskFrac, maxPositionFrac float64) (SizeResult, error) {
	if portfolioValue <= 0 {
		return SizeResult{}, fmt.Errorf("%w: portfolio value %.2f", domain.ErrInvalidParameter, portfolioValue)
	}
	if entry <= 0 {
		return SizeResult{}, fmt.Errorf("%w: entry price %.4f", domain.ErrInvalidParameter, entry)
	}
	if maxRiskFrac <= 0 || maxRiskFrac >= 1 {
		return SizeResult{}, fmt.Errorf("%w: max_risk_frac %.4f outside (0, 1)", domain.ErrInvalidParameter, maxRiskFrac)
	}
	if maxPositionFrac <= 0 || maxPositionFrac > 1 {
		return SizeResult{}, fmt.Errorf("%w: max_position_frac %.4f outside (0, 1]", domain.ErrInvalidParameter, maxPositionFrac)
	}

	riskPerShare := entry - stop
	if riskPerShare <= 0 {
		return SizeResult{}, fmt.Errorf("%w: entry %.4f stop %.4f", domain.ErrStopAboveEntry, entry, stop)
	}

	riskShares := int(math.Floor(portfolioValue * maxRiskFrac / riskPerShare))
	capShares := int(math.Floor(portfolioValue * maxPositionFrac / entry))

	shares := riskShares
	if capShares < shares {
		shares = capShares
	}
	if shares < 1 {
		return SizeResult{}, fmt.Errorf("%w: risk leg %d, cap leg %d", domain.ErrZeroShares, riskShares, capShares)
	}

	return SizeResult{
		Shares:       shares,
		RiskShares:   riskShares,
		CapShares:    capShares,
		RiskPerShare: riskPerShare,
		RiskDollars:  riskPerShare * float64(shares),
		Cost:         entry * float64(shares),
	}, nil
}
