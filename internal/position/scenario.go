package position

import (
	"errors"
	"fmt"
)

// ErrInfeasibleTarget is returned when no DCA volume can reach the requested
// average price.
var ErrInfeasibleTarget = errors.New("infeasible target average")

// ScenarioResult answers "what volume at price P yields target average A".
type ScenarioResult struct {
	Volume    float64 `json:"volume"`
	Notional  float64 `json:"notional"`
	NewVolume float64 `json:"new_volume"`
}

// SolveDCAVolume inverts the averaging formula:
//
//	volume = currentVolume * (currentAvg - target) / (target - price)
//
// For the solution to exist with positive volume, the target must lie
// strictly between the DCA price and the current average in the position's
// direction (a long averaging down cannot raise its average; a short
// averaging up cannot lower it). Infeasible targets are rejected with a
// descriptive reason instead of a nonsensical volume.
func SolveDCAVolume(currentAvg, currentVolume, targetAvg, price float64, dir Direction) (ScenarioResult, error) {
	if currentAvg <= 0 || currentVolume <= 0 || targetAvg <= 0 || price <= 0 {
		return ScenarioResult{}, fmt.Errorf("%w: all prices and volumes must be positive", ErrInfeasibleTarget)
	}

	switch dir {
	case Long:
		// Averaging down: price < target < currentAvg.
		if !(price < targetAvg && targetAvg < currentAvg) {
			return ScenarioResult{}, fmt.Errorf(
				"%w: long target %.8f must lie strictly between dca price %.8f and current average %.8f",
				ErrInfeasibleTarget, targetAvg, price, currentAvg)
		}
	case Short:
		// Averaging up: currentAvg < target < price.
		if !(currentAvg < targetAvg && targetAvg < price) {
			return ScenarioResult{}, fmt.Errorf(
				"%w: short target %.8f must lie strictly between current average %.8f and dca price %.8f",
				ErrInfeasibleTarget, targetAvg, currentAvg, price)
		}
	default:
		return ScenarioResult{}, fmt.Errorf("%w: unknown direction %q", ErrInfeasibleTarget, dir)
	}

	volume := currentVolume * (currentAvg - targetAvg) / (targetAvg - price)
	if volume <= 0 {
		return ScenarioResult{}, fmt.Errorf("%w: solver produced non-positive volume", ErrInfeasibleTarget)
	}

	return ScenarioResult{
		Volume:    volume,
		Notional:  volume * price,
		NewVolume: currentVolume + volume,
	}, nil
}
