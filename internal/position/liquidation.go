package position

// defaultMaintenanceRate approximates the venue's maintenance margin
// requirement as a fraction of leverage: 0.2/leverage. A strategy document
// can override the rate; the cross-margin model used for live exchange
// positions is a separate concern outside this engine.
func maintenanceRate(leverage int, override float64) float64 {
	if override > 0 {
		return override
	}
	if leverage < 1 {
		leverage = 1
	}
	return 0.2 / float64(leverage)
}

// liquidationPrice estimates the forced-close price from the average entry
// in the position's direction.
func liquidationPrice(avgPrice float64, dir Direction, leverage int, mmrOverride float64) float64 {
	if avgPrice <= 0 || leverage < 1 {
		return 0
	}
	mmr := maintenanceRate(leverage, mmrOverride)
	lev := float64(leverage)
	if dir == Long {
		return avgPrice * (1 - 1/lev + mmr)
	}
	return avgPrice * (1 + 1/lev - mmr)
}

// liquidationDistance reports how far the current price sits from the
// liquidation price, as a percent of the current price. Positive means the
// position still has room; negative means the estimate has been crossed.
func liquidationDistance(liqPrice, currentPrice float64, dir Direction) float64 {
	if liqPrice <= 0 || currentPrice <= 0 {
		return 0
	}
	if dir == Long {
		return (currentPrice - liqPrice) / currentPrice * 100
	}
	return (liqPrice - currentPrice) / currentPrice * 100
}
