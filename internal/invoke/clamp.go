package invoke

// Band is a closed interval that bounds likelihood ratios before they are
// allowed to influence a probability update. The default band caps how much
// any single piece of evidence may move the odds.
type Band struct {
	Min float64
	Max float64
}

// DefaultBand is the standard likelihood-ratio band.
var DefaultBand = Band{Min: 0.5, Max: 2.0}

// Clamp saturates x at the nearest bound. Clamp is idempotent and monotonic;
// values already inside the band pass through unchanged.
func (b Band) Clamp(x float64) float64 {
	if x < b.Min {
		return b.Min
	}
	if x > b.Max {
		return b.Max
	}
	return x
}

// clampUpdates walks an output's "updates" array and clamps every
// likelihoodRatio field in place. A top-level likelihoodRatio field is
// clamped the same way.
func (b Band) clampUpdates(output map[string]any) {
	if lr, ok := asFloat(output["likelihoodRatio"]); ok {
		output["likelihoodRatio"] = b.Clamp(lr)
	}

	updates, ok := output["updates"].([]any)
	if !ok {
		return
	}
	for _, item := range updates {
		update, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if lr, ok := asFloat(update["likelihoodRatio"]); ok {
			update["likelihoodRatio"] = b.Clamp(lr)
		}
	}
}
