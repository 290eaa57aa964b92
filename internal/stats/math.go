package stats

import "math"

// Round rounds half away from zero to the given number of decimal places.
func Round(value float64, places int) float64 {
	if places < 0 {
		places = 0
	}
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}

// Rate returns part/whole*100, or 0 when whole is not positive.
func Rate(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// MinMaxMean summarizes a sample. ok is false for an empty sample.
func MinMaxMean(values []float64) (minV, maxV, mean float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, 0, false
	}

	minV, maxV = values[0], values[0]
	var sum float64
	for _, v := range values {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
		sum += v
	}
	return minV, maxV, sum / float64(len(values)), true
}
