package proximity

import "math"

// DefaultReferencePower is the expected RSSI at one meter (dBm).
const DefaultReferencePower = -59.0

// EstimateDistance approximates the distance in meters for a received signal
// strength. The result orders peers by proximity; it is not a measurement and
// is not clamped. A reading of 0 dBm is unmeasurable and yields -1.
func EstimateDistance(rssi int, referencePower float64) float64 {
	if rssi == 0 {
		return -1.0
	}
	if referencePower == 0 {
		referencePower = DefaultReferencePower
	}
	ratio := float64(rssi) / referencePower
	if ratio < 1.0 {
		return math.Pow(ratio, 10)
	}
	return 0.89976*math.Pow(ratio, 7.7095) + 0.111
}
