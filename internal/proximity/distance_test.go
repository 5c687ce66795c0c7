package proximity

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestEstimateDistanceUnmeasurable(t *testing.T) {
	assert.Equal(t, EstimateDistance(0, DefaultReferencePower), -1.0)
	assert.Equal(t, EstimateDistance(0, -70), -1.0)
}

func TestEstimateDistanceMonotonic(t *testing.T) {
	prev := EstimateDistance(-30, DefaultReferencePower)
	for rssi := -31; rssi >= -100; rssi-- {
		d := EstimateDistance(rssi, DefaultReferencePower)
		assert.Assert(t, d > prev, "rssi %d gave %f, previous %f", rssi, d, prev)
		prev = d
	}
}

func TestEstimateDistanceNearField(t *testing.T) {
	// stronger than the reference power uses the ratio^10 branch
	d := EstimateDistance(-40, DefaultReferencePower)
	assert.Assert(t, d > 0 && d < 1)
}

func TestEstimateDistanceDefaultsReference(t *testing.T) {
	assert.Equal(t, EstimateDistance(-75, 0), EstimateDistance(-75, DefaultReferencePower))
}
