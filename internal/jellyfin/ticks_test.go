package jellyfin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTickConversions(t *testing.T) {
	t.Run("ticks to seconds is exact", func(t *testing.T) {
		assert.Equal(t, 300.0, TicksToSeconds(3000000000))
		assert.Equal(t, 5.0, TicksToSeconds(50000000))
		assert.Equal(t, 0.0, TicksToSeconds(0))
	})

	t.Run("seconds to ticks rounds", func(t *testing.T) {
		assert.Equal(t, int64(10000000), SecondsToTicks(1))
		// 1.23456789s is 12345678.9 ticks, rounds up
		assert.Equal(t, int64(12345679), SecondsToTicks(1.23456789))
	})

	t.Run("round trip through seconds", func(t *testing.T) {
		assert.Equal(t, int64(3000000000), SecondsToTicks(TicksToSeconds(3000000000)))
	})
}
