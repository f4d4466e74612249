package jellyfin

import "math"

// TicksPerSecond is the server's position/duration unit: 100ns ticks.
const TicksPerSecond = 10_000_000

// SecondsToTicks converts player seconds to server ticks, rounding to the
// nearest tick. Rounding happens only in this direction.
func SecondsToTicks(seconds float64) int64 {
	return int64(math.Round(seconds * TicksPerSecond))
}

// TicksToSeconds converts server ticks to seconds exactly.
func TicksToSeconds(ticks int64) float64 {
	return float64(ticks) / TicksPerSecond
}
