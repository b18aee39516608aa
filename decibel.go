package stepseq

import "math"

// Volume limits of a track, in decibels relative to unity gain.
const (
	DBMin = -70.0
	DBMax = 20.0
)

// GainMin and GainMax are DBMin and DBMax as linear gains.
var (
	GainMin = DBToGain(DBMin)
	GainMax = DBToGain(DBMax)
)

// DBToGain converts decibels to a linear gain factor.
func DBToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

// GainToDB converts a linear gain factor to decibels. Non-positive gains map to
// DBMin.
func GainToDB(gain float64) float64 {
	if gain <= 0 {
		return DBMin
	}
	return 20 * math.Log10(gain)
}

// ClampDB limits db to [DBMin, DBMax].
func ClampDB(db float64) float64 {
	if math.IsNaN(db) {
		return DBMin
	}
	return math.Min(math.Max(db, DBMin), DBMax)
}

// ClampGain limits a linear gain to [GainMin, GainMax].
func ClampGain(gain float64) float64 {
	if math.IsNaN(gain) {
		return GainMin
	}
	return math.Min(math.Max(gain, GainMin), GainMax)
}
