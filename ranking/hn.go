package ranking

import (
	"math"
	"time"
)

type Rankable interface {
	GetScore() int64
	Age() time.Time
}

// Rank computes a time decayed rank, in the fashion of Hacker News: the score
// is divided by the age in hours raised to the gravity.
func Rank(item Rankable, gravity float64, timebaseInHours int64, referenceTime time.Time) float64 {
	hours := referenceTime.Sub(item.Age()).Hours()
	if hours < 0 {
		hours = 0
	}
	s := item.GetScore()

	return float64(s) / math.Pow((float64(timebaseInHours)+hours), gravity)
}
