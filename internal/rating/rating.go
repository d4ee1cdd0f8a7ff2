// Package rating folds review ratings into a business's aggregate score.
package rating

import "fmt"

const (
	MinStars = 1
	MaxStars = 5
)

// ErrOutOfRange is returned for ratings outside [MinStars, MaxStars].
type ErrOutOfRange struct{ Value int }

func (e ErrOutOfRange) Error() string {
	return fmt.Sprintf("rating %d out of range [%d,%d]", e.Value, MinStars, MaxStars)
}

func Validate(r int) error {
	if r < MinStars || r > MaxStars {
		return ErrOutOfRange{Value: r}
	}
	return nil
}

// Fold incorporates r into a running mean avg over n ratings.
func Fold(avg float64, n int, r int) (float64, int, error) {
	if err := Validate(r); err != nil {
		return avg, n, err
	}
	if n < 0 {
		n = 0
	}
	return (avg*float64(n) + float64(r)) / float64(n+1), n + 1, nil
}

// Aggregate is the persisted form of a rating: the exact integer sum of
// all review ratings and their count. The mean is derived, never stored.
type Aggregate struct {
	Sum   int64 `json:"sum"`
	Count int64 `json:"count"`
}

func (a Aggregate) Add(r int) (Aggregate, error) {
	if err := Validate(r); err != nil {
		return a, err
	}
	return Aggregate{Sum: a.Sum + int64(r), Count: a.Count + 1}, nil
}

// Mean returns false when no ratings have been folded in.
func (a Aggregate) Mean() (float64, bool) {
	if a.Count <= 0 {
		return 0, false
	}
	return float64(a.Sum) / float64(a.Count), true
}

// MeanPtr is Mean in the optional form used by read models.
func (a Aggregate) MeanPtr() *float64 {
	m, ok := a.Mean()
	if !ok {
		return nil
	}
	return &m
}
