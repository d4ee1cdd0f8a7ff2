package domain

// MaxFeatured caps how many businesses the landing page promotes.
const MaxFeatured = 3

// ToggleFeatured applies a featured on/off request for id to the current
// featured set. Turning on fails with ErrFeaturedCapReached when MaxFeatured
// other businesses are already featured; the returned set is then the input.
// Turning off always succeeds. The input slice is never modified.
func ToggleFeatured(current []string, id string, want bool) ([]string, error) {
	idx := -1
	for i, c := range current {
		if c == id {
			idx = i
			break
		}
	}
	out := append([]string(nil), current...)
	switch {
	case want && idx >= 0, !want && idx < 0:
		return out, nil
	case want:
		if len(current) >= MaxFeatured {
			return out, ErrFeaturedCapReached
		}
		return append(out, id), nil
	default:
		return append(out[:idx], out[idx+1:]...), nil
	}
}
