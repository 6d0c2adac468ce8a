package history

import "time"

// Rules decide whether a listen counts as a play
type Rules struct {
	// MinDuration is the shortest track that can be recorded
	MinDuration time.Duration

	// Fraction of the track that must be played
	Fraction float64

	// MaxThreshold caps the required listening time for long tracks
	MaxThreshold time.Duration
}

// DefaultRules: tracks of at least 30 seconds, played for half their
// length or four minutes, whichever comes first
func DefaultRules() Rules {
	return Rules{
		MinDuration:  30 * time.Second,
		Fraction:     0.5,
		MaxThreshold: 4 * time.Minute,
	}
}

// Threshold returns the listening time after which a track of the given
// length counts, or -1 when the track is too short to ever count
func (r Rules) Threshold(trackDuration time.Duration) time.Duration {
	if trackDuration <= 0 || trackDuration < r.MinDuration {
		return -1
	}

	threshold := time.Duration(float64(trackDuration) * r.Fraction)
	if r.MaxThreshold > 0 && threshold > r.MaxThreshold {
		threshold = r.MaxThreshold
	}
	return threshold
}

// ShouldRecord reports whether played time on a track of the given
// length counts as a play
func (r Rules) ShouldRecord(trackDuration, played time.Duration) bool {
	threshold := r.Threshold(trackDuration)
	if threshold < 0 {
		return false
	}
	return played >= threshold
}
