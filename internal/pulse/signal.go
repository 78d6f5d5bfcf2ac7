package pulse

import "time"

// Category groups signals by the kind of condition they describe.
type Category string

const (
	CategoryStrength  Category = "strength"
	CategoryWeakness  Category = "weakness"
	CategoryNeutral   Category = "neutral"
	CategoryStructure Category = "structure"
	CategoryMeta      Category = "meta"
)

// Confidence is the detector's self-reported conviction.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Signal is a time-decaying advisory emitted by a detector. Expiry is a
// computed predicate over wall-clock time, never an active deletion.
type Signal struct {
	ID         string         `json:"id"`
	Instrument string         `json:"instrument"`
	Category   Category       `json:"category"`
	Message    string         `json:"message"`
	Confidence Confidence     `json:"confidence"`
	Timestamp  time.Time      `json:"timestamp"`
	TTL        int            `json:"ttl"` // seconds
	Tag        string         `json:"tag"` // condition identity, drives dedup
	Debug      map[string]any `json:"debug,omitempty"`
}

// Active reports whether the signal is still live at now.
func (s Signal) Active(now time.Time) bool {
	return now.Sub(s.Timestamp) < time.Duration(s.TTL)*time.Second
}

// Age returns the signal age at now in seconds.
func (s Signal) Age(now time.Time) float64 {
	return now.Sub(s.Timestamp).Seconds()
}

// Opacity is the cosmetic fade weight for presentation: signals dim as
// they approach expiry but never below 0.4.
func (s Signal) Opacity(now time.Time) float64 {
	if s.TTL <= 0 {
		return 0.4
	}
	life := s.Age(now) / float64(s.TTL)
	if life > 1 {
		life = 1
	}
	opacity := 1 - 0.6*life
	if opacity < 0.4 {
		return 0.4
	}
	return opacity
}
