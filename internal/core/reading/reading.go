// Package reading defines the simulated velocity reading and its wire encoding.
package reading

import (
	"math"
	"math/rand/v2"
	"strconv"
	"time"
)

const (
	// MaxVelocity is the exclusive upper bound of sampled velocities.
	MaxVelocity = 30.0

	// TimestampLayout is the ISO-8601 layout used on the wire.
	TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"
)

// Reading is a single velocity sample. It is built right before publishing
// and never stored.
type Reading struct {
	Timestamp time.Time
	Velocity  float64
}

// Payload returns the JSON wire form of the reading with the timestamp first
// and the velocity rendered with two decimals:
//
//	{"timestamp": "2024-05-01T10:00:00.000000Z", "velocity": 12.34}
func (r Reading) Payload() []byte {
	b := make([]byte, 0, 80)
	b = append(b, `{"timestamp": "`...)
	b = r.Timestamp.AppendFormat(b, TimestampLayout)
	b = append(b, `", "velocity": `...)
	b = strconv.AppendFloat(b, r.Velocity, 'f', 2, 64)
	b = append(b, '}')
	return b
}

// MarshalJSON implements json.Marshaler using the wire form.
func (r Reading) MarshalJSON() ([]byte, error) {
	return r.Payload(), nil
}

// Source yields uniformly distributed floats in [0, 1).
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Sampler produces readings from a random source.
type Sampler struct {
	src Source
}

// NewSampler creates a Sampler. A nil source uses the process-wide generator.
func NewSampler(src Source) *Sampler {
	if src == nil {
		src = globalSource{}
	}
	return &Sampler{src: src}
}

// Velocity draws a velocity in [0, MaxVelocity), truncated to hundredths so
// the two-decimal wire value never rounds up to MaxVelocity.
func (s *Sampler) Velocity() float64 {
	v := math.Floor(s.src.Float64()*MaxVelocity*100) / 100
	if v >= MaxVelocity || v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

// Read builds a reading stamped with now.
func (s *Sampler) Read(now time.Time) Reading {
	return Reading{Timestamp: now, Velocity: s.Velocity()}
}
