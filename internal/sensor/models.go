package sensor

import (
	"strconv"
	"time"
)

// Reading is a single soil moisture sample reported by the field device.
type Reading struct {
	Value      float64   `json:"value"`      // moisture percentage
	ObservedAt time.Time `json:"observedAt"` // always UTC
}

// NewReading stamps a moisture value with the current time.
func NewReading(value float64) Reading {
	return Reading{
		Value:      value,
		ObservedAt: time.Now().UTC(),
	}
}

// Percent formats the value the way it appears in alerts and menus, e.g. "25%".
func (r Reading) Percent() string {
	return strconv.FormatFloat(r.Value, 'f', -1, 64) + "%"
}

// Below reports whether the reading is under the alert threshold.
func (r Reading) Below(threshold float64) bool {
	return r.Value < threshold
}
