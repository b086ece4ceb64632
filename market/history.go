// Copyright (c) 2025 BVK Chaitanya

package market

import (
	"slices"
	"sync"
	"time"

	"github.com/bvk/tradesim/gobs"
)

// History keeps the price points observed within a trailing time window.
// Older points are evicted as newer ones arrive. All methods are safe for
// concurrent use.
type History struct {
	mu sync.Mutex

	window time.Duration

	points []*gobs.PricePoint
}

func NewHistory(window time.Duration) *History {
	if window <= 0 {
		window = 2 * time.Minute
	}
	return &History{window: window}
}

// Add appends a price point and evicts points older than the retention
// window.
func (h *History) Add(p *gobs.PricePoint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.points = append(h.points, p)

	cutoff := p.Time.Add(-h.window)
	i := 0
	for i < len(h.points) && h.points[i].Time.Before(cutoff) {
		i++
	}
	if i > 0 {
		h.points = slices.Delete(h.points, 0, i)
	}
}

// Latest returns the most recent price point. The second return value is
// false when no tick was observed yet.
func (h *History) Latest() (*gobs.PricePoint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.points) == 0 {
		return nil, false
	}
	return h.points[len(h.points)-1], true
}

// Points returns the ordered price points within the trailing window ending
// at the most recent point. A zero or over-large duration returns the whole
// retained history.
func (h *History) Points(window time.Duration) []*gobs.PricePoint {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.points) == 0 {
		return nil
	}
	if window <= 0 || window > h.window {
		window = h.window
	}
	cutoff := h.points[len(h.points)-1].Time.Add(-window)
	i := 0
	for i < len(h.points) && h.points[i].Time.Before(cutoff) {
		i++
	}
	return slices.Clone(h.points[i:])
}
