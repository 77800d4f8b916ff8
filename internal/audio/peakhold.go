package audio

import (
	"sync"
)

// PeakHold keeps the highest peak per channel seen since the last read, plus
// a clip indicator that stays lit until explicitly reset.
// It is safe for concurrent use.
type PeakHold struct {
	mu        sync.Mutex
	left      int
	right     int
	lastLeft  int
	lastRight int
	clipped   bool
	clipCount int
}

// NewPeakHold returns an empty peak hold.
func NewPeakHold() *PeakHold {
	return &PeakHold{}
}

// Update folds the peaks of one processed buffer into the held values.
func (p *PeakHold) Update(pk Peaks) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.left = max(p.left, pk.Left)
	p.right = max(p.right, pk.Right)
	if pk.ClipLeft > 0 || pk.ClipRight > 0 {
		if !p.clipped {
			p.clipCount++
		}
		p.clipped = true
	}
}

// PeakHold returns the held peaks and starts a new hold period.
func (p *PeakHold) PeakHold() (left, right int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	left, right = p.left, p.right
	p.lastLeft, p.lastRight = left, right
	p.left, p.right = 0, 0
	return left, right
}

// Last returns the peaks returned by the most recent PeakHold call without
// resetting anything.
func (p *PeakHold) Last() (left, right int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastLeft, p.lastRight
}

// Clipped reports whether clipping occurred since the last ResetClip.
func (p *PeakHold) Clipped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clipped
}

// ResetClip clears the clip indicator.
func (p *PeakHold) ResetClip() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clipped = false
}

// ClipCount returns how many separate clip episodes were seen since ResetClipCount.
func (p *PeakHold) ClipCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clipCount
}

// ResetClipCount clears the clip episode counter.
func (p *PeakHold) ResetClipCount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clipCount = 0
}
