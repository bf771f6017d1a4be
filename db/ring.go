package db

import "bus-tracker/model"

// positionRing keeps the newest fixes of one bus in a fixed-size circular
// buffer. Pushing into a full ring overwrites the oldest fix.
type positionRing struct {
	buf   []model.Position
	start int
	n     int
}

func newPositionRing(capacity int) *positionRing {
	return &positionRing{buf: make([]model.Position, capacity)}
}

func (r *positionRing) push(p model.Position) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = p
		r.n++
		return
	}
	r.buf[r.start] = p
	r.start = (r.start + 1) % len(r.buf)
}

// at returns the i-th fix counted from the oldest.
func (r *positionRing) at(i int) *model.Position {
	return &r.buf[(r.start+i)%len(r.buf)]
}

func (r *positionRing) len() int {
	return r.n
}

// filter keeps only the fixes for which keep returns true, preserving order.
func (r *positionRing) filter(keep func(model.Position) bool) int {
	kept := make([]model.Position, 0, r.n)
	for i := 0; i < r.n; i++ {
		if p := *r.at(i); keep(p) {
			kept = append(kept, p)
		}
	}
	removed := r.n - len(kept)
	r.start = 0
	r.n = len(kept)
	copy(r.buf, kept)
	return removed
}
