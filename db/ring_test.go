package db

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bus-tracker/model"
)

func ids(r *positionRing) []uint {
	out := make([]uint, 0, r.len())
	for i := 0; i < r.len(); i++ {
		out = append(out, r.at(i).ID)
	}
	return out
}

func TestPositionRingOverwritesOldest(t *testing.T) {
	r := newPositionRing(3)
	for i := uint(1); i <= 5; i++ {
		r.push(model.Position{ID: i})
	}
	assert.Equal(t, 3, r.len())
	assert.Equal(t, []uint{3, 4, 5}, ids(r))
}

func TestPositionRingFilter(t *testing.T) {
	r := newPositionRing(4)
	for i := uint(1); i <= 6; i++ {
		r.push(model.Position{ID: i})
	}
	removed := r.filter(func(p model.Position) bool { return p.ID%2 == 0 })
	assert.Equal(t, 2, removed)
	assert.Equal(t, []uint{4, 6}, ids(r))

	r.push(model.Position{ID: 7})
	r.push(model.Position{ID: 8})
	r.push(model.Position{ID: 9})
	assert.Equal(t, []uint{6, 7, 8, 9}, ids(r))
}
