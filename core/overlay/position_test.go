package overlay

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixedRandom float64

func (r fixedRandom) Float64() float64 { return float64(r) }

func TestComputeRandomPosition_bounds(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		pos := ComputeRandomPosition(500, 300, 100, 40, 10, rnd)
		if pos.Top < 10 || pos.Top > 250 {
			t.Fatalf("trial %d: top = %v, want within [10, 250]", i, pos.Top)
		}
		if pos.Left < 10 || pos.Left > 390 {
			t.Fatalf("trial %d: left = %v, want within [10, 390]", i, pos.Left)
		}
	}
}

func TestComputeRandomPosition(t *testing.T) {
	tests := []struct {
		name                   string
		cw, ch, ow, oh, margin float64
		rnd                    Random
		want                   Position
	}{
		{name: "container too small", cw: 30, ch: 30, ow: 100, oh: 40, margin: 10, rnd: fixedRandom(0.5), want: Position{Top: 10, Left: 10}},
		{name: "too narrow only", cw: 110, ch: 300, ow: 100, oh: 40, margin: 10, rnd: fixedRandom(0.5), want: Position{Top: 10, Left: 10}},
		{name: "not measured", cw: 0, ch: 0, ow: 100, oh: 40, margin: 10, rnd: fixedRandom(0.5), want: Position{Top: 10, Left: 10}},
		{name: "negative size", cw: -500, ch: 300, ow: 100, oh: 40, margin: DefaultMargin, rnd: fixedRandom(0.5), want: Position{Top: 10, Left: 10}},
		{name: "exact fit", cw: 120, ch: 60, ow: 100, oh: 40, margin: 10, rnd: fixedRandom(0.9), want: Position{Top: 10, Left: 10}},
		{name: "lowest draw", cw: 500, ch: 300, ow: 100, oh: 40, margin: 10, rnd: fixedRandom(0), want: Position{Top: 10, Left: 10}},
		{name: "middle draw", cw: 500, ch: 300, ow: 100, oh: 40, margin: 10, rnd: fixedRandom(0.5), want: Position{Top: 130, Left: 200}},
		{name: "no margin", cw: 200, ch: 100, ow: 100, oh: 40, margin: 0, rnd: fixedRandom(0.5), want: Position{Top: 30, Left: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRandomPosition(tt.cw, tt.ch, tt.ow, tt.oh, tt.margin, tt.rnd)
			assert.Equal(t, tt.want, got)
		})
	}
}
