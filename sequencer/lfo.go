package sequencer

import (
	"math"

	"go-flux/pattern"
)

// randomSegments is how many held values a Random LFO produces per cycle.
const randomSegments = 16

// EvaluateLFO returns the modulation of lfo at globalPhase (position in the
// bar, 0..1), already scaled by the LFO amount.
func EvaluateLFO(lfo *pattern.LFO, globalPhase float32) float32 {
	phase := wrapPhase(float64(globalPhase)*float64(lfo.Speed) + float64(lfo.Phase))

	var raw float64
	switch lfo.Shape.Kind {
	case pattern.ShapeSine:
		raw = math.Sin(2 * math.Pi * phase)
	case pattern.ShapeTriangle:
		switch {
		case phase < 0.25:
			raw = phase * 4
		case phase < 0.75:
			raw = 1 - (phase-0.25)*4
		default:
			raw = -1 + (phase-0.75)*4
		}
	case pattern.ShapeSquare:
		if phase < 0.5 {
			raw = 1
		} else {
			raw = -1
		}
	case pattern.ShapeRandom:
		seg := uint32(phase * randomSegments)
		raw = hashUnit(lfo.Seed, seg)
	case pattern.ShapeDesigner:
		pts := &lfo.Shape.Points
		pos := phase * pattern.DesignerPoints
		idx := int(pos)
		if idx >= pattern.DesignerPoints {
			idx = pattern.DesignerPoints - 1
		}
		frac := pos - float64(idx)
		a := float64(pts[idx])
		b := float64(pts[(idx+1)%pattern.DesignerPoints])
		raw = a + (b-a)*frac
	}
	return float32(raw * float64(lfo.Amount))
}

// wrapPhase folds p into [0, 1).
func wrapPhase(p float64) float64 {
	p -= math.Floor(p)
	if p >= 1 {
		p = 0
	}
	return p
}

// hashUnit maps (seed, segment) to [-1, 1] with a splitmix64 finalizer.
func hashUnit(seed, segment uint32) float64 {
	z := uint64(seed)<<32 | uint64(segment)
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return float64(z>>11)/float64(1<<53)*2 - 1
}
