// Package overlay keeps a transient overlay node, such as a video watermark, moving to
// pseudo-random positions inside its container.
package overlay

// DefaultMargin is the minimum distance kept between the overlay and the container edges.
const DefaultMargin = 10.0

// Random is the source of uniform values in [0, 1). *rand.Rand satisfies it.
type Random interface {
	Float64() float64
}

type Position struct {
	Top  float64 `json:"top"`
	Left float64 `json:"left"`
}

// ComputeRandomPosition returns a position keeping the overlay fully inside the container:
// margin <= Top <= containerH - overlayH - margin, and likewise for Left.
// Containers too small for the overlay plus both margins, or not measured yet, get {margin, margin}.
func ComputeRandomPosition(containerW, containerH, overlayW, overlayH, margin float64, rnd Random) Position {
	fallback := Position{Top: margin, Left: margin}
	if containerW <= 0 || containerH <= 0 {
		return fallback
	}

	maxTop := containerH - overlayH - margin
	maxLeft := containerW - overlayW - margin
	if maxTop < margin || maxLeft < margin {
		return fallback
	}
	return Position{
		Top:  margin + rnd.Float64()*(maxTop-margin),
		Left: margin + rnd.Float64()*(maxLeft-margin),
	}
}
