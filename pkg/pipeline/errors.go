package pipeline

import (
	"errors"
	"fmt"
	"image"
)

// ErrUnknownArtifact is returned when an artifact name is not one the
// pipeline produces
var ErrUnknownArtifact = errors.New("unknown artifact")

// DimensionError reports a derived grid whose size diverges from the source.
// It indicates a broken transform contract and is never expected in practice.
type DimensionError struct {
	Stage string
	Want  image.Point
	Got   image.Point
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch at %s: expected %dx%d, got %dx%d",
		e.Stage, e.Want.X, e.Want.Y, e.Got.X, e.Got.Y)
}

// checkSize returns a *DimensionError when got differs from want
func checkSize(stage string, want, got image.Point) error {
	if want != got {
		return &DimensionError{Stage: stage, Want: want, Got: got}
	}
	return nil
}
