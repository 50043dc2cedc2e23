package packer

import "errors"

var (
	// ErrAlreadySolved is returned when Solve is called on a solver that has already produced a Pack.
	ErrAlreadySolved = errors.New("solver has already been used")
	// ErrTooManyRectangles is returned when the input exceeds the configured rectangle limit.
	ErrTooManyRectangles = errors.New("too many rectangles")
	// ErrDegenerateRectangle is returned for zero-sized rectangles when the policy rejects them.
	ErrDegenerateRectangle = errors.New("rectangle has zero width or height")
	// ErrDimensionOverflow is returned when a placement would extend past the uint32 coordinate range.
	ErrDimensionOverflow = errors.New("layout exceeds the uint32 coordinate range")
	// ErrInvalidPack is returned by Verify when a pack violates a layout property.
	ErrInvalidPack = errors.New("invalid pack")
)
