package packer

import "fmt"

const defaultMaxRectangles = 4096

// ZeroSizePolicy decides how rectangles with zero width or height are treated.
type ZeroSizePolicy string

const (
	// ZeroSizePlace accepts degenerate rectangles. They are placed like any
	// other rectangle but occupy no area.
	ZeroSizePlace ZeroSizePolicy = "place"
	// ZeroSizeReject fails the run with ErrDegenerateRectangle.
	ZeroSizeReject ZeroSizePolicy = "reject"
)

// ParseZeroSizePolicy converts a configuration value into a ZeroSizePolicy.
func ParseZeroSizePolicy(raw string) (ZeroSizePolicy, error) {
	switch policy := ZeroSizePolicy(raw); policy {
	case ZeroSizePlace, ZeroSizeReject:
		return policy, nil
	default:
		return "", fmt.Errorf("unknown zero size policy %q", raw)
	}
}

// Option configures a shelf packer.
type Option func(*shelfPacker)

// WithMaxRectangles bounds the number of rectangles accepted per run.
// Values <= 0 remove the bound.
func WithMaxRectangles(limit int) Option {
	return func(p *shelfPacker) {
		p.maxRectangles = limit
	}
}

// WithZeroSizePolicy sets how degenerate rectangles are handled.
func WithZeroSizePolicy(policy ZeroSizePolicy) Option {
	return func(p *shelfPacker) {
		p.zeroSize = policy
	}
}

type shelfPacker struct {
	maxRectangles int
	zeroSize      ZeroSizePolicy
}

// New creates a Packer that validates its input and runs a fresh Solver per call.
func New(opts ...Option) Packer {
	p := &shelfPacker{
		maxRectangles: defaultMaxRectangles,
		zeroSize:      ZeroSizePlace,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *shelfPacker) Pack(rects []Size) (Pack, error) {
	if p.maxRectangles > 0 && len(rects) > p.maxRectangles {
		return Pack{}, fmt.Errorf("%w: got %d, limit is %d", ErrTooManyRectangles, len(rects), p.maxRectangles)
	}
	if p.zeroSize == ZeroSizeReject {
		for i, rect := range rects {
			if rect.Width == 0 || rect.Height == 0 {
				return Pack{}, fmt.Errorf("%w: rectangle %d is %dx%d", ErrDegenerateRectangle, i, rect.Width, rect.Height)
			}
		}
	}

	return NewSolver(rects).Solve()
}
