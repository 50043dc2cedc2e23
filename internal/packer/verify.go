package packer

import "fmt"

// Verify checks that pack is a complete, overlap-free layout of rects whose
// dimensions are exactly the bounding box of its placements.
func Verify(rects []Size, pack Pack) error {
	if len(pack.Placements) != len(rects) {
		return fmt.Errorf("%w: %d placements for %d rectangles", ErrInvalidPack, len(pack.Placements), len(rects))
	}

	seen := make([]bool, len(rects))
	var bounds Size
	for _, p := range pack.Placements {
		if p.Index < 0 || p.Index >= len(rects) {
			return fmt.Errorf("%w: placement references rectangle %d", ErrInvalidPack, p.Index)
		}
		if seen[p.Index] {
			return fmt.Errorf("%w: rectangle %d placed twice", ErrInvalidPack, p.Index)
		}
		seen[p.Index] = true

		rect := rects[p.Index]
		right := uint64(p.Position.X) + uint64(rect.Width)
		bottom := uint64(p.Position.Y) + uint64(rect.Height)
		if right > uint64(pack.Dimensions.Width) || bottom > uint64(pack.Dimensions.Height) {
			return fmt.Errorf("%w: rectangle %d extends beyond %dx%d", ErrInvalidPack, p.Index, pack.Dimensions.Width, pack.Dimensions.Height)
		}
		bounds.Width = max(bounds.Width, uint32(right))
		bounds.Height = max(bounds.Height, uint32(bottom))
	}
	if bounds != pack.Dimensions {
		return fmt.Errorf("%w: dimensions %dx%d, placements span %dx%d", ErrInvalidPack,
			pack.Dimensions.Width, pack.Dimensions.Height, bounds.Width, bounds.Height)
	}

	for i, a := range pack.Placements {
		for _, b := range pack.Placements[i+1:] {
			if overlaps(a.Position, rects[a.Index], b.Position, rects[b.Index]) {
				return fmt.Errorf("%w: rectangles %d and %d overlap", ErrInvalidPack, a.Index, b.Index)
			}
		}
	}

	return nil
}

// overlaps reports whether the half-open rectangles intersect.
func overlaps(pa Point, ra Size, pb Point, rb Size) bool {
	return spansOverlap(pa.X, ra.Width, pb.X, rb.Width) && spansOverlap(pa.Y, ra.Height, pb.Y, rb.Height)
}

func spansOverlap(a, alen, b, blen uint32) bool {
	if alen == 0 || blen == 0 {
		return false
	}
	return uint64(a) < uint64(b)+uint64(blen) && uint64(b) < uint64(a)+uint64(alen)
}
