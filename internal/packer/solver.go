package packer

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Solver packs a fixed set of rectangles with a greedy shelf heuristic.
// It borrows the input slice and may be solved only once.
type Solver struct {
	rects []Size

	// Indices of rectangles not yet placed, ascending by height and by width.
	shortest []int
	thinnest []int

	pack   Pack
	solved bool
}

// NewSolver prepares a solver for rects. Equal heights (or widths) keep input
// order so that identical inputs always yield identical layouts.
func NewSolver(rects []Size) *Solver {
	shortest := make([]int, len(rects))
	thinnest := make([]int, len(rects))
	for i := range rects {
		shortest[i] = i
		thinnest[i] = i
	}

	slices.SortFunc(shortest, func(a, b int) int {
		return cmp.Or(cmp.Compare(rects[a].Height, rects[b].Height), cmp.Compare(a, b))
	})
	slices.SortFunc(thinnest, func(a, b int) int {
		return cmp.Or(cmp.Compare(rects[a].Width, rects[b].Width), cmp.Compare(a, b))
	})

	return &Solver{
		rects:    rects,
		shortest: shortest,
		thinnest: thinnest,
		pack: Pack{
			Placements: make([]Placement, 0, len(rects)),
		},
	}
}

// Solve runs the packing to completion and returns the layout.
//
// Each iteration anchors a shelf on the tallest remaining rectangle, stacks
// the shortest remaining rectangles in a column to its right while their
// total height fits the anchor, and fills the space beside every stacked
// rectangle with the thinnest remaining ones that are strictly shorter than
// it. The cursor then either continues right of the shelf or starts a new
// shelf below, whichever keeps the bounding box closer to square.
//
// Solve fails with ErrDimensionOverflow when a rectangle would end beyond
// math.MaxUint32 on either axis.
func (s *Solver) Solve() (Pack, error) {
	if s.solved {
		return Pack{}, ErrAlreadySolved
	}
	s.solved = true

	var position Point
	var tallestInRow uint32

	inExtended := make([]bool, len(s.rects))

	for !s.done() {
		if len(s.shortest) != len(s.thinnest) {
			panic(fmt.Sprintf("packer: working lists diverged (%d shortest, %d thinnest)", len(s.shortest), len(s.thinnest)))
		}

		tallest := s.shortest[len(s.shortest)-1]
		anchor := s.rects[tallest]
		if err := s.place(position, tallest); err != nil {
			return Pack{}, err
		}
		tallestInRow = max(tallestInRow, anchor.Height)
		position.X += anchor.Width

		var stacked uint64
		extended := make([]int, 0, len(s.shortest))
		for _, idx := range s.shortest {
			stacked += uint64(s.rects[idx].Height)
			if stacked > uint64(anchor.Height) {
				break
			}
			extended = append(extended, idx)
			inExtended[idx] = true
		}

		currentY := position.Y
		var width uint32
		for _, ext := range extended {
			extRect := s.rects[ext]
			if err := s.place(Point{X: position.X, Y: currentY}, ext); err != nil {
				return Pack{}, err
			}

			var lined uint64
			rowed := make([]int, 0, len(s.thinnest))
			for _, idx := range s.thinnest {
				if inExtended[idx] {
					continue
				}
				rect := s.rects[idx]
				lined += uint64(rect.Width)
				if lined > uint64(extRect.Width) || rect.Height >= extRect.Height {
					break
				}
				rowed = append(rowed, idx)
			}

			currentX := position.X + extRect.Width
			for _, idx := range rowed {
				if err := s.place(Point{X: currentX, Y: currentY}, idx); err != nil {
					return Pack{}, err
				}
				currentX += s.rects[idx].Width
			}
			width = max(width, currentX)

			currentY += extRect.Height
		}

		for _, ext := range extended {
			inExtended[ext] = false
		}

		if s.pack.Dimensions.Height >= s.pack.Dimensions.Width {
			position.X = width
		} else {
			position.Y += tallestInRow
			position.X = 0
			tallestInRow = 0
		}
	}

	return s.pack, nil
}

func (s *Solver) done() bool {
	return len(s.shortest) == 0 && len(s.thinnest) == 0
}

// place records the placement of rects[index] and drops it from both working
// lists. Solve only advances its cursors to edges accepted here.
func (s *Solver) place(position Point, index int) error {
	rect := s.rects[index]
	right := uint64(position.X) + uint64(rect.Width)
	bottom := uint64(position.Y) + uint64(rect.Height)
	if right > math.MaxUint32 || bottom > math.MaxUint32 {
		return fmt.Errorf("%w: rectangle %d (%dx%d) at (%d, %d)",
			ErrDimensionOverflow, index, rect.Width, rect.Height, position.X, position.Y)
	}

	s.shortest = removeIndex(s.shortest, index)
	s.thinnest = removeIndex(s.thinnest, index)

	s.pack.Placements = append(s.pack.Placements, Placement{Position: position, Index: index})

	s.pack.Dimensions.Width = max(s.pack.Dimensions.Width, uint32(right))
	s.pack.Dimensions.Height = max(s.pack.Dimensions.Height, uint32(bottom))
	return nil
}

func removeIndex(list []int, index int) []int {
	pos := slices.Index(list, index)
	if pos < 0 {
		panic(fmt.Sprintf("packer: rectangle %d is not pending", index))
	}
	return slices.Delete(list, pos, pos+1)
}
