package packer

// Size is the extent of an input rectangle. Rectangles are identified solely
// by their index in the input slice, so duplicates are allowed.
type Size struct {
	Width  uint32 `json:"width" yaml:"width" toml:"width"`
	Height uint32 `json:"height" yaml:"height" toml:"height"`
}

// Point is the top-left corner of a placed rectangle.
type Point struct {
	X uint32 `json:"x" yaml:"x" toml:"x"`
	Y uint32 `json:"y" yaml:"y" toml:"y"`
}

// Placement records where the input rectangle at Index was placed.
type Placement struct {
	Position Point `json:"position" yaml:"position" toml:"position"`
	Index    int   `json:"index" yaml:"index" toml:"index"`
}

// Pack is the result of a packing run. Dimensions is the smallest
// origin-anchored box containing every placement.
type Pack struct {
	Placements []Placement `json:"placements" yaml:"placements" toml:"placements"`
	Dimensions Size        `json:"dimensions" yaml:"dimensions" toml:"dimensions"`
}

// Packer describes the behaviour required from a rectangle packer.
type Packer interface {
	Pack(rects []Size) (Pack, error)
}
