// Package atlas turns a packed layout into a texture atlas description:
// power-of-two texture extents, pixel regions and normalized UV rectangles
// keyed by sprite identifier.
package atlas

import (
	"errors"
	"fmt"
	"maps"
	"math/bits"
	"time"

	"github.com/google/uuid"

	"github.com/eugenenazirov/atlas-packer/internal/packer"
)

var (
	// ErrEmptySpriteID is returned when a sprite has no identifier.
	ErrEmptySpriteID = errors.New("sprite id must not be empty")
	// ErrDuplicateSprite is returned when two sprites share an identifier.
	ErrDuplicateSprite = errors.New("duplicate sprite id")
	// ErrMissingImage is returned by Compose when a region has no source image.
	ErrMissingImage = errors.New("missing source image")
)

// Sprite is a named sub-image to be placed in the atlas.
type Sprite struct {
	ID     string `json:"id"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Region locates a sprite inside the atlas texture, both in pixels and as
// fractions of the texture size.
type Region struct {
	X      uint32 `json:"x" yaml:"x" toml:"x"`
	Y      uint32 `json:"y" yaml:"y" toml:"y"`
	Width  uint32 `json:"width" yaml:"width" toml:"width"`
	Height uint32 `json:"height" yaml:"height" toml:"height"`

	U       float64 `json:"u" yaml:"u" toml:"u"`
	V       float64 `json:"v" yaml:"v" toml:"v"`
	UWidth  float64 `json:"uWidth" yaml:"u_width" toml:"u_width"`
	VHeight float64 `json:"vHeight" yaml:"v_height" toml:"v_height"`
}

// Atlas describes a packed texture atlas.
type Atlas struct {
	ID   string `json:"id" yaml:"id" toml:"id"`
	Name string `json:"name" yaml:"name" toml:"name"`

	// Width and Height are the texture extents; PackedWidth and PackedHeight
	// are the bounding box of the layout before rounding.
	Width        uint32 `json:"width" yaml:"width" toml:"width"`
	Height       uint32 `json:"height" yaml:"height" toml:"height"`
	PackedWidth  uint32 `json:"packedWidth" yaml:"packed_width" toml:"packed_width"`
	PackedHeight uint32 `json:"packedHeight" yaml:"packed_height" toml:"packed_height"`

	Regions   map[string]Region `json:"regions" yaml:"regions" toml:"regions"`
	CreatedAt time.Time         `json:"createdAt" yaml:"created_at" toml:"created_at"`
}

// Clone returns a deep copy of a.
func (a Atlas) Clone() Atlas {
	a.Regions = maps.Clone(a.Regions)
	if a.Regions == nil {
		a.Regions = map[string]Region{}
	}
	return a
}

// Builder packs sprites into atlases.
type Builder struct {
	packer     packer.Packer
	powerOfTwo bool
	clock      func() time.Time
	newID      func() string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithPowerOfTwo controls whether texture extents are rounded up to powers of two.
func WithPowerOfTwo(enabled bool) BuilderOption {
	return func(b *Builder) {
		b.powerOfTwo = enabled
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.clock = clock
	}
}

// WithIDGenerator overrides how atlas identifiers are generated.
func WithIDGenerator(gen func() string) BuilderOption {
	return func(b *Builder) {
		b.newID = gen
	}
}

// NewBuilder constructs a Builder on top of p.
func NewBuilder(p packer.Packer, opts ...BuilderOption) *Builder {
	b := &Builder{
		packer:     p,
		powerOfTwo: true,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build lays out sprites and returns the resulting atlas.
func (b *Builder) Build(name string, sprites []Sprite) (Atlas, error) {
	rects := make([]packer.Size, len(sprites))
	seen := make(map[string]struct{}, len(sprites))
	for i, sprite := range sprites {
		if sprite.ID == "" {
			return Atlas{}, fmt.Errorf("sprite %d: %w", i, ErrEmptySpriteID)
		}
		if _, dup := seen[sprite.ID]; dup {
			return Atlas{}, fmt.Errorf("%w: %q", ErrDuplicateSprite, sprite.ID)
		}
		seen[sprite.ID] = struct{}{}
		rects[i] = packer.Size{Width: sprite.Width, Height: sprite.Height}
	}

	pack, err := b.packer.Pack(rects)
	if err != nil {
		return Atlas{}, fmt.Errorf("pack sprites: %w", err)
	}

	width, height := pack.Dimensions.Width, pack.Dimensions.Height
	if b.powerOfTwo {
		width, height = NextPowerOfTwo(width), NextPowerOfTwo(height)
	}

	regions := make(map[string]Region, len(pack.Placements))
	for _, p := range pack.Placements {
		sprite := sprites[p.Index]
		regions[sprite.ID] = Region{
			X:       p.Position.X,
			Y:       p.Position.Y,
			Width:   sprite.Width,
			Height:  sprite.Height,
			U:       normalize(p.Position.X, width),
			V:       normalize(p.Position.Y, height),
			UWidth:  normalize(sprite.Width, width),
			VHeight: normalize(sprite.Height, height),
		}
	}

	return Atlas{
		ID:           b.newID(),
		Name:         name,
		Width:        width,
		Height:       height,
		PackedWidth:  pack.Dimensions.Width,
		PackedHeight: pack.Dimensions.Height,
		Regions:      regions,
		CreatedAt:    b.clock(),
	}, nil
}

// NextPowerOfTwo returns the smallest power of two >= v. Zero rounds to one;
// values above 1<<31 have no uint32 power of two and are returned unchanged.
func NextPowerOfTwo(v uint32) uint32 {
	if v <= 1 {
		return 1
	}
	if v > 1<<31 {
		return v
	}
	return 1 << bits.Len32(v-1)
}

func normalize(v, total uint32) float64 {
	if total == 0 {
		return 0
	}
	return float64(v) / float64(total)
}
