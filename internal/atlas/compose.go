package atlas

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Compose copies every source image into its region of a new RGBA texture
// sized to the atlas. images is keyed by sprite ID; images larger than their
// region are clipped to it.
func Compose(a Atlas, images map[string]image.Image) (*image.RGBA, error) {
	dst := image.NewRGBA(image.Rect(0, 0, int(a.Width), int(a.Height)))

	for id, region := range a.Regions {
		src, ok := images[id]
		if !ok {
			return nil, fmt.Errorf("%w for sprite %q", ErrMissingImage, id)
		}
		bounds := image.Rect(
			int(region.X), int(region.Y),
			int(region.X)+int(region.Width), int(region.Y)+int(region.Height),
		)
		draw.Copy(dst, bounds.Min, src, src.Bounds().Intersect(image.Rectangle{
			Min: src.Bounds().Min,
			Max: src.Bounds().Min.Add(bounds.Size()),
		}), draw.Src, nil)
	}

	return dst, nil
}
