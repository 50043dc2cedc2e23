package atlas

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp"}

// LoadImages decodes the given files, expanding directories to the images
// they directly contain. Sprites are named after the file name without its
// extension and returned in path order.
func LoadImages(paths ...string) ([]Sprite, map[string]image.Image, error) {
	files, err := expandPaths(paths)
	if err != nil {
		return nil, nil, err
	}

	sprites := make([]Sprite, 0, len(files))
	images := make(map[string]image.Image, len(files))
	for _, file := range files {
		img, err := decodeFile(file)
		if err != nil {
			return nil, nil, err
		}

		id := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		if _, dup := images[id]; dup {
			return nil, nil, fmt.Errorf("%w: %q (from %s)", ErrDuplicateSprite, id, file)
		}

		bounds := img.Bounds()
		sprites = append(sprites, Sprite{
			ID:     id,
			Width:  uint32(bounds.Dx()),
			Height: uint32(bounds.Dy()),
		})
		images[id] = img
	}

	return sprites, images, nil
}

func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(entry.Name()))) {
				continue
			}
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	return files, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
