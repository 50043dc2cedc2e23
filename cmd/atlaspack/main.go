package main

import (
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/atlas-packer/internal/atlas"
	"github.com/eugenenazirov/atlas-packer/internal/logging"
	"github.com/eugenenazirov/atlas-packer/internal/manifest"
	"github.com/eugenenazirov/atlas-packer/internal/packer"
)

func main() {
	r := runner{stdout: os.Stdout, stderr: os.Stderr, newLogger: logging.New}
	if err := r.run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "atlaspack: %v\n", err)
		os.Exit(1)
	}
}

type runner struct {
	stdout    io.Writer
	stderr    io.Writer
	newLogger func(level string) (*zap.Logger, error)
}

type packerFlags struct {
	zeroSize      *string
	maxRectangles *int
}

func addPackerFlags(cmd *kingpin.CmdClause) packerFlags {
	return packerFlags{
		zeroSize: cmd.Flag("zero-size-policy", "How to treat rectangles with zero width or height").
			Default(string(packer.ZeroSizePlace)).Enum(string(packer.ZeroSizePlace), string(packer.ZeroSizeReject)),
		maxRectangles: cmd.Flag("max-rectangles", "Maximum number of rectangles (0 disables the limit)").Default("0").Int(),
	}
}

func (f packerFlags) packer() packer.Packer {
	return packer.New(
		packer.WithMaxRectangles(*f.maxRectangles),
		packer.WithZeroSizePolicy(packer.ZeroSizePolicy(*f.zeroSize)),
	)
}

func (r runner) run(args []string) error {
	app := kingpin.New("atlaspack", "Packs images into a texture atlas")
	app.UsageWriter(r.stderr)
	app.ErrorWriter(r.stderr)
	logLevel := app.Flag("log-level", "Log level (debug, info, warn, error)").Default("info").String()

	build := app.Command("build", "Pack images into an atlas texture and write its manifest")
	buildPaths := build.Arg("paths", "Image files or directories of images").Required().ExistingFilesOrDirs()
	buildOutput := build.Flag("output", "Path of the atlas PNG").Short('o').Default("atlas.png").String()
	buildManifest := build.Flag("manifest", "Path of the manifest (defaults to the output path with the format extension)").String()
	buildFormat := build.Flag("format", "Manifest format").Short('f').Default(string(manifest.FormatJSON)).Enum(manifest.Formats()...)
	buildName := build.Flag("name", "Atlas name recorded in the manifest").String()
	buildPowerOfTwo := build.Flag("power-of-two", "Round texture extents up to powers of two").Default("true").Bool()
	buildVerify := build.Flag("verify", "Check the layout for overlaps before writing").Bool()
	buildPacker := addPackerFlags(build)

	layout := app.Command("layout", "Pack WIDTHxHEIGHT rectangles and print the placements as JSON")
	layoutRects := layout.Arg("rects", "Rectangles as WIDTHxHEIGHT").Required().Strings()
	layoutVerify := layout.Flag("verify", "Check the layout for overlaps before printing").Bool()
	layoutPacker := addPackerFlags(layout)

	command, err := app.Parse(args)
	if err != nil {
		return err
	}

	logger, err := r.newLogger(*logLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	switch command {
	case build.FullCommand():
		return r.build(logger, buildOptions{
			paths:      *buildPaths,
			output:     *buildOutput,
			manifest:   *buildManifest,
			format:     manifest.Format(*buildFormat),
			name:       *buildName,
			powerOfTwo: *buildPowerOfTwo,
			verify:     *buildVerify,
			packer:     buildPacker.packer(),
		})
	case layout.FullCommand():
		return r.layout(logger, *layoutRects, *layoutVerify, layoutPacker.packer())
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

type buildOptions struct {
	paths      []string
	output     string
	manifest   string
	format     manifest.Format
	name       string
	powerOfTwo bool
	verify     bool
	packer     packer.Packer
}

func (r runner) build(logger *zap.Logger, opts buildOptions) error {
	sprites, images, err := atlas.LoadImages(opts.paths...)
	if err != nil {
		return fmt.Errorf("load images: %w", err)
	}
	logger.Debug("images loaded", zap.Int("sprites", len(sprites)))

	name := opts.name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(opts.output), filepath.Ext(opts.output))
	}

	builder := atlas.NewBuilder(opts.packer, atlas.WithPowerOfTwo(opts.powerOfTwo))
	a, err := builder.Build(name, sprites)
	if err != nil {
		return fmt.Errorf("build atlas: %w", err)
	}

	if opts.verify {
		rects, pack := layoutOf(a, sprites)
		if err := packer.Verify(rects, pack); err != nil {
			return err
		}
		logger.Debug("layout verified", zap.Int("sprites", len(sprites)))
	}

	texture, err := atlas.Compose(a, images)
	if err != nil {
		return fmt.Errorf("compose atlas: %w", err)
	}
	if err := writeFile(opts.output, func(w io.Writer) error {
		return png.Encode(w, texture)
	}); err != nil {
		return fmt.Errorf("write texture: %w", err)
	}

	manifestPath := opts.manifest
	if manifestPath == "" {
		manifestPath = strings.TrimSuffix(opts.output, filepath.Ext(opts.output)) + "." + string(opts.format)
	}
	if err := writeFile(manifestPath, func(w io.Writer) error {
		return manifest.Encode(w, a, opts.format)
	}); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	logger.Info("atlas written",
		zap.String("texture", opts.output),
		zap.String("manifest", manifestPath),
		zap.Int("sprites", len(sprites)),
		zap.Uint32("width", a.Width),
		zap.Uint32("height", a.Height),
		zap.Uint32("packed_width", a.PackedWidth),
		zap.Uint32("packed_height", a.PackedHeight),
	)
	return nil
}

func (r runner) layout(logger *zap.Logger, raw []string, verify bool, p packer.Packer) error {
	rects := make([]packer.Size, len(raw))
	for i, s := range raw {
		size, err := parseSize(s)
		if err != nil {
			return err
		}
		rects[i] = size
	}

	pack, err := p.Pack(rects)
	if err != nil {
		return err
	}
	if verify {
		if err := packer.Verify(rects, pack); err != nil {
			return err
		}
	}
	logger.Debug("layout computed",
		zap.Int("rectangles", len(rects)),
		zap.Uint32("width", pack.Dimensions.Width),
		zap.Uint32("height", pack.Dimensions.Height),
	)

	enc := json.NewEncoder(r.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(pack)
}

// layoutOf recovers the packer view of a built atlas: sprite extents in input
// order and the placements the builder recorded for them.
func layoutOf(a atlas.Atlas, sprites []atlas.Sprite) ([]packer.Size, packer.Pack) {
	rects := make([]packer.Size, len(sprites))
	pack := packer.Pack{
		Placements: make([]packer.Placement, 0, len(sprites)),
		Dimensions: packer.Size{Width: a.PackedWidth, Height: a.PackedHeight},
	}
	for i, sprite := range sprites {
		rects[i] = packer.Size{Width: sprite.Width, Height: sprite.Height}
		if region, ok := a.Regions[sprite.ID]; ok {
			pack.Placements = append(pack.Placements, packer.Placement{
				Position: packer.Point{X: region.X, Y: region.Y},
				Index:    i,
			})
		}
	}
	return rects, pack
}

// parseSize parses WIDTHxHEIGHT.
func parseSize(raw string) (packer.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(raw)), "x")
	if !ok {
		return packer.Size{}, fmt.Errorf("invalid rectangle %q: expected WIDTHxHEIGHT", raw)
	}
	width, err := strconv.ParseUint(w, 10, 32)
	if err != nil {
		return packer.Size{}, fmt.Errorf("invalid width in %q: %w", raw, err)
	}
	height, err := strconv.ParseUint(h, 10, 32)
	if err != nil {
		return packer.Size{}, fmt.Errorf("invalid height in %q: %w", raw, err)
	}
	return packer.Size{Width: uint32(width), Height: uint32(height)}, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return write(f)
}
