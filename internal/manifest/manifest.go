// Package manifest serializes atlases into the manifest formats consumed by
// asset pipelines: JSON, YAML and TOML.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/atlas-packer/internal/atlas"
)

// Format identifies a manifest encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnknownFormat is returned for unsupported manifest formats.
var ErrUnknownFormat = errors.New("unknown manifest format")

// Formats lists the supported formats in display order.
func Formats() []string {
	return []string{string(FormatJSON), string(FormatYAML), string(FormatTOML)}
}

// ParseFormat resolves a user-supplied format name. An empty name selects JSON.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownFormat, raw)
	}
}

// ContentType returns the HTTP media type for f.
func ContentType(f Format) string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatTOML:
		return "application/toml"
	default:
		return "application/json"
	}
}

// Encode writes a in the given format.
func Encode(w io.Writer, a atlas.Atlas, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(a); err != nil {
			return fmt.Errorf("encode JSON manifest: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(a); err != nil {
			return fmt.Errorf("encode YAML manifest: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode YAML manifest: %w", err)
		}
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(a); err != nil {
			return fmt.Errorf("encode TOML manifest: %w", err)
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, f)
	}
	return nil
}
