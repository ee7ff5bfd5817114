package config

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

const (
	BackendFBX2glTF = "fbx2gltf"
	BackendAssimp   = "assimp"

	DefaultFPS                = 30.0
	MaxFPS                    = 1000.0
	DefaultMaxSkinningWeights = 8
	maxSkinningWeightsLimit   = 512
)

// ComputeNormals modes understood by the converters.
const (
	NormalsNever   = "never"
	NormalsBroken  = "broken"
	NormalsMissing = "missing"
	NormalsAlways  = "always"
)

// Config holds everything one run of the importer needs.
type Config struct {
	Verbose      bool
	PreferBinary bool
	OutputPath   string
	ImportDir    string
	MetricsFile  string

	Converter ConverterConfig
	Gltf      GltfOptions
	Animation AnimationOptions
	Storage   StorageConfig
}

// ConverterConfig selects the external conversion tool.
type ConverterConfig struct {
	Backend string
	Binary  string // executable name or path; empty means the backend default
}

// GltfOptions are passed through to the converter.
type GltfOptions struct {
	PBRMetRough              bool
	EmbedResources           bool
	MaxSkinningWeights       int
	NormalizeSkinningWeights bool
	ComputeNormals           string
	TextureTypes             []string
}

// AnimationOptions control how animations are rebuilt when the converted
// model is loaded back.
type AnimationOptions struct {
	FPS                   float64
	Trimming              bool
	RemoveImmutableTracks bool
}

// StorageConfig points at an S3-compatible bucket. Uploading is off when
// Endpoint is empty.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	SSL       bool
}

// Enabled reports whether converted models should be uploaded.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != ""
}

// Default returns the configuration used when no flags are given.
func Default() *Config {
	return &Config{
		PreferBinary: true,
		ImportDir:    ".imported",
		Converter:    ConverterConfig{Backend: BackendFBX2glTF},
		Gltf: GltfOptions{
			PBRMetRough:              true,
			EmbedResources:           true,
			MaxSkinningWeights:       DefaultMaxSkinningWeights,
			NormalizeSkinningWeights: true,
			ComputeNormals:           NormalsBroken,
			TextureTypes:             []string{"png", "jpg", "jpeg"},
		},
		Animation: AnimationOptions{FPS: DefaultFPS},
	}
}

// Validate checks the configuration once, before any conversion starts.
func (c *Config) Validate() error {
	switch c.Converter.Backend {
	case BackendFBX2glTF, BackendAssimp:
	default:
		return errors.Errorf("unknown converter backend: %q", c.Converter.Backend)
	}
	if c.OutputPath == "" && c.ImportDir == "" {
		return errors.New("either an output path or an import directory is required")
	}
	if err := c.Gltf.validate(); err != nil {
		return err
	}
	if err := c.Animation.Validate(); err != nil {
		return err
	}
	if c.Storage.Enabled() {
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" || c.Storage.Bucket == "" {
			return errors.New("storage configuration is incomplete")
		}
	}
	return nil
}

// Validate checks the resampling rate. It must be a finite number in (0, MaxFPS].
func (a AnimationOptions) Validate() error {
	if math.IsNaN(a.FPS) || math.IsInf(a.FPS, 0) || a.FPS <= 0 {
		return errors.Errorf("animation fps must be positive, got %v", a.FPS)
	}
	if a.FPS > MaxFPS {
		return errors.Errorf("animation fps must be at most %v, got %v", MaxFPS, a.FPS)
	}
	return nil
}

func (g *GltfOptions) validate() error {
	if g.MaxSkinningWeights < 1 || g.MaxSkinningWeights > maxSkinningWeightsLimit {
		return errors.Errorf("skinning weights must be between 1 and %d, got %d", maxSkinningWeightsLimit, g.MaxSkinningWeights)
	}
	switch g.ComputeNormals {
	case NormalsNever, NormalsBroken, NormalsMissing, NormalsAlways:
	default:
		return errors.Errorf("invalid compute-normals mode: %q", g.ComputeNormals)
	}
	for i, ext := range g.TextureTypes {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			return errors.New("empty texture type")
		}
		g.TextureTypes[i] = ext
	}
	return nil
}
