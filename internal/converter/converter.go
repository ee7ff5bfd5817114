package converter

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/leandrowiemesfilho/fbx2gltf/internal/config"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/output"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/utils"
	"github.com/pkg/errors"
)

// Converter writes a glTF model for a source scene at out.ModelPath.
type Converter interface {
	Convert(ctx context.Context, sourcePath string, out output.ResolvedOutput) error
}

// FileType represents supported source file types
type FileType string

const (
	FBX FileType = "fbx"
)

const (
	// maxToolOutput caps how much converter output is attached to an error.
	maxToolOutput = 4096
	waitDelay     = 2 * time.Second
)

// SupportedSource returns the file type of a source path, or an error when
// no converter handles it.
func SupportedSource(path string) (FileType, error) {
	switch ext := utils.Extension(path); ext {
	case string(FBX):
		return FBX, nil
	default:
		return "", errors.Errorf("unsupported file type: .%s", ext)
	}
}

// GetConverter returns the converter for the configured backend
func GetConverter(cfg config.ConverterConfig, opts config.GltfOptions, verbose bool) (Converter, error) {
	switch cfg.Backend {
	case config.BackendFBX2glTF:
		return &FBX2glTF{Binary: binaryOr(cfg.Binary, defaultFBX2glTFBinary), Options: opts, Verbose: verbose}, nil
	case config.BackendAssimp:
		return &Assimp{Binary: binaryOr(cfg.Binary, defaultAssimpBinary), Options: opts}, nil
	default:
		return nil, errors.Errorf("unknown converter backend: %q", cfg.Backend)
	}
}

func binaryOr(binary, fallback string) string {
	if binary == "" {
		return fallback
	}
	return binary
}

// run executes a converter tool and checks that it produced modelPath. A
// partially written model is removed when the tool fails.
func run(ctx context.Context, modelPath, name string, args ...string) error {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		os.Remove(modelPath)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrapf(ctxErr, "%s interrupted", name)
		}
		return errors.Wrapf(err, "%s failed: %s", name, tail(out.String()))
	}
	if !utils.FileExists(modelPath) {
		return errors.Errorf("%s did not write %s: %s", name, modelPath, tail(out.String()))
	}
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxToolOutput {
		s = "..." + s[len(s)-maxToolOutput:]
	}
	if s == "" {
		return "no output"
	}
	return s
}
