package converter

import (
	"context"

	"github.com/leandrowiemesfilho/fbx2gltf/internal/config"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/output"
)

const defaultAssimpBinary = "assimp"

// Assimp runs the Assimp command line exporter. It ignores the skinning and
// normal options, which the exporter does not expose.
type Assimp struct {
	Binary  string
	Options config.GltfOptions
}

func (c *Assimp) Convert(ctx context.Context, sourcePath string, out output.ResolvedOutput) error {
	return run(ctx, out.ModelPath, c.Binary, c.args(sourcePath, out)...)
}

func (c *Assimp) args(sourcePath string, out output.ResolvedOutput) []string {
	format := "-fgltf2"
	if out.Binary() {
		format = "-fglb2"
	}
	args := []string{"export", sourcePath, out.ModelPath, format}
	if c.Options.EmbedResources {
		args = append(args, "-embtex")
	}
	return args
}
