package converter

import (
	"context"
	"log"
	"strconv"

	"github.com/leandrowiemesfilho/fbx2gltf/internal/config"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/output"
)

const defaultFBX2glTFBinary = "FBX2glTF"

// FBX2glTF runs the FBX2glTF command line tool.
type FBX2glTF struct {
	Binary  string
	Options config.GltfOptions
	Verbose bool
}

func (c *FBX2glTF) Convert(ctx context.Context, sourcePath string, out output.ResolvedOutput) error {
	args := c.args(sourcePath, out)
	if c.Verbose {
		log.Printf("Running %s %v", c.Binary, args)
	}
	return run(ctx, out.ModelPath, c.Binary, args...)
}

// args passes the already resolved model path, so the tool's own output
// naming lands on the same file.
func (c *FBX2glTF) args(sourcePath string, out output.ResolvedOutput) []string {
	args := []string{"--input", sourcePath, "--output", out.ModelPath}
	if out.Binary() {
		args = append(args, "--binary")
	}
	if c.Options.PBRMetRough {
		args = append(args, "--pbr-metallic-roughness")
	}
	if c.Options.EmbedResources && !out.Binary() {
		args = append(args, "--embed")
	}
	args = append(args, "--skinning-weights", strconv.Itoa(c.Options.MaxSkinningWeights))
	if c.Options.NormalizeSkinningWeights {
		args = append(args, "--normalize-weights")
	}
	if c.Options.ComputeNormals != "" {
		args = append(args, "--compute-normals", c.Options.ComputeNormals)
	}
	if c.Verbose {
		args = append(args, "--verbose")
	}
	return args
}
