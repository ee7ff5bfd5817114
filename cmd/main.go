package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/leandrowiemesfilho/fbx2gltf/internal/config"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/converter"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/importer"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/metrics"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/scene"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/storage"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newApp().RunContext(ctx, os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	defaults := config.Default()

	return &cli.App{
		Name:      "fbx2gltf",
		Usage:     "Convert FBX scenes to glTF and load them back as a scene graph",
		ArgsUsage: "<source.fbx|archive>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file; .glb or .gltf picks the container, anything else is a base name",
			},
			&cli.StringFlag{
				Name:    "import-dir",
				Value:   defaults.ImportDir,
				Usage:   "Directory for outputs when --output is not given",
				EnvVars: []string{"FBX2GLTF_IMPORT_DIR"},
			},
			&cli.BoolFlag{
				Name:  "binary",
				Value: defaults.PreferBinary,
				Usage: "Prefer a .glb container unless --output names a .gltf",
			},
			&cli.StringFlag{
				Name:    "converter",
				Value:   defaults.Converter.Backend,
				Usage:   "Conversion backend (fbx2gltf, assimp)",
				EnvVars: []string{"FBX2GLTF_CONVERTER"},
			},
			&cli.StringFlag{
				Name:    "converter-bin",
				Usage:   "Path to the converter executable",
				EnvVars: []string{"FBX2GLTF_CONVERTER_BIN"},
			},
			&cli.BoolFlag{
				Name:  "pbr",
				Value: defaults.Gltf.PBRMetRough,
				Usage: "Write PBR metallic-roughness materials",
			},
			&cli.BoolFlag{
				Name:  "embed",
				Value: defaults.Gltf.EmbedResources,
				Usage: "Embed textures and buffers in the model",
			},
			&cli.IntFlag{
				Name:  "skinning-weights",
				Value: defaults.Gltf.MaxSkinningWeights,
				Usage: "Maximum skinning weights per vertex",
			},
			&cli.BoolFlag{
				Name:  "normalize-weights",
				Value: defaults.Gltf.NormalizeSkinningWeights,
				Usage: "Normalize skinning weights",
			},
			&cli.StringFlag{
				Name:  "compute-normals",
				Value: defaults.Gltf.ComputeNormals,
				Usage: "When to compute normals (never, broken, missing, always)",
			},
			&cli.StringSliceFlag{
				Name:  "texture-types",
				Value: cli.NewStringSlice(defaults.Gltf.TextureTypes...),
				Usage: "Texture file types published with .gltf output",
			},
			&cli.Float64Flag{
				Name:  "fps",
				Value: defaults.Animation.FPS,
				Usage: "Frame rate animations are resampled to",
			},
			&cli.BoolFlag{
				Name:  "trimming",
				Usage: "Trim animations so they start at their first key",
			},
			&cli.BoolFlag{
				Name:  "remove-immutable-tracks",
				Usage: "Drop animation tracks whose value never changes",
			},
			&cli.StringFlag{
				Name:    "minio-endpoint",
				Usage:   "Upload converted models to this S3-compatible endpoint",
				EnvVars: []string{"MINIO_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "minio-access-key",
				EnvVars: []string{"MINIO_ACCESS_KEY"},
			},
			&cli.StringFlag{
				Name:    "minio-secret-key",
				EnvVars: []string{"MINIO_SECRET_KEY"},
			},
			&cli.StringFlag{
				Name:    "minio-bucket",
				EnvVars: []string{"MINIO_BUCKET"},
			},
			&cli.StringFlag{
				Name:    "minio-prefix",
				Usage:   "Object key prefix for uploads",
				EnvVars: []string{"MINIO_PREFIX"},
			},
			&cli.BoolFlag{
				Name:    "minio-ssl",
				EnvVars: []string{"MINIO_SSL"},
			},
			&cli.StringFlag{
				Name:    "metrics-file",
				Usage:   "Write Prometheus metrics to this textfile",
				EnvVars: []string{"FBX2GLTF_METRICS_FILE"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose output",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("no input files specified")
			}

			cfg, err := configFromContext(c)
			if err != nil {
				return err
			}
			return runImport(c.Context, cfg, c.Args().Slice())
		},
		Commands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "Print the scene graph of a glTF or GLB file",
				ArgsUsage: "<model.gltf|model.glb>",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "fps", Value: defaults.Animation.FPS},
					&cli.BoolFlag{Name: "trimming"},
					&cli.BoolFlag{Name: "remove-immutable-tracks"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("expected exactly one model file")
					}
					opts := config.AnimationOptions{
						FPS:                   c.Float64("fps"),
						Trimming:              c.Bool("trimming"),
						RemoveImmutableTracks: c.Bool("remove-immutable-tracks"),
					}
					if err := opts.Validate(); err != nil {
						return errors.Wrap(err, "invalid configuration")
					}
					sc, err := scene.Load(c.Args().First(), opts)
					if err != nil {
						return err
					}
					printScene(sc)
					return nil
				},
			},
		},
	}
}

func configFromContext(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	cfg.Verbose = c.Bool("verbose")
	cfg.PreferBinary = c.Bool("binary")
	cfg.OutputPath = c.String("output")
	cfg.ImportDir = c.String("import-dir")
	cfg.MetricsFile = c.String("metrics-file")
	cfg.Converter = config.ConverterConfig{
		Backend: strings.ToLower(c.String("converter")),
		Binary:  c.String("converter-bin"),
	}
	cfg.Gltf = config.GltfOptions{
		PBRMetRough:              c.Bool("pbr"),
		EmbedResources:           c.Bool("embed"),
		MaxSkinningWeights:       c.Int("skinning-weights"),
		NormalizeSkinningWeights: c.Bool("normalize-weights"),
		ComputeNormals:           c.String("compute-normals"),
		TextureTypes:             c.StringSlice("texture-types"),
	}
	cfg.Animation = config.AnimationOptions{
		FPS:                   c.Float64("fps"),
		Trimming:              c.Bool("trimming"),
		RemoveImmutableTracks: c.Bool("remove-immutable-tracks"),
	}
	cfg.Storage = config.StorageConfig{
		Endpoint:  c.String("minio-endpoint"),
		AccessKey: c.String("minio-access-key"),
		SecretKey: c.String("minio-secret-key"),
		Bucket:    c.String("minio-bucket"),
		Prefix:    c.String("minio-prefix"),
		SSL:       c.Bool("minio-ssl"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func runImport(ctx context.Context, cfg *config.Config, inputs []string) error {
	if cfg.OutputPath != "" && len(inputs) > 1 {
		return errors.New("--output can only be used with a single input")
	}

	conv, err := converter.GetConverter(cfg.Converter, cfg.Gltf, cfg.Verbose)
	if err != nil {
		return err
	}

	var publisher importer.Publisher
	if cfg.Storage.Enabled() {
		client, err := storage.NewMinioClient(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		publisher = storage.NewPublisher(client, cfg.Storage, cfg.Gltf.TextureTypes)
	}

	var m *metrics.Metrics
	if cfg.MetricsFile != "" {
		m = metrics.NewMetrics()
		defer func() {
			if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
				log.Printf("%v", err)
			}
		}()
	}

	im := importer.New(cfg, conv, publisher, m)

	// Process each input file
	for _, inputPath := range inputs {
		if cfg.Verbose {
			log.Printf("Processing: %s", inputPath)
		}

		res, err := im.Import(ctx, im.Request(inputPath))
		if err != nil {
			return errors.Wrapf(err, "failed to convert %s", inputPath)
		}

		if cfg.Verbose {
			log.Printf("Successfully converted %s in %s", inputPath, res.Duration)
		}
		fmt.Println(res.Output.ModelPath)
	}

	return nil
}

func printScene(sc *scene.Scene) {
	fmt.Printf("Scene: %s\n", sc.Name)
	if sc.Generator != "" {
		fmt.Printf("Generator: %s\n", sc.Generator)
	}
	fmt.Printf("Meshes: %d  Materials: %d  Images: %d  Skins: %d\n", sc.Meshes, sc.Materials, sc.Images, sc.Skins)

	sc.Walk(func(depth int, n *scene.Node) {
		line := strings.Repeat("  ", depth) + n.Name
		if n.Mesh != "" {
			line += " [mesh " + n.Mesh + "]"
		}
		if n.Skinned {
			line += " [skinned]"
		}
		fmt.Println(line)
	})

	for _, a := range sc.Animations {
		fmt.Printf("Animation %s: %.3fs, %d tracks\n", a.Name, a.Length, len(a.Tracks))
		for _, t := range a.Tracks {
			fmt.Printf("  %s.%s: %d keys\n", t.Node, t.Path, t.Len())
		}
	}
}
