package importer

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/leandrowiemesfilho/fbx2gltf/internal/config"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/converter"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/extraction"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/metrics"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/output"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/scene"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/utils"
)

// Publisher uploads a converted model.
type Publisher interface {
	Publish(ctx context.Context, out output.ResolvedOutput, runID string) ([]string, error)
}

// Result describes one successful import.
type Result struct {
	RunID    string
	Source   string
	Output   output.ResolvedOutput
	Scene    *scene.Scene
	Uploaded []string
	Duration time.Duration
}

// Importer converts source scenes to glTF and loads them back.
type Importer struct {
	cfg       *config.Config
	conv      converter.Converter
	publisher Publisher
	metrics   *metrics.Metrics
}

// New creates an importer. publisher and m may be nil.
func New(cfg *config.Config, conv converter.Converter, publisher Publisher, m *metrics.Metrics) *Importer {
	return &Importer{cfg: cfg, conv: conv, publisher: publisher, metrics: m}
}

// Request builds the conversion request for a source path from the
// configured output and container preference.
func (im *Importer) Request(sourcePath string) output.Request {
	return output.Request{
		SourcePath:          sourcePath,
		OutputPathCandidate: im.cfg.OutputPath,
		PreferBinary:        im.cfg.PreferBinary,
	}
}

// Import runs one conversion request. Nothing is returned on failure; a
// failed output resolution stops the request before the converter runs.
func (im *Importer) Import(ctx context.Context, req output.Request) (*Result, error) {
	start := time.Now()
	res, err := im.doImport(ctx, req)
	if im.metrics != nil {
		binary := req.PreferBinary
		if res != nil {
			binary = res.Output.Binary()
		}
		im.metrics.RecordConversion(err == nil, binary)
	}
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (im *Importer) doImport(ctx context.Context, req output.Request) (*Result, error) {
	if !utils.FileExists(req.SourcePath) {
		return nil, errors.Errorf("input file does not exist: %s", req.SourcePath)
	}
	runID := uuid.NewString()
	source := utils.AbsPath(req.SourcePath)

	modelSource := source
	if extraction.IsArchive(source) {
		stageStart := time.Now()
		files, dir, err := extraction.ExtractArchive(ctx, source)
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)
		modelSource, err = extraction.FindModel(files, string(converter.FBX))
		if err != nil {
			return nil, errors.Wrapf(err, "archive %s", source)
		}
		im.observe(metrics.StageExtract, stageStart)
		im.logf("Extracted %s from %s", modelSource, source)
	}

	fileType, err := converter.SupportedSource(modelSource)
	if err != nil {
		return nil, err
	}
	im.logf("Detected file type: %s", fileType)

	candidate := req.OutputPathCandidate
	if candidate == "" {
		candidate = output.DefaultCandidate(im.cfg.ImportDir, source)
	}
	candidate = utils.AbsPath(candidate)

	stageStart := time.Now()
	out, err := output.Resolve(candidate, req.PreferBinary)
	if err != nil {
		return nil, err
	}
	im.observe(metrics.StageResolve, stageStart)
	im.logf("Output: %s (folder %s)", out.ModelPath, out.OutputFolder)

	stageStart = time.Now()
	im.logf("Loading FBX file: %s", modelSource)
	if err := im.conv.Convert(ctx, modelSource, out); err != nil {
		return nil, errors.Wrapf(err, "failed to convert %s", source)
	}
	im.observe(metrics.StageConvert, stageStart)
	if im.metrics != nil {
		im.metrics.AddOutputBytes(utils.FileSize(out.ModelPath))
	}

	stageStart = time.Now()
	sc, err := scene.Load(out.ModelPath, im.cfg.Animation)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to reload %s", out.ModelPath)
	}
	im.observe(metrics.StageReload, stageStart)
	im.logf("Loaded scene %q: %d nodes, %d animations", sc.Name, sc.NodeCount(), len(sc.Animations))

	res := &Result{RunID: runID, Source: source, Output: out, Scene: sc}
	if im.publisher != nil {
		stageStart = time.Now()
		keys, err := im.publisher.Publish(ctx, out, runID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to publish %s", out.ModelPath)
		}
		im.observe(metrics.StagePublish, stageStart)
		res.Uploaded = keys
		im.logf("Uploaded %d objects", len(keys))
	}
	return res, nil
}

func (im *Importer) observe(stage string, start time.Time) {
	if im.metrics != nil {
		im.metrics.ObserveStage(stage, time.Since(start))
	}
}

func (im *Importer) logf(format string, args ...interface{}) {
	if im.cfg.Verbose {
		log.Printf(format, args...)
	}
}
