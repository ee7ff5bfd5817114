package storage

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/leandrowiemesfilho/fbx2gltf/internal/config"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/output"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/utils"
)

const (
	contentTypeGLB    = "model/gltf-binary"
	contentTypeGLTF   = "model/gltf+json"
	contentTypeBinary = "application/octet-stream"
)

// ObjectPutter is the part of *minio.Client the publisher needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher uploads converted models to a bucket.
type Publisher struct {
	Client ObjectPutter
	Bucket string
	Prefix string

	// AssetTypes lists the extensions, besides .gltf and .bin, uploaded
	// from an output folder the resolver created for a text model.
	AssetTypes []string
}

// NewPublisher creates a publisher for the configured bucket.
func NewPublisher(client ObjectPutter, cfg config.StorageConfig, assetTypes []string) *Publisher {
	return &Publisher{Client: client, Bucket: cfg.Bucket, Prefix: cfg.Prefix, AssetTypes: assetTypes}
}

// Publish uploads a converted model and returns the object keys written. A
// .glb is uploaded alone. A .gltf is uploaded with the buffers and images it
// references, plus the assets of a <name>_out folder the resolver created.
// Keys are <prefix>/<runID>/<path relative to the output folder>.
func (p *Publisher) Publish(ctx context.Context, out output.ResolvedOutput, runID string) ([]string, error) {
	files, err := p.filesFor(out)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(files))
	for _, file := range files {
		rel, err := filepath.Rel(out.OutputFolder, file)
		if err != nil {
			return keys, errors.Wrapf(err, "file %s is outside %s", file, out.OutputFolder)
		}
		key := path.Join(p.Prefix, runID, filepath.ToSlash(rel))
		if err := p.put(ctx, file, key); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (p *Publisher) filesFor(out output.ResolvedOutput) ([]string, error) {
	if out.Binary() {
		return []string{out.ModelPath}, nil
	}

	seen := map[string]bool{out.ModelPath: true}
	refs, err := referencedFiles(out)
	if err != nil {
		return nil, err
	}
	for _, file := range refs {
		seen[file] = true
	}
	if output.OwnsFolder(out) {
		assets, err := p.folderAssets(out.OutputFolder)
		if err != nil {
			return nil, err
		}
		for _, file := range assets {
			seen[file] = true
		}
	}

	files := make([]string, 0, len(seen))
	for file := range seen {
		files = append(files, file)
	}
	sort.Strings(files)
	return files, nil
}

// referencedFiles lists the external buffers and images a .gltf points at.
// Embedded data URIs and remote URLs are skipped; a reference that leaves the
// output folder is an error.
func referencedFiles(out output.ResolvedOutput) ([]string, error) {
	data, err := os.ReadFile(out.ModelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", out.ModelPath)
	}
	var doc gltf.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "could not parse %s", out.ModelPath)
	}

	var uris []string
	for _, b := range doc.Buffers {
		uris = append(uris, b.URI)
	}
	for _, img := range doc.Images {
		uris = append(uris, img.URI)
	}

	modelDir := filepath.Dir(out.ModelPath)
	var files []string
	for _, uri := range uris {
		if uri == "" || strings.HasPrefix(uri, "data:") {
			continue
		}
		u, err := url.Parse(uri)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid uri %q in %s", uri, out.ModelPath)
		}
		if u.Scheme != "" || u.Host != "" {
			continue
		}
		file := filepath.Join(modelDir, filepath.FromSlash(u.Path))
		rel, err := filepath.Rel(out.OutputFolder, file)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, errors.Errorf("%s references %q outside %s", out.ModelPath, uri, out.OutputFolder)
		}
		files = append(files, file)
	}
	return files, nil
}

func (p *Publisher) folderAssets(folder string) ([]string, error) {
	allowed := map[string]bool{output.TextSuffix: true, "bin": true}
	for _, ext := range p.AssetTypes {
		allowed[ext] = true
	}
	var files []string
	err := filepath.WalkDir(folder, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !allowed[utils.Extension(file)] {
			return nil
		}
		files = append(files, file)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", folder)
	}
	return files, nil
}

func (p *Publisher) put(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return errors.Wrapf(err, "could not open %s", file)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "could not stat %s", file)
	}
	_, err = p.Client.PutObject(ctx, p.Bucket, key, f, stat.Size(), minio.PutObjectOptions{ContentType: contentType(file)})
	if err != nil {
		return errors.Wrapf(err, "failed to upload %s", key)
	}
	return nil
}

func contentType(file string) string {
	switch ext := utils.Extension(file); ext {
	case output.BinarySuffix:
		return contentTypeGLB
	case output.TextSuffix:
		return contentTypeGLTF
	default:
		if t := mime.TypeByExtension("." + ext); t != "" {
			return t
		}
		return contentTypeBinary
	}
}
