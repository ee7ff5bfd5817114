package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"

	"github.com/leandrowiemesfilho/fbx2gltf/internal/config"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/output"
)

type putCall struct {
	Bucket      string
	Key         string
	Body        string
	ContentType string
}

type fakePutter struct {
	calls  []putCall
	failOn string
}

func (f *fakePutter) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if objectName == f.failOn {
		return minio.UploadInfo{}, errors.New("connection reset")
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if int64(len(body)) != objectSize {
		return minio.UploadInfo{}, errors.Errorf("size mismatch: %d != %d", len(body), objectSize)
	}
	f.calls = append(f.calls, putCall{Bucket: bucketName, Key: objectName, Body: string(body), ContentType: opts.ContentType})
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, nil
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestPublishBinary(t *testing.T) {
	out, err := output.Resolve(filepath.Join(t.TempDir(), "hero"), true)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	writeFile(t, out.ModelPath, "glb")
	writeFile(t, filepath.Join(out.OutputFolder, "unrelated.txt"), "ignored")

	putter := &fakePutter{}
	p := NewPublisher(putter, config.StorageConfig{Bucket: "models", Prefix: "imports"}, nil)

	keys, err := p.Publish(context.Background(), out, "run-1")
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	want := []putCall{{Bucket: "models", Key: "imports/run-1/hero.glb", Body: "glb", ContentType: contentTypeGLB}}
	if diff := cmp.Diff(want, putter.calls); diff != "" {
		t.Fatalf("uploads mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"imports/run-1/hero.glb"}, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestPublishTextUploadsAssets(t *testing.T) {
	out, err := output.Resolve(filepath.Join(t.TempDir(), "hero"), false)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	writeFile(t, out.ModelPath, "{}")
	writeFile(t, filepath.Join(out.OutputFolder, "buffer.bin"), "bin")
	writeFile(t, filepath.Join(out.OutputFolder, "textures", "skin.png"), "png")
	writeFile(t, filepath.Join(out.OutputFolder, "notes.txt"), "skip")

	putter := &fakePutter{}
	p := NewPublisher(putter, config.StorageConfig{Bucket: "models"}, []string{"png", "jpg"})

	keys, err := p.Publish(context.Background(), out, "run-2")
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	want := []string{"run-2/buffer.bin", "run-2/hero.gltf", "run-2/textures/skin.png"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if putter.calls[1].ContentType != contentTypeGLTF {
		t.Fatalf("gltf content type = %q", putter.calls[1].ContentType)
	}
	if putter.calls[2].ContentType != "image/png" {
		t.Fatalf("png content type = %q", putter.calls[2].ContentType)
	}
}

func TestPublishExplicitGltfUploadsOnlyReferencedFiles(t *testing.T) {
	home := t.TempDir()
	out, err := output.Resolve(filepath.Join(home, "hero.gltf"), true)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	writeFile(t, out.ModelPath, `{
		"asset": {"version": "2.0"},
		"buffers": [{"uri": "hero.bin", "byteLength": 3}],
		"images": [
			{"uri": "textures/skin%20a.png"},
			{"uri": "data:image/png;base64,AAAA"},
			{"uri": "https://cdn.example.com/hair.png"}
		]
	}`)
	writeFile(t, filepath.Join(home, "hero.bin"), "bin")
	writeFile(t, filepath.Join(home, "textures", "skin a.png"), "png")
	writeFile(t, filepath.Join(home, "photos", "holiday.png"), "private")
	writeFile(t, filepath.Join(home, "other-project", "scene.gltf"), "{}")

	putter := &fakePutter{}
	p := NewPublisher(putter, config.StorageConfig{Bucket: "models"}, []string{"png", "jpg"})

	keys, err := p.Publish(context.Background(), out, "run")
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	want := []string{"run/hero.bin", "run/hero.gltf", "run/textures/skin a.png"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestPublishRejectsReferenceOutsideFolder(t *testing.T) {
	dir := t.TempDir()
	out, err := output.Resolve(filepath.Join(dir, "scenes", "hero.gltf"), false)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	writeFile(t, out.ModelPath, `{"asset": {"version": "2.0"}, "images": [{"uri": "../secret.png"}]}`)
	writeFile(t, filepath.Join(dir, "secret.png"), "private")

	putter := &fakePutter{}
	p := NewPublisher(putter, config.StorageConfig{Bucket: "models"}, nil)
	if _, err := p.Publish(context.Background(), out, "run"); err == nil {
		t.Fatalf("expected an error for a reference outside the output folder")
	}
	if len(putter.calls) != 0 {
		t.Fatalf("nothing should be uploaded: %+v", putter.calls)
	}
}

func TestPublishFailure(t *testing.T) {
	out, err := output.Resolve(filepath.Join(t.TempDir(), "hero.glb"), false)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	writeFile(t, out.ModelPath, "glb")

	p := NewPublisher(&fakePutter{failOn: "run-3/hero.glb"}, config.StorageConfig{Bucket: "models"}, nil)
	if _, err := p.Publish(context.Background(), out, "run-3"); err == nil {
		t.Fatalf("expected an upload error")
	}
}
