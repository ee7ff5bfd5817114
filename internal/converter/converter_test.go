package converter

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/config"
	"github.com/leandrowiemesfilho/fbx2gltf/internal/output"
)

// writeScript writes a fake converter executable into a temp dir.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake converter scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-converter")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func resolved(t *testing.T, name string, binary bool) output.ResolvedOutput {
	t.Helper()
	out, err := output.Resolve(filepath.Join(t.TempDir(), name), binary)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return out
}

func TestSupportedSource(t *testing.T) {
	if ft, err := SupportedSource("/models/Hero.FBX"); err != nil || ft != FBX {
		t.Fatalf("fbx should be supported: ft=%s err=%v", ft, err)
	}
	if _, err := SupportedSource("/models/hero.obj"); err == nil {
		t.Fatalf("obj should not be supported")
	}
}

func TestGetConverter(t *testing.T) {
	opts := config.Default().Gltf

	conv, err := GetConverter(config.ConverterConfig{Backend: config.BackendFBX2glTF}, opts, false)
	if err != nil {
		t.Fatalf("GetConverter failed: %v", err)
	}
	if fc, ok := conv.(*FBX2glTF); !ok || fc.Binary != defaultFBX2glTFBinary {
		t.Fatalf("unexpected converter: %#v", conv)
	}

	conv, err = GetConverter(config.ConverterConfig{Backend: config.BackendAssimp, Binary: "/opt/assimp"}, opts, false)
	if err != nil {
		t.Fatalf("GetConverter failed: %v", err)
	}
	if ac, ok := conv.(*Assimp); !ok || ac.Binary != "/opt/assimp" {
		t.Fatalf("unexpected converter: %#v", conv)
	}

	if _, err := GetConverter(config.ConverterConfig{Backend: "blender"}, opts, false); err == nil {
		t.Fatalf("unknown backend should fail")
	}
}

func TestFBX2glTFArgs(t *testing.T) {
	opts := config.Default().Gltf
	conv := &FBX2glTF{Binary: "FBX2glTF", Options: opts}

	binaryOut := output.ResolvedOutput{OutputFolder: "/tmp/", ModelPath: "/tmp/model.glb"}
	want := []string{
		"--input", "/src/model.fbx", "--output", "/tmp/model.glb", "--binary",
		"--pbr-metallic-roughness", "--skinning-weights", "8", "--normalize-weights", "--compute-normals", "broken",
	}
	if diff := cmp.Diff(want, conv.args("/src/model.fbx", binaryOut)); diff != "" {
		t.Fatalf("binary args mismatch (-want +got):\n%s", diff)
	}

	textOut := output.ResolvedOutput{OutputFolder: "/tmp/model_out/", ModelPath: "/tmp/model_out/model.gltf"}
	got := conv.args("/src/model.fbx", textOut)
	if strings.Contains(strings.Join(got, " "), "--binary") {
		t.Fatalf("text output should not ask for binary: %v", got)
	}
	if !strings.Contains(strings.Join(got, " "), "--embed") {
		t.Fatalf("text output should embed resources: %v", got)
	}
}

func TestAssimpArgs(t *testing.T) {
	conv := &Assimp{Binary: "assimp", Options: config.GltfOptions{EmbedResources: true}}
	out := output.ResolvedOutput{OutputFolder: "/tmp/", ModelPath: "/tmp/model.glb"}

	want := []string{"export", "/src/model.fbx", "/tmp/model.glb", "-fglb2", "-embtex"}
	if diff := cmp.Diff(want, conv.args("/src/model.fbx", out)); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertWritesModel(t *testing.T) {
	script := writeScript(t, `
while [ $# -gt 0 ]; do
  if [ "$1" = "--output" ]; then shift; printf 'glTF' > "$1"; fi
  shift
done
`)
	out := resolved(t, "model", true)
	conv := &FBX2glTF{Binary: script, Options: config.Default().Gltf}

	if err := conv.Convert(context.Background(), "/src/model.fbx", out); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	data, err := os.ReadFile(out.ModelPath)
	if err != nil || string(data) != "glTF" {
		t.Fatalf("model not written: data=%q err=%v", data, err)
	}
}

func TestConvertFailureRemovesPartialModel(t *testing.T) {
	script := writeScript(t, `
printf 'partial' > "$3"
echo "ERROR:: Failed to parse FBX" >&2
exit 3
`)
	out := resolved(t, "model", true)
	conv := &Assimp{Binary: script}

	err := conv.Convert(context.Background(), "/src/model.fbx", out)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !strings.Contains(err.Error(), "Failed to parse FBX") {
		t.Fatalf("error should carry tool output: %v", err)
	}
	if _, statErr := os.Stat(out.ModelPath); !os.IsNotExist(statErr) {
		t.Fatalf("partial model should be removed: %v", statErr)
	}
}

func TestConvertMissingModel(t *testing.T) {
	script := writeScript(t, "exit 0\n")
	out := resolved(t, "model", false)
	conv := &FBX2glTF{Binary: script, Options: config.Default().Gltf}

	err := conv.Convert(context.Background(), "/src/model.fbx", out)
	if err == nil || !strings.Contains(err.Error(), "did not write") {
		t.Fatalf("expected missing model error, got %v", err)
	}
}

func TestConvertHonoursContext(t *testing.T) {
	script := writeScript(t, "exec sleep 5\n")
	out := resolved(t, "model", true)
	conv := &Assimp{Binary: script}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := conv.Convert(ctx, "/src/model.fbx", out)
	if err == nil || !strings.Contains(err.Error(), "interrupted") {
		t.Fatalf("expected interrupted error, got %v", err)
	}
}
