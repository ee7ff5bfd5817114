package output

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/leandrowiemesfilho/fbx2gltf/internal/utils"
)

const (
	BinarySuffix = "glb"
	TextSuffix   = "gltf"

	// textFolderSuffix names the directory created next to a bare candidate
	// when the model is written as .gltf with loose assets.
	textFolderSuffix = "_out"
)

// Request is one conversion request: where the source is, where the caller
// would like the result, and which container it prefers.
type Request struct {
	SourcePath          string
	OutputPathCandidate string
	PreferBinary        bool
}

// ResolvedOutput is the final output location. ModelPath always lies in
// OutputFolder and OutputFolder ends with a path separator.
type ResolvedOutput struct {
	OutputFolder string
	ModelPath    string
}

// Binary reports whether the model is written as a .glb container.
func (r ResolvedOutput) Binary() bool {
	return FileSuffix(r.ModelPath) == BinarySuffix
}

// DirectoryCreationError is returned when the output directory cannot be created.
type DirectoryCreationError struct {
	Path string
	Err  error
}

func (e *DirectoryCreationError) Error() string {
	return fmt.Sprintf("failed to create output directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryCreationError) Unwrap() error {
	return e.Err
}

// Resolve decides the output folder and model path for a candidate and
// creates the folder. An explicit .glb or .gltf suffix overrides
// preferBinary; any other candidate written as text gets its own
// "<candidate>_out" folder.
func Resolve(candidate string, preferBinary bool) (ResolvedOutput, error) {
	suffix := FileSuffix(candidate)
	binary := suffix == BinarySuffix || (preferBinary && suffix != TextSuffix)

	var res ResolvedOutput
	switch {
	case binary:
		res.OutputFolder = withSeparator(filepath.Dir(candidate))
		res.ModelPath = candidate
		if suffix != BinarySuffix {
			res.ModelPath = candidate + "." + BinarySuffix
		}
	case suffix == TextSuffix:
		res.OutputFolder = withSeparator(filepath.Dir(candidate))
		res.ModelPath = candidate
	default:
		res.OutputFolder = withSeparator(candidate + textFolderSuffix)
		res.ModelPath = res.OutputFolder + StripExtension(filepath.Base(candidate)) + "." + TextSuffix
	}

	dir := filepath.Dir(res.ModelPath)
	if err := utils.EnsureDir(dir); err != nil {
		return ResolvedOutput{}, &DirectoryCreationError{Path: dir, Err: err}
	}
	return res, nil
}

// OwnsFolder reports whether the output folder is the <name>_out directory
// Resolve creates for a text model, as opposed to a folder the caller named.
func OwnsFolder(r ResolvedOutput) bool {
	if r.Binary() || filepath.Dir(r.ModelPath)+string(filepath.Separator) != r.OutputFolder {
		return false
	}
	folder := filepath.Base(strings.TrimSuffix(r.OutputFolder, string(filepath.Separator)))
	return folder == StripExtension(filepath.Base(r.ModelPath))+textFolderSuffix
}

// DefaultCandidate builds the output candidate used when the caller gives
// none: <importDir>/<name>-<md5 of source path>.glb. The hash keeps sources
// with the same file name in different folders apart.
func DefaultCandidate(importDir, sourcePath string) string {
	sum := md5.Sum([]byte(sourcePath))
	name := StripExtension(filepath.Base(sourcePath)) + "-" + hex.EncodeToString(sum[:]) + "." + BinarySuffix
	return filepath.Join(importDir, name)
}

// FileSuffix returns the text after the last dot of the final path element,
// or "" when there is none.
func FileSuffix(path string) string {
	base := filepath.Base(path)
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return base[i+1:]
}

// StripExtension removes the last extension from a file name.
func StripExtension(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func withSeparator(dir string) string {
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		return dir
	}
	return dir + string(filepath.Separator)
}
