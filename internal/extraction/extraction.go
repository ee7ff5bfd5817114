package extraction

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/pkg/errors"

	"github.com/leandrowiemesfilho/fbx2gltf/internal/utils"
)

var archiveExtensions = map[string]bool{
	"zip": true, "rar": true, "7z": true, "tar": true, "gz": true, "tgz": true,
}

// IsArchive reports whether a source path looks like a model archive.
func IsArchive(path string) bool {
	return archiveExtensions[utils.Extension(path)]
}

// ExtractArchive extracts the contents of an archive to a temporary directory.
// The caller owns the returned directory and must remove it.
func ExtractArchive(ctx context.Context, archivePath string) ([]string, string, error) {
	destDir, err := os.MkdirTemp("", "fbx2gltf-extract-*")
	if err != nil {
		return nil, "", errors.Wrap(err, "could not create extraction directory")
	}

	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		os.RemoveAll(destDir)
		return nil, "", errors.Wrapf(err, "could not open archive %s", archivePath)
	}

	var files []string
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		reader, err := fsys.Open(path)
		if err != nil {
			return err
		}
		defer reader.Close()

		destPath := filepath.Join(destDir, filepath.FromSlash(path))
		if err := utils.EnsureDir(filepath.Dir(destPath)); err != nil {
			return err
		}

		outFile, err := os.Create(destPath)
		if err != nil {
			return err
		}
		defer outFile.Close()

		if _, err := io.Copy(outFile, reader); err != nil {
			return err
		}

		files = append(files, destPath)
		return nil
	})
	if err != nil {
		os.RemoveAll(destDir)
		return nil, "", errors.Wrapf(err, "could not extract archive %s", archivePath)
	}

	return files, destDir, nil
}

// FindModel picks the single file with the given extension out of an
// extracted archive.
func FindModel(files []string, ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	var found []string
	for _, f := range files {
		if utils.Extension(f) == ext {
			found = append(found, f)
		}
	}
	switch len(found) {
	case 0:
		return "", errors.Errorf("archive contains no .%s file", ext)
	case 1:
		return found[0], nil
	default:
		return "", errors.Errorf("archive contains %d .%s files, expected one", len(found), ext)
	}
}
