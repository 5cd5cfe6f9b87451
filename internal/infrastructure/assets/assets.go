// Package assets locates GLB files on disk and checks their content type.
package assets

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
	"github.com/pkg/errors"

	"github.com/FreePeak/threejs-mcp-server/internal/domain"
)

// headerSize is the number of leading bytes read for type detection.
const headerSize = 261

// GLBType is the glTF binary container type registered with filetype.
var GLBType = filetype.NewType("glb", "model/gltf-binary")

// glbMagic is the ASCII "glTF" that opens every binary container.
var glbMagic = []byte{0x67, 0x6C, 0x54, 0x46}

func init() {
	filetype.AddMatcher(GLBType, matchGLB)
}

// matchGLB accepts container version 2, the only one three.js loads.
func matchGLB(buf []byte) bool {
	return len(buf) >= 8 && bytes.Equal(buf[:4], glbMagic) && buf[4] == 0x02
}

// Resolve joins dir and name and checks that the result exists and is a
// regular file. A missing file yields *domain.AssetNotFoundError.
func Resolve(dir, name string) (string, error) {
	full := filepath.Join(dir, name)
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return full, domain.NewAssetNotFoundError(full)
		}
		return full, errors.Wrapf(err, "failed to stat asset %s", full)
	}
	if info.IsDir() {
		return full, domain.NewAssetNotFoundError(full)
	}
	return full, nil
}

// IsGLB reports whether the file at path starts with a glTF binary header.
func IsGLB(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to open asset %s", path)
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, errors.Wrapf(err, "failed to read asset %s", path)
	}
	return filetype.IsType(head[:n], GLBType), nil
}

// Kind returns the detected MIME type of the file at path, or "" when unknown.
func Kind(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open asset %s", path)
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, _ := io.ReadFull(f, head)
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return "", nil
	}
	return kind.MIME.Value, nil
}
