// Package inputs inspects generator input files before they are handed to
// an external generator.
package inputs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrInputMissing   = errors.New("inputs: file not found")
	ErrInputMalformed = errors.New("inputs: malformed yaml")
)

// Document summarizes a YAML input file.
type Document struct {
	Path   string
	Digest string
	// Keys are the top-level mapping keys in file order.
	Keys []string
	Size int64
}

// Inspect reads path and requires a YAML mapping at the document root.
func Inspect(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, fmt.Errorf("%w: %s", ErrInputMissing, path)
		}
		return Document{}, fmt.Errorf("inputs: read %s: %w", path, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Document{}, fmt.Errorf("%w: %s: %v", ErrInputMalformed, path, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return Document{}, fmt.Errorf("%w: %s: empty document", ErrInputMalformed, path)
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return Document{}, fmt.Errorf("%w: %s: root is not a mapping (line %d)", ErrInputMalformed, path, top.Line)
	}

	keys := make([]string, 0, len(top.Content)/2)
	for i := 0; i+1 < len(top.Content); i += 2 {
		keys = append(keys, top.Content[i].Value)
	}

	sum := sha256.Sum256(data)
	return Document{
		Path:   path,
		Digest: hex.EncodeToString(sum[:]),
		Keys:   keys,
		Size:   int64(len(data)),
	}, nil
}

// Digest hashes any file, e.g. a generator script.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrInputMissing, path)
		}
		return "", fmt.Errorf("inputs: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("inputs: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
