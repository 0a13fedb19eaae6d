package inputs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestInspectMapping(t *testing.T) {
	path := writeFile(t, "bms.yaml", `
module_name: bms
buses:
  - can0
parameters:
  cell_count: 144
`)
	doc, err := Inspect(path)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if diff := cmp.Diff([]string{"module_name", "buses", "parameters"}, doc.Keys); diff != "" {
		t.Fatalf("unexpected keys (-want +got):\n%s", diff)
	}
	if len(doc.Digest) != 64 {
		t.Fatalf("unexpected digest: %q", doc.Digest)
	}

	digest, err := Digest(path)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if digest != doc.Digest {
		t.Fatalf("digest mismatch: %s vs %s", digest, doc.Digest)
	}
}

func TestInspectRejectsNonMapping(t *testing.T) {
	for name, content := range map[string]string{
		"list.yaml":  "- a\n- b\n",
		"empty.yaml": "",
		"bad.yaml":   "key: [unclosed\n",
	} {
		path := writeFile(t, name, content)
		if _, err := Inspect(path); !errors.Is(err, ErrInputMalformed) {
			t.Fatalf("%s: expected ErrInputMalformed, got %v", name, err)
		}
	}
}

func TestInspectMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if _, err := Inspect(missing); !errors.Is(err, ErrInputMissing) {
		t.Fatalf("expected ErrInputMissing, got %v", err)
	}
	if _, err := Digest(missing); !errors.Is(err, ErrInputMissing) {
		t.Fatalf("expected ErrInputMissing from digest, got %v", err)
	}
}
