package plugin

import (
	"os"
	"path/filepath"
	"testing"
)

// emptyWasm is a valid Wasm 1.0 module with no sections.
var emptyWasm = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

const validManifest = `name: matroskaparser
version: 1.0.0
format: matroska
abi_version: 1
wasm:
  file: matroskaparser.wasm
capabilities:
  - tracks
  - chapters
  - tags
`

// writePlugin creates base/name with the given manifest and, when wasmFile is
// set, an empty module under that name.
func writePlugin(t *testing.T, base, name, manifest, wasmFile string) string {
	t.Helper()

	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	if wasmFile != "" {
		if err := os.WriteFile(filepath.Join(dir, wasmFile), emptyWasm, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}
