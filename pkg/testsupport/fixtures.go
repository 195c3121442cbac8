package testsupport

import (
	"embed"
	"encoding/json"
	"path"
	"testing"
)

//go:embed testdata/*.json
var fixtures embed.FS

// ReadFixture returns the raw bytes of an embedded testdata file, e.g. "u1.json".
func ReadFixture(t testing.TB, name string) []byte {
	t.Helper()

	data, err := fixtures.ReadFile(path.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

// DecodeFixture unmarshals an embedded JSON testdata file into dest.
func DecodeFixture(t testing.TB, name string, dest any) {
	t.Helper()

	if err := json.Unmarshal(ReadFixture(t, name), dest); err != nil {
		t.Fatalf("failed to decode fixture %s: %v", name, err)
	}
}
