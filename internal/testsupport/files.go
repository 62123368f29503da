package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with size bytes of filler, creating parent
// directories. A size <= 0 writes a single byte. Fake transcoders only check
// that inputs exist, so the content is irrelevant.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteClips creates one stub clip per name under dir/keyword, the layout
// footage.LocalClips reads, and returns dir.
func WriteClips(t testing.TB, dir, keyword string, names ...string) string {
	t.Helper()
	for _, name := range names {
		WriteFile(t, filepath.Join(dir, keyword, name), 16)
	}
	return dir
}
