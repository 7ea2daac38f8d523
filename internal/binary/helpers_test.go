package binary

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
)

// tarEntry describes one file written into a test archive.
type tarEntry struct {
	name    string
	content string
	mode    int64
}

// createTestTarGz writes a tar.gz archive with the given entries and
// returns its path.
func createTestTarGz(t *testing.T, entries ...tarEntry) string {
	t.Helper()

	archivePath := filepath.Join(t.TempDir(), "test.tar.gz")

	archiveFile, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	defer func() { _ = archiveFile.Close() }()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer func() { _ = gzipWriter.Close() }()

	tarWriter := tar.NewWriter(gzipWriter)
	defer func() { _ = tarWriter.Close() }()

	for _, e := range entries {
		mode := e.mode
		if mode == 0 {
			mode = 0644
		}
		header := &tar.Header{
			Name:     e.name,
			Mode:     mode,
			Size:     int64(len(e.content)),
			Typeflag: tar.TypeReg,
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			t.Fatalf("failed to write header for %s: %v", e.name, err)
		}
		if _, err := tarWriter.Write([]byte(e.content)); err != nil {
			t.Fatalf("failed to write content for %s: %v", e.name, err)
		}
	}

	return archivePath
}

// fakeCook is a shell script standing in for the cook executable.
const fakeCook = "#!/bin/sh\necho \"cook 0.18.1\"\necho \"second line\"\n"

// brokenCook exits non-zero like a binary for the wrong architecture would.
const brokenCook = "#!/bin/sh\necho \"exec format error\" >&2\nexit 126\n"
