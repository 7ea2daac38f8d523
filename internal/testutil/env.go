// Package testutil provides utilities for testing cookship in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// isolatedEnv lists variables that change cookship behaviour.
var isolatedEnv = []string{
	"COOKSHIP_CONFIG",
	"VERSION",
	"IMAGE",
	"GITHUB_TOKEN",
	"REGISTRY_AUTH_FILE",
}

// SetupTestEnv isolates a test from the developer's environment. The
// cookship variables are cleared and DOCKER_CONFIG and XDG_RUNTIME_DIR
// point at empty directories so no cached registry credentials are found.
// TMPDIR and the working directory are fresh temp dirs; the working
// directory is returned.
//
// Cleanup is handled by t.TempDir, t.Setenv and t.Chdir.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	for _, name := range isolatedEnv {
		t.Setenv(name, "")
	}

	dockerConfig := filepath.Join(tmpDir, "docker-config")
	if err := os.MkdirAll(dockerConfig, 0o750); err != nil {
		t.Fatalf("failed to create test directory %s: %v", dockerConfig, err)
	}
	t.Setenv("DOCKER_CONFIG", dockerConfig)
	t.Setenv("XDG_RUNTIME_DIR", filepath.Join(tmpDir, "run"))

	scratch := filepath.Join(tmpDir, "tmp")
	if err := os.MkdirAll(scratch, 0o750); err != nil {
		t.Fatalf("failed to create test directory %s: %v", scratch, err)
	}
	t.Setenv("TMPDIR", scratch)

	workDir := filepath.Join(tmpDir, "work")
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		t.Fatalf("failed to create test directory %s: %v", workDir, err)
	}
	t.Chdir(workDir)

	return workDir
}
