package binary

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// selfCheckTimeout bounds "cook --version".
const selfCheckTimeout = 30 * time.Second

// Verifier handles integrity checks and the executable self check.
type Verifier struct {
	// keyringPath points at an OpenPGP public keyring; empty disables
	// signature verification.
	keyringPath string
}

// NewVerifier creates a new verifier
func NewVerifier(keyringPath string) *Verifier {
	return &Verifier{keyringPath: keyringPath}
}

// SignatureEnabled reports whether a keyring was configured.
func (v *Verifier) SignatureEnabled() bool {
	return v.keyringPath != ""
}

// verifyGPG verifies a file using a detached signature, armored or binary.
func (v *Verifier) verifyGPG(filePath, signaturePath string) error {
	keyring, err := loadKeyring(v.keyringPath)
	if err != nil {
		return fmt.Errorf("load keyring: %w", err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sigFile.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, file, sigFile, nil)
	if err != nil {
		// Try non-armored signature
		file.Seek(0, io.SeekStart)
		sigFile.Seek(0, io.SeekStart)
		_, err = openpgp.CheckDetachedSignature(keyring, file, sigFile, nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}

	return nil
}

// verifySHA256 verifies a file against its entry in a checksum file.
func (v *Verifier) verifySHA256(filePath, checksumPath, artifactName string) error {
	actualChecksum, err := calculateSHA256(filePath)
	if err != nil {
		return fmt.Errorf("calculate checksum: %w", err)
	}

	expectedChecksum, err := findChecksum(checksumPath, artifactName)
	if err != nil {
		return fmt.Errorf("find checksum: %w", err)
	}

	if !strings.EqualFold(actualChecksum, expectedChecksum) {
		return fmt.Errorf("checksum mismatch:\nactual:   %s\nexpected: %s",
			actualChecksum, expectedChecksum)
	}

	return nil
}

// SelfCheck runs "<exePath> --version" and returns the first line of its
// output. A non-zero exit, a timeout or an executable that cannot be
// started wraps ErrVerification: the artifact is corrupt or built for
// another architecture.
func (v *Verifier) SelfCheck(ctx context.Context, exePath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, selfCheckTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, exePath, "--version")
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}

	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %s --version exited with status %d: %s",
				ErrVerification, filepath.Base(exePath), exitErr.ExitCode(), strings.TrimSpace(string(out)))
		}
		return "", fmt.Errorf("%w: run %s --version: %v", ErrVerification, filepath.Base(exePath), err)
	}

	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	return line, nil
}

// calculateSHA256 calculates the SHA256 checksum of a file
func calculateSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// findChecksum finds the checksum for a specific filename in a checksum file
// Format: "abc123def456  filename.tar.gz" (a leading "*" marks binary mode)
func findChecksum(checksumPath, filename string) (string, error) {
	file, err := os.Open(checksumPath)
	if err != nil {
		return "", fmt.Errorf("open checksum file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		checksumFilename := strings.TrimPrefix(parts[1], "*")
		if checksumFilename == filename || filepath.Base(checksumFilename) == filename {
			return parts[0], nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan checksum file: %w", err)
	}

	return "", fmt.Errorf("checksum not found for %s", filename)
}
