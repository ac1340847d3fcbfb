package fetch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/Jorge5452/Melodify-Deezer/logger"
)

// bitrateFlag maps the numeric quality setting to the downloader's bitrate
// argument: 1 = MP3 128, 3 = MP3 320, 9 = FLAC.
func bitrateFlag(bitrate int) string {
	switch bitrate {
	case 1:
		return "128"
	case 9:
		return "flac"
	default:
		return "320"
	}
}

// DeemixMaterializer materializes audio by shelling out to the deemix CLI.
type DeemixMaterializer struct {
	binPath string
	arl     string
}

// NewDeemixMaterializer wraps the deemix binary at binPath. The ARL is the
// single shared upstream credential.
func NewDeemixMaterializer(binPath, arl string) *DeemixMaterializer {
	return &DeemixMaterializer{binPath: binPath, arl: arl}
}

// EnsureLogin writes the ARL where the downloader expects it and fails when
// the credential is absent, so startup can fail fast instead of the first
// request failing slowly.
func (d *DeemixMaterializer) EnsureLogin() error {
	if d.arl == "" {
		return fmt.Errorf("deezer ARL not configured")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return fmt.Errorf("locating config directory: %w", err)
	}
	arlDir := filepath.Join(configDir, "deemix")
	if err := os.MkdirAll(arlDir, 0700); err != nil {
		return fmt.Errorf("creating deemix config directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(arlDir, ".arl"), []byte(d.arl), 0600); err != nil {
		return fmt.Errorf("writing ARL: %w", err)
	}
	return nil
}

// Materialize downloads the reference into destDir at the requested quality.
func (d *DeemixMaterializer) Materialize(ctx context.Context, reference string, bitrate int, destDir string) error {
	args := []string{
		"--path", destDir,
		"--bitrate", bitrateFlag(bitrate),
		reference,
	}

	cmd := exec.CommandContext(ctx, d.binPath, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logger.Debug("running downloader",
		logger.String("bin", d.binPath),
		logger.String("reference", reference),
		logger.String("bitrate", bitrateFlag(bitrate)))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("downloader interrupted: %w", ctx.Err())
		}
		return fmt.Errorf("downloader failed: %w (output: %s)", err, tail(output.String(), 500))
	}
	return nil
}

// tail returns at most n trailing bytes of s, for error messages.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
