package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// maxStderrBytes caps how much ffmpeg diagnostic output is kept on failure.
const maxStderrBytes = 4096

// FFmpegConfig holds configuration for the FFmpeg transcoder.
type FFmpegConfig struct {
	// FFmpegPath is the path to the ffmpeg binary.
	// If empty, "ffmpeg" will be used (assumes it's in PATH).
	FFmpegPath string

	// StagingDir is the parent directory under which each transcoder
	// instance creates its private working directory.
	// Default: os.TempDir()
	StagingDir string

	// LogLevel is passed to ffmpeg's -loglevel flag.
	// Default: error
	LogLevel string
}

// DefaultFFmpegConfig returns an FFmpegConfig with production-ready defaults.
func DefaultFFmpegConfig() FFmpegConfig {
	return FFmpegConfig{
		FFmpegPath: "ffmpeg",
		StagingDir: os.TempDir(),
		LogLevel:   "error",
	}
}

// ExecError describes a failed ffmpeg invocation.
type ExecError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg exited with code %d: %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("ffmpeg exited with code %d: %s", e.ExitCode, e.Stderr)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// FFmpegTranscoder implements Transcoder using the FFmpeg CLI.
// Staged resources are plain files in a working directory owned by the instance,
// and ffmpeg runs with that directory as its working directory.
type FFmpegTranscoder struct {
	config  FFmpegConfig
	workDir string
}

// Compile-time verification that FFmpegTranscoder implements Transcoder.
var _ Transcoder = (*FFmpegTranscoder)(nil)

// NewFFmpegTranscoder creates a new FFmpeg-based transcoder with its own
// staging directory. Call Close to remove the directory.
func NewFFmpegTranscoder(cfg FFmpegConfig) (*FFmpegTranscoder, error) {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "error"
	}

	if err := os.MkdirAll(cfg.StagingDir, 0755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	workDir, err := os.MkdirTemp(cfg.StagingDir, "flipconvert-")
	if err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}

	return &FFmpegTranscoder{
		config:  cfg,
		workDir: workDir,
	}, nil
}

// WorkDir returns the instance's staging directory.
func (t *FFmpegTranscoder) WorkDir() string {
	return t.workDir
}

// WriteResource writes data to a file named name in the staging directory.
func (t *FFmpegTranscoder) WriteResource(ctx context.Context, name string, data []byte) error {
	path, err := t.resolve(name)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write resource %s: %w", name, err)
	}
	return nil
}

// Execute runs ffmpeg inside the staging directory and waits for completion.
func (t *FFmpegTranscoder) Execute(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, t.config.FFmpegPath, t.buildFFmpegArgs(args)...)
	cmd.Dir = t.workDir
	cmd.Stdout = nil // Discard stdout

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("transcoding cancelled: %w", ctx.Err())
		}

		execErr := &ExecError{ExitCode: -1, Stderr: tail(stderr.String(), maxStderrBytes), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			execErr.ExitCode = exitErr.ExitCode()
		}
		return execErr
	}

	return nil
}

// ReadResource reads the file named name from the staging directory.
func (t *FFmpegTranscoder) ReadResource(ctx context.Context, name string) ([]byte, error) {
	path, err := t.resolve(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, name)
		}
		return nil, fmt.Errorf("read resource %s: %w", name, err)
	}
	return data, nil
}

// DeleteResource removes the file named name. Missing files are not an error.
func (t *FFmpegTranscoder) DeleteResource(ctx context.Context, name string) error {
	path, err := t.resolve(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete resource %s: %w", name, err)
	}
	return nil
}

// Close removes the staging directory and everything left in it.
func (t *FFmpegTranscoder) Close() error {
	if err := os.RemoveAll(t.workDir); err != nil {
		return fmt.Errorf("remove work directory: %w", err)
	}
	return nil
}

// resolve maps a resource name to a path inside the staging directory.
// Names must be a single path element and must not read as an ffmpeg option.
func (t *FFmpegTranscoder) resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, "-") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidResourceName, name)
	}
	return filepath.Join(t.workDir, name), nil
}

// buildFFmpegArgs prefixes the job's argument list with global flags.
func (t *FFmpegTranscoder) buildFFmpegArgs(args []string) []string {
	full := []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", t.config.LogLevel,
		"-y", // Overwrite output files without asking
	}
	return append(full, args...)
}

// tail returns at most n trailing bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
