// Package media prepares downloaded attachments for transcription:
// transcoding to the recognizer's target format and temp-file handling.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mpetrovs/scribebot/internal/common"
)

// TranscodeFunc converts a media file into recognizer-ready audio and
// returns the output path plus a cleanup function scoped to the call.
type TranscodeFunc func(ctx context.Context, srcPath string) (string, func(), error)

// TempFilePath returns a unique path in the system temp directory.
func TempFilePath(ext string) string {
	return filepath.Join(os.TempDir(), "scribebot-"+uuid.New().String()+ext)
}

// TranscodeToMP3 converts an arbitrary container/codec into MP3 at
// 192 kbit/s via ffmpeg. The returned cleanup removes the output file on
// a best-effort basis.
func TranscodeToMP3(ctx context.Context, srcPath string) (string, func(), error) {
	out := TempFilePath(".mp3")

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", srcPath, "-vn", "-codec:a", "libmp3lame", "-b:a", "192k", out)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", nil, fmt.Errorf("ffmpeg %s: %v: %s", srcPath, err, stderr.String())
	}

	return out, func() { Cleanup(out) }, nil
}

// Cleanup deletes a temporary file unless another process still holds it,
// in which case deletion is skipped. Not a hard guarantee.
func Cleanup(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if isLocked(path) {
		return
	}
	_ = os.Remove(path)
}

// isLocked probes the file with a self-rename, which fails on platforms
// that lock open files.
func isLocked(path string) bool {
	return os.Rename(path, path) != nil
}

// ReadContent reads a local file, mapping missing/unreadable files to
// common.ErrFileAccess.
func ReadContent(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %v", path, common.ErrFileAccess, err)
	}
	return data, nil
}
