package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// AudioOptions configures an audio-only transcode.
type AudioOptions struct {
	Codec      string // ffmpeg encoder name
	Bitrate    string
	Channels   int
	SampleRate int
}

// SpeechMP3 is the mono 16 kHz 64 kbps MP3 profile sent to transcription.
var SpeechMP3 = AudioOptions{
	Codec:      "libmp3lame",
	Bitrate:    "64k",
	Channels:   1,
	SampleRate: 16000,
}

// Transcoder converts an input media file into an audio-only output file.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string, opts AudioOptions) error
}

// FFmpeg runs an ffmpeg binary.
type FFmpeg struct {
	Binary string
}

func (f FFmpeg) Transcode(ctx context.Context, inputPath, outputPath string, opts AudioOptions) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-vn",
		"-sn",
		"-dn",
		"-acodec", opts.Codec,
		"-b:a", opts.Bitrate,
		"-ac", fmt.Sprintf("%d", opts.Channels),
		"-ar", fmt.Sprintf("%d", opts.SampleRate),
		outputPath,
	}
	cmd := exec.CommandContext(ctx, f.Binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// unavailable is installed when no transcoder binary could be resolved, so
// passthrough-sized uploads keep working.
type unavailable struct {
	reason string
}

func (u unavailable) Transcode(context.Context, string, string, AudioOptions) error {
	return errors.New("no transcoder available: " + u.reason)
}

// Platform keys the bundled-binary table.
type Platform struct {
	OS   string
	Arch string
}

// bundledBinaries maps a platform to the file name of the ffmpeg build
// shipped for it under the bundle directory.
var bundledBinaries = map[Platform]string{
	{"linux", "amd64"}:   "ffmpeg-linux-x64",
	{"linux", "arm64"}:   "ffmpeg-linux-arm64",
	{"linux", "arm"}:     "ffmpeg-linux-arm",
	{"linux", "386"}:     "ffmpeg-linux-ia32",
	{"darwin", "amd64"}:  "ffmpeg-darwin-x64",
	{"darwin", "arm64"}:  "ffmpeg-darwin-arm64",
	{"windows", "amd64"}: "ffmpeg-win32-x64.exe",
	{"windows", "386"}:   "ffmpeg-win32-ia32.exe",
}

// Resolution describes which binary was chosen and why.
type Resolution struct {
	Transcoder Transcoder
	Binary     string
	Source     string // "configured", "bundled", "sidecar", "system" or "none"
	Detail     string
}

// ResolveOptions are the inputs to ResolveTranscoder.
type ResolveOptions struct {
	ExplicitPath string
	BundleDir    string
	Platform     Platform
	// Executable is the running binary path, used to find a sidecar ffmpeg.
	Executable string
}

// CurrentPlatform returns the platform this process runs on.
func CurrentPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// ResolveTranscoder picks the ffmpeg binary once, at startup. Order:
// explicit path, bundled build for the platform, sidecar next to the
// executable, then ffmpeg from PATH.
func ResolveTranscoder(opts ResolveOptions) Resolution {
	if p := strings.TrimSpace(opts.ExplicitPath); p != "" {
		if resolved, err := exec.LookPath(p); err == nil {
			return Resolution{Transcoder: FFmpeg{Binary: resolved}, Binary: resolved, Source: "configured"}
		}
		return Resolution{
			Transcoder: unavailable{reason: fmt.Sprintf("configured ffmpeg %q not executable", p)},
			Source:     "none",
			Detail:     fmt.Sprintf("configured ffmpeg %q not executable", p),
		}
	}

	if name, ok := bundledBinaries[opts.Platform]; ok && opts.BundleDir != "" {
		candidate := filepath.Join(opts.BundleDir, name)
		if isExecutable(candidate, opts.Platform.OS) {
			return Resolution{Transcoder: FFmpeg{Binary: candidate}, Binary: candidate, Source: "bundled"}
		}
	}

	if opts.Executable != "" {
		name := "ffmpeg"
		if opts.Platform.OS == "windows" {
			name += ".exe"
		}
		candidate := filepath.Join(filepath.Dir(opts.Executable), name)
		if isExecutable(candidate, opts.Platform.OS) {
			return Resolution{Transcoder: FFmpeg{Binary: candidate}, Binary: candidate, Source: "sidecar"}
		}
	}

	if resolved, err := exec.LookPath("ffmpeg"); err == nil {
		return Resolution{Transcoder: FFmpeg{Binary: resolved}, Binary: resolved, Source: "system"}
	}

	detail := fmt.Sprintf("no bundled ffmpeg for %s/%s and none on PATH", opts.Platform.OS, opts.Platform.Arch)
	return Resolution{Transcoder: unavailable{reason: detail}, Source: "none", Detail: detail}
}

func isExecutable(path, goos string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if goos == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
