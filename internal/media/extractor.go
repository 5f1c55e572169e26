// Package media turns uploaded video into a small speech-ready audio track.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"media-insights-go/internal/logger"
	"media-insights-go/internal/types"
)

// ExtractionError wraps any failure while producing the audio track.
type ExtractionError struct {
	FileName string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract audio from %q: %v", e.FileName, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// AudioExtractor strips video from an upload using scoped scratch files.
type AudioExtractor struct {
	transcoder Transcoder
	scratchDir string
	opts       AudioOptions
	log        *logrus.Entry
}

func NewAudioExtractor(t Transcoder, scratchDir string) *AudioExtractor {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &AudioExtractor{
		transcoder: t,
		scratchDir: scratchDir,
		opts:       SpeechMP3,
		log:        logger.Component("audio-extractor"),
	}
}

// Extract writes the video to a uniquely named scratch file, transcodes it
// to mono 16 kHz 64 kbps MP3 and returns the audio bytes. Both scratch
// files are removed on every exit path, panics included.
func (e *AudioExtractor) Extract(ctx context.Context, video []byte, fileName string) (out types.ExtractionOutcome, err error) {
	id := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		ext = ".mp4"
	}
	inputPath := filepath.Join(e.scratchDir, "video-"+id+ext)
	outputPath := filepath.Join(e.scratchDir, "audio-"+id+".mp3")

	defer removeScratch(e.log, inputPath)
	defer removeScratch(e.log, outputPath)

	log := e.log.WithFields(logrus.Fields{"file_name": fileName, "scratch_id": id})

	if err := os.WriteFile(inputPath, video, 0o600); err != nil {
		return out, &ExtractionError{FileName: fileName, Err: fmt.Errorf("write scratch input: %w", err)}
	}

	log.WithField("input_size", humanize.IBytes(uint64(len(video)))).Info("transcoding video to speech audio")
	if err := e.transcoder.Transcode(ctx, inputPath, outputPath, e.opts); err != nil {
		log.WithError(err).Warn("transcode failed")
		return out, &ExtractionError{FileName: fileName, Err: err}
	}

	audio, err := os.ReadFile(outputPath)
	if err != nil {
		return out, &ExtractionError{FileName: fileName, Err: fmt.Errorf("read scratch output: %w", err)}
	}
	if len(audio) == 0 {
		return out, &ExtractionError{FileName: fileName, Err: errors.New("transcoder produced empty audio")}
	}

	log.WithFields(logrus.Fields{
		"input_bytes":      len(video),
		"output_bytes":     len(audio),
		"output_size":      humanize.IBytes(uint64(len(audio))),
		"extraction_ratio": Ratio(len(video), len(audio)),
	}).Info("audio extracted")

	return types.ExtractionOutcome{
		AudioBytes:     audio,
		Extracted:      true,
		SourceFileName: audioName(fileName),
	}, nil
}

// audioName swaps the upload's extension for .mp3, defaulting the stem to
// "audio" when the name is blank.
func audioName(fileName string) string {
	base := filepath.Base(strings.TrimSpace(fileName))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if base == "." || base == string(filepath.Separator) || stem == "" || stem == "." {
		stem = "audio"
	}
	return stem + ".mp3"
}

// Ratio is extracted size over original size, for observability only.
func Ratio(original, extracted int) float64 {
	if original <= 0 {
		return 0
	}
	return float64(extracted) / float64(original)
}

func removeScratch(log *logrus.Entry, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithField("path", path).WithField("error", err.Error()).Warn("remove scratch file")
	}
}
