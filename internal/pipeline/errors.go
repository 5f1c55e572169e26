package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"media-insights-go/internal/strategy"
)

// Kind classifies pipeline failures so callers can branch without
// matching on messages.
type Kind string

const (
	KindInvalidRequest       Kind = "InvalidRequest"
	KindDownloadFailed       Kind = "DownloadFailed"
	KindSizeExceeded         Kind = "SizeExceeded"
	KindExtractionFailed     Kind = "ExtractionFailed"
	KindNoSpeech             Kind = "NoSpeechDetected"
	KindTranscriptionBackend Kind = "TranscriptionBackendError"
	KindSegmentPersistence   Kind = "SegmentPersistenceError"
	KindAnalysisBackend      Kind = "AnalysisBackendError"
)

// Error is the only error type Run returns.
type Error struct {
	Kind        Kind
	Message     string
	Remediation string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func size(n int64) string { return humanize.IBytes(uint64(n)) }

// sizeExceeded explains why the file was refused and how to shrink it.
func sizeExceeded(n int64, fileName, fileType string, video bool) *Error {
	var msg string
	switch {
	case n > strategy.MaxProcessable:
		msg = fmt.Sprintf("%s is %s; the largest file this pipeline accepts is %s",
			displayName(fileName), size(n), size(strategy.MaxProcessable))
	case isAudio(fileType, fileName):
		msg = fmt.Sprintf("%s is %s of audio; audio files must be %s or smaller because only video can be shrunk here",
			displayName(fileName), size(n), size(strategy.TranscribeLimit))
	default:
		msg = fmt.Sprintf("%s is %s and not a video; non-video files must be %s or smaller because only video can be shrunk here",
			displayName(fileName), size(n), size(strategy.TranscribeLimit))
	}
	return &Error{
		Kind:        KindSizeExceeded,
		Message:     msg,
		Remediation: remediation(fileName, video),
	}
}

func extractionFailed(n int64, fileName string, err error) *Error {
	return &Error{
		Kind: KindExtractionFailed,
		Message: fmt.Sprintf("could not extract an audio track from %s (%s)",
			displayName(fileName), size(n)),
		Remediation: remediation(fileName, true),
		Err:         err,
	}
}

// remediation returns copy-pasteable commands with target sizes.
func remediation(fileName string, video bool) string {
	in := fileName
	if in == "" {
		in = "input.mp4"
	}
	base := strings.TrimSuffix(in, extOf(in))
	var b strings.Builder
	if video {
		fmt.Fprintf(&b, "Extract the audio yourself and upload the MP3 (target: under %s):\n", size(strategy.TranscribeLimit))
		fmt.Fprintf(&b, "  ffmpeg -i %q -vn -ac 1 -ar 16000 -b:a 64k %q\n", in, base+".mp3")
		fmt.Fprintf(&b, "Or re-encode the video to under %s:\n", size(strategy.MaxProcessable))
		fmt.Fprintf(&b, "  HandBrakeCLI -i %q -o %q --preset \"Fast 720p30\"\n", in, base+"-720p.mp4")
		fmt.Fprintf(&b, "  ffmpeg -i %q -vf scale=-2:720 -c:v libx264 -crf 28 -c:a aac -b:a 96k %q", in, base+"-720p.mp4")
		return b.String()
	}
	fmt.Fprintf(&b, "Re-encode the audio as mono speech-quality MP3 (target: under %s):\n", size(strategy.TranscribeLimit))
	fmt.Fprintf(&b, "  ffmpeg -i %q -ac 1 -ar 16000 -b:a 64k %q\n", in, base+"-speech.mp3")
	b.WriteString("Or split long recordings into 30 minute parts and upload each:\n")
	fmt.Fprintf(&b, "  ffmpeg -i %q -f segment -segment_time 1800 -c copy %q", in, base+"-part%03d"+extOf(in))
	return b.String()
}

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".aac": true,
	".ogg": true, ".oga": true, ".opus": true, ".flac": true,
}

func isAudio(fileType, fileName string) bool {
	ft := strings.ToLower(strings.TrimSpace(fileType))
	if strings.HasPrefix(ft, "audio/") {
		return true
	}
	if ft != "" && ft != "application/octet-stream" {
		return false
	}
	return audioExtensions[strings.ToLower(extOf(fileName))]
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 && !strings.ContainsAny(name[i:], `/\`) {
		return name[i:]
	}
	return ""
}

func displayName(fileName string) string {
	if fileName == "" {
		return "the file"
	}
	return fmt.Sprintf("%q", fileName)
}
