// Package strategy decides how an uploaded file reaches the transcription
// backend based on its size and type.
package strategy

import (
	"path/filepath"
	"strings"
)

const (
	// TranscribeLimit is the hosted speech-to-text upload ceiling. It is an
	// external constraint, not a tunable.
	TranscribeLimit int64 = 25 * 1024 * 1024
	// MaxProcessable is the largest file the pipeline accepts at all.
	MaxProcessable int64 = 500 * 1024 * 1024
	// FallbackLimit bounds the direct-transcription retry after a failed
	// extraction.
	FallbackLimit int64 = 2 * TranscribeLimit
)

type Strategy string

const (
	Passthrough           Strategy = "PASSTHROUGH"
	ExtractThenTranscribe Strategy = "EXTRACT_THEN_TRANSCRIBE"
	Reject                Strategy = "REJECT"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".m4v": true, ".mov": true, ".webm": true,
	".mkv": true, ".avi": true, ".wmv": true, ".mpeg": true, ".mpg": true,
}

// Select maps a byte size and MIME type to a processing strategy. It is
// total over all sizes; negative sizes behave like zero.
func Select(sizeBytes int64, fileType string) Strategy {
	return decide(sizeBytes, IsVideo(fileType, ""))
}

// SelectFile is Select with the file name used to recognise video when the
// MIME type is missing or generic.
func SelectFile(sizeBytes int64, fileType, fileName string) Strategy {
	return decide(sizeBytes, IsVideo(fileType, fileName))
}

func decide(sizeBytes int64, video bool) Strategy {
	switch {
	case sizeBytes > MaxProcessable:
		return Reject
	case sizeBytes <= TranscribeLimit:
		return Passthrough
	case video:
		return ExtractThenTranscribe
	default:
		// audio cannot be shrunk further by this pipeline
		return Reject
	}
}

// IsVideo reports whether the MIME type (or, when the type is missing or
// generic, the file name's extension) denotes a video container.
func IsVideo(fileType, fileName string) bool {
	ft := strings.ToLower(strings.TrimSpace(fileType))
	if strings.HasPrefix(ft, "video/") {
		return true
	}
	if ft != "" && ft != "application/octet-stream" {
		return false
	}
	return videoExtensions[strings.ToLower(filepath.Ext(fileName))]
}
