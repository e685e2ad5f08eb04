package service

import (
	"bytes"
	"math"
)

// =============================================================================
// Video Heuristic
// =============================================================================
//
// Frames are never decoded. The score comes from the byte length alone and
// is capped well below what the image path can reach:
//
//   confidence = min(60, 30 + (10 if size < 1 MiB))
//
// The container is sniffed from magic bytes for reporting only; it does not
// affect the score.
//
// =============================================================================

const (
	videoBaseScore     = 30.0
	videoSmallBonus    = 10.0
	videoMaxConfidence = 60.0
	bytesPerMB         = 1024 * 1024
)

// Video reason lines.
const (
	videoLimitedReason = "Video analysis: Limited analysis performed (frame extraction recommended for deeper analysis)"
	videoSmallReason   = "Unusually small file size may indicate generated content"
	videoAdviceReason  = "For accurate video detection, frame-by-frame analysis with ML models is recommended"
)

// VideoAnalyzer applies the size heuristic to encoded video bytes.
type VideoAnalyzer struct{}

// NewVideoAnalyzer creates a new analyzer.
func NewVideoAnalyzer() *VideoAnalyzer {
	return &VideoAnalyzer{}
}

// VideoAnalysisResult contains analysis results.
type VideoAnalysisResult struct {
	Confidence float64
	Reasoning  []string

	// SizeMB is the byte length in MiB
	SizeMB float64

	// Container is the sniffed container: mp4, mov, webm, mkv, ogg, avi or unknown
	Container string
}

// Analyze never fails; it only measures the buffer.
func (a *VideoAnalyzer) Analyze(data []byte) VideoAnalysisResult {
	result := VideoAnalysisResult{
		SizeMB:    float64(len(data)) / bytesPerMB,
		Container: detectVideoFormat(data),
		Reasoning: []string{videoLimitedReason},
	}

	score := 0.0
	if result.SizeMB < 1 {
		score += videoSmallBonus
		result.Reasoning = append(result.Reasoning, videoSmallReason)
	}
	result.Reasoning = append(result.Reasoning, videoAdviceReason)

	result.Confidence = math.Min(videoMaxConfidence, score+videoBaseScore)
	return result
}

// detectVideoFormat identifies the container from magic bytes.
func detectVideoFormat(data []byte) string {
	if len(data) < 12 {
		return "unknown"
	}

	// MP4/MOV: ftyp box at offset 4, brand decides
	if bytes.Equal(data[4:8], []byte("ftyp")) {
		if string(data[8:12]) == "qt  " {
			return "mov"
		}
		return "mp4"
	}

	// QuickTime files without ftyp start with a moov/mdat/wide atom
	switch string(data[4:8]) {
	case "moov", "mdat", "wide", "free":
		return "mov"
	}

	// WebM/MKV: EBML header (1A 45 DF A3)
	if data[0] == 0x1A && data[1] == 0x45 && data[2] == 0xDF && data[3] == 0xA3 {
		if bytes.Contains(data[:min(100, len(data))], []byte("webm")) {
			return "webm"
		}
		return "mkv"
	}

	// Ogg: OggS capture pattern
	if bytes.HasPrefix(data, []byte("OggS")) {
		return "ogg"
	}

	// AVI: RIFF....AVI
	if bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("AVI ")) {
		return "avi"
	}

	return "unknown"
}
