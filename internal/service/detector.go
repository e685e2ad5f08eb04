// Package service implements the heuristic scoring engine.
//
// The Detector interface abstracts the detection process so the HTTP
// handlers and the CLI can be tested against fakes.
//
// Detection flow:
//  1. Determine the media kind from the declared MIME type
//  2. Image: read container metadata, decode, run the five analyses, aggregate
//  3. Video: apply the size heuristic
//  4. Return the verdict; image failures degrade to a neutral verdict
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"mime"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aidetector/aidetector/internal/imaging"
	"github.com/aidetector/aidetector/pkg/logger"
)

// MediaKind is the verdict's file type.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// MaxUploadSize is the default upload ceiling enforced by callers (50 MiB).
const MaxUploadSize int64 = 50 * 1024 * 1024

// NeutralConfidence is reported when image analysis cannot complete.
const NeutralConfidence = 50

const degradedReason = "Unable to complete full analysis due to processing error"

// Accepted MIME types. Anything else is rejected by the caller.
var (
	AcceptedImageTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif"}
	AcceptedVideoTypes = []string{"video/mp4", "video/webm", "video/ogg", "video/quicktime"}
)

// DetectionInput represents input to the detection system.
type DetectionInput struct {
	// Data is the encoded media
	Data []byte

	// MIMEType is the declared type, e.g. image/png
	MIMEType string

	// FileName is echoed back in the verdict
	FileName string
}

// Verdict is the public detection record.
type Verdict struct {
	IsAIGenerated bool      `json:"isAiGenerated" yaml:"isAiGenerated"`
	Confidence    int       `json:"confidence" yaml:"confidence"`
	Reasoning     []string  `json:"reasoning" yaml:"reasoning"`
	FileName      string    `json:"fileName" yaml:"fileName"`
	FileType      MediaKind `json:"fileType" yaml:"fileType"`
}

// Status tells whether the verdict reflects a full analysis.
type Status string

const (
	StatusComplete Status = "complete"
	StatusDegraded Status = "degraded"
)

// Result is the output of Detect. Verdict is always populated; Cause is set
// only when Status is StatusDegraded.
type Result struct {
	Verdict Verdict
	Status  Status
	Cause   error

	// Factors holds the five image analyses; empty for video and degraded results
	Factors []Factor

	// Metadata is the image container metadata, nil for video
	Metadata *imaging.ContainerMetadata

	// Container is the sniffed video container, empty for images
	Container string

	// ContentHash is SHA256 hash of the analyzed content
	ContentHash string

	// ProcessingTime is how long detection took
	ProcessingTime time.Duration
}

// Degraded reports whether the neutral fallback verdict was used.
func (r *Result) Degraded() bool {
	return r.Status == StatusDegraded
}

// DecodeError means the image bytes could not be read.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode failure: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// AnalysisError means one of the image analyses failed.
type AnalysisError struct {
	Analysis string
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failure in %s: %v", e.Analysis, e.Err)
}
func (e *AnalysisError) Unwrap() error { return e.Err }

// Detector is the interface for content detection.
type Detector interface {
	// Detect scores input. The only error is a context that is already done;
	// analysis failures are reported through Result.Status.
	Detect(ctx context.Context, input DetectionInput) (*Result, error)
}

// DetectorConfig holds configuration for the detector.
type DetectorConfig struct {
	// Seed makes pixel sampling reproducible when non-zero. Each call still
	// gets its own generator.
	Seed uint64
}

// detector is the main implementation of Detector.
type detector struct {
	config DetectorConfig
	logger *logger.Logger
	video  *VideoAnalyzer

	// analyzeImage scores image bytes; tests swap it to reach failure paths.
	analyzeImage func(data []byte, sampler *imaging.Sampler, log *logger.Logger) (ImageAnalysisResult, error)
}

func analyzeImage(data []byte, sampler *imaging.Sampler, log *logger.Logger) (ImageAnalysisResult, error) {
	return NewImageAnalyzer(sampler, log).Analyze(data)
}

// NewDetector creates a new Detector with the given configuration.
func NewDetector(config DetectorConfig, log *logger.Logger) Detector {
	if log == nil {
		log = logger.NopLogger()
	}
	return &detector{
		config: config,
		logger: log,
		video:  NewVideoAnalyzer(),

		analyzeImage: analyzeImage,
	}
}

// Detect analyzes content and returns the verdict.
func (d *detector) Detect(ctx context.Context, input DetectionInput) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	log := d.logger.WithContext(ctx)
	kind := KindFromMIME(input.MIMEType)

	log.Debug("starting detection",
		"kind", kind,
		"mime_type", input.MIMEType,
		"data_length", len(input.Data),
	)

	var (
		result     *Result
		confidence float64
		reasoning  []string
	)

	switch kind {
	case KindImage:
		result = &Result{Status: StatusComplete}
		analysis, err := d.analyzeImage(input.Data, d.sampler(), log)
		if err != nil {
			log.Warn("image analysis degraded", "error", err)
			result.Status = StatusDegraded
			result.Cause = err
			confidence = NeutralConfidence
			reasoning = []string{degradedReason}
			break
		}
		result.Factors = analysis.Factors
		result.Metadata = &analysis.Metadata
		confidence = analysis.Confidence
		reasoning = analysis.Reasoning

	default:
		analysis := d.video.Analyze(input.Data)
		result = &Result{Status: StatusComplete, Container: analysis.Container}
		confidence = analysis.Confidence
		reasoning = analysis.Reasoning
	}

	result.Verdict = newVerdict(confidence, reasoning, input.FileName, kind)
	result.ContentHash = hashContent(input.Data)
	result.ProcessingTime = time.Since(start)

	log.Debug("detection complete",
		"status", result.Status,
		"ai_generated", result.Verdict.IsAIGenerated,
		"confidence", result.Verdict.Confidence,
		"processing_time_ms", result.ProcessingTime.Milliseconds(),
	)

	return result, nil
}

// sampler returns a fresh Sampler for one invocation.
func (d *detector) sampler() *imaging.Sampler {
	if d.config.Seed != 0 {
		return imaging.NewSeededSampler(d.config.Seed)
	}
	return imaging.NewSampler(nil)
}

// newVerdict rounds and clamps the confidence before deriving the label.
func newVerdict(confidence float64, reasoning []string, fileName string, kind MediaKind) Verdict {
	c := int(math.Round(clamp(confidence, 0, 100)))
	if reasoning == nil {
		reasoning = []string{}
	}
	return Verdict{
		IsAIGenerated: c >= 50,
		Confidence:    c,
		Reasoning:     reasoning,
		FileName:      fileName,
		FileType:      kind,
	}
}

// hashContent creates a SHA256 hash of the content.
func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NormalizeMIME lowercases a MIME type and strips parameters.
func NormalizeMIME(mimeType string) string {
	m := strings.ToLower(mimeType)
	if idx := strings.Index(m, ";"); idx != -1 {
		m = m[:idx]
	}
	return strings.TrimSpace(m)
}

// KindFromMIME treats image/* as an image and everything else as video.
func KindFromMIME(mimeType string) MediaKind {
	if strings.HasPrefix(NormalizeMIME(mimeType), "image/") {
		return KindImage
	}
	return KindVideo
}

// IsAcceptedMIME reports whether mimeType is on the upload allow-list.
func IsAcceptedMIME(mimeType string) bool {
	m := NormalizeMIME(mimeType)
	return slices.Contains(AcceptedImageTypes, m) || slices.Contains(AcceptedVideoTypes, m)
}

// AcceptedTypes returns the image and video allow-lists combined.
func AcceptedTypes() []string {
	return slices.Concat(AcceptedImageTypes, AcceptedVideoTypes)
}

// MIMEFromFileName guesses a MIME type from the file extension.
func MIMEFromFileName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".ogv", ".ogg":
		return "video/ogg"
	case ".mov":
		return "video/quicktime"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return NormalizeMIME(t)
	}
	return ""
}

// MIMEFromMagicBytes determines the MIME type from file magic bytes.
// It returns "" when the content matches no accepted type.
func MIMEFromMagicBytes(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}

	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}

	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}

	// WebP: RIFF ... WEBP
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}

	switch detectVideoFormat(data) {
	case "mp4":
		return "video/mp4"
	case "mov":
		return "video/quicktime"
	case "webm":
		return "video/webm"
	case "ogg":
		return "video/ogg"
	}

	return ""
}
