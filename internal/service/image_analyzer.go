package service

import (
	"fmt"
	"math"

	"github.com/aidetector/aidetector/internal/imaging"
	"github.com/aidetector/aidetector/pkg/logger"
)

// =============================================================================
// Image Heuristics
// =============================================================================
//
// Five independent pixel-statistics checks, each capped by a fixed weight:
//
//   1. Noise variance       (15)  low brightness variance = too smooth
//   2. Symmetry             (12)  left/right mirror matches
//   3. Color distribution   (10)  palette too uniform or too scattered
//   4. Metadata             (8)   missing EXIF / ICC
//   5. Smoothness           (12)  few sharp transitions between neighbours
//
// A square image adds a flat bonus to the score but not to the weight total,
// so it can push confidence past what the five checks alone allow.
//
// =============================================================================

// Factor names as reported in detailed output.
const (
	FactorNoise      = "Noise patterns"
	FactorSymmetry   = "Symmetry"
	FactorColor      = "Color distribution"
	FactorMetadata   = "Metadata"
	FactorSmoothness = "Smoothness"
)

// Fixed factor weights. A factor's score never exceeds its weight.
const (
	WeightNoise      = 15.0
	WeightSymmetry   = 12.0
	WeightColor      = 10.0
	WeightMetadata   = 8.0
	WeightSmoothness = 12.0

	// TotalWeight is the normalisation denominator (57).
	TotalWeight = WeightNoise + WeightSymmetry + WeightColor + WeightMetadata + WeightSmoothness

	// SquareBonus is added to the score, never to TotalWeight.
	SquareBonus = 5.0
)

// Sample sizes and thresholds.
const (
	noiseSamples      = 100
	colorSamples      = 1000
	smoothnessSamples = 200
	symmetryRows      = 50

	symmetryMatchDiff = 10
	edgeDiff          = 30
	colorQuantum      = 32
)

// MaxImagePixels caps the declared width*height decoded for analysis.
const MaxImagePixels = 64 << 20

const squareReason = "Square aspect ratio detected (common in AI-generated images)"

// Factor is the bounded contribution of one analysis.
type Factor struct {
	Name   string  `json:"name" yaml:"name"`
	Weight float64 `json:"weight" yaml:"weight"`
	Score  float64 `json:"score" yaml:"score"`
	Reason string  `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// ImageAnalyzer runs the image heuristics for a single invocation.
// It owns its Sampler and must not be shared between requests.
type ImageAnalyzer struct {
	sampler *imaging.Sampler
	logger  *logger.Logger
}

// NewImageAnalyzer creates an analyzer drawing pixels from sampler.
func NewImageAnalyzer(sampler *imaging.Sampler, log *logger.Logger) *ImageAnalyzer {
	if sampler == nil {
		sampler = imaging.NewSampler(nil)
	}
	if log == nil {
		log = logger.NopLogger()
	}
	return &ImageAnalyzer{sampler: sampler, logger: log}
}

// ImageAnalysisResult contains analysis results.
type ImageAnalysisResult struct {
	// Confidence is the clamped, unrounded normalised score (0-100)
	Confidence float64

	// Bonus is the square aspect ratio bonus applied (0 or SquareBonus)
	Bonus float64

	// Factors holds the five analyses in reporting order
	Factors []Factor

	// Reasoning lists the reason lines in output order
	Reasoning []string

	// Metadata is what the container declared
	Metadata imaging.ContainerMetadata
}

// Analyze reads the container metadata, decodes the pixels and scores them.
// A *DecodeError is returned for unreadable bytes or a header declaring more
// than MaxImagePixels, and an *AnalysisError when an analysis fails.
func (a *ImageAnalyzer) Analyze(data []byte) (ImageAnalysisResult, error) {
	meta, err := imaging.ReadMetadata(data)
	if err != nil {
		return ImageAnalysisResult{}, &DecodeError{Err: err}
	}
	if pixels := int64(meta.Width) * int64(meta.Height); pixels > MaxImagePixels {
		return ImageAnalysisResult{Metadata: meta}, &DecodeError{
			Err: fmt.Errorf("image is %dx%d, over the %d pixel limit", meta.Width, meta.Height, MaxImagePixels),
		}
	}

	raster, format, err := imaging.Decode(data)
	if err != nil {
		return ImageAnalysisResult{Metadata: meta}, &DecodeError{Err: err}
	}

	a.logger.Debug("image decoded",
		"format", format,
		"width", raster.Width(),
		"height", raster.Height(),
		"has_exif", meta.HasExif,
		"has_icc", meta.HasICCProfile,
	)

	return a.AnalyzeRaster(raster, meta)
}

// AnalyzeRaster scores an already decoded raster. A panic inside any analysis
// is returned as an *AnalysisError naming it.
func (a *ImageAnalyzer) AnalyzeRaster(r imaging.Raster, meta imaging.ContainerMetadata) (result ImageAnalysisResult, err error) {
	stage := "aspect ratio"
	defer func() {
		if p := recover(); p != nil {
			result = ImageAnalysisResult{Metadata: meta}
			err = &AnalysisError{Analysis: stage, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	result.Metadata = meta
	result.Bonus = squareBonus(r, meta)
	if result.Bonus > 0 {
		result.Reasoning = append(result.Reasoning, squareReason)
	}

	steps := []struct {
		name string
		run  func() Factor
	}{
		{FactorNoise, func() Factor { return AnalyzeNoise(a.sampler, r) }},
		{FactorSymmetry, func() Factor { return AnalyzeSymmetry(r) }},
		{FactorColor, func() Factor { return AnalyzeColorDistribution(a.sampler, r) }},
		{FactorMetadata, func() Factor { return AnalyzeMetadata(meta) }},
		{FactorSmoothness, func() Factor { return AnalyzeSmoothness(a.sampler, r) }},
	}

	result.Factors = make([]Factor, 0, len(steps))
	for _, step := range steps {
		stage = step.name
		f := step.run()
		result.Factors = append(result.Factors, f)
		if f.Reason != "" {
			result.Reasoning = append(result.Reasoning, f.Reason)
		}
		a.logger.Debug("factor scored", "factor", f.Name, "score", f.Score, "weight", f.Weight)
	}

	result.Confidence = Aggregate(result.Factors, result.Bonus)
	a.logger.Debug("image scored", "bonus", result.Bonus, "confidence", result.Confidence)

	return result, nil
}

// Aggregate normalises the summed factor scores plus bonus against the summed
// factor weights and clamps the result to [0, 100]. The bonus is never part
// of the denominator.
func Aggregate(factors []Factor, bonus float64) float64 {
	score := bonus
	totalWeight := 0.0
	for _, f := range factors {
		score += f.Score
		totalWeight += f.Weight
	}
	if totalWeight <= 0 {
		return 0
	}
	return clamp(score/totalWeight*100, 0, 100)
}

// squareBonus prefers the declared dimensions and falls back to the raster.
func squareBonus(r imaging.Raster, meta imaging.ContainerMetadata) float64 {
	square := meta.IsSquare()
	if !meta.HasDimensions() {
		square = r.Width() > 0 && r.Width() == r.Height()
	}
	if square {
		return SquareBonus
	}
	return 0
}

// AnalyzeNoise scores the brightness variance of sampled pixels.
func AnalyzeNoise(s *imaging.Sampler, r imaging.Raster) Factor {
	f := Factor{Name: FactorNoise, Weight: WeightNoise, Reason: "Natural noise patterns detected"}

	samples := s.Sample(r, noiseSamples)
	if len(samples) == 0 {
		return f
	}

	switch v := brightnessVariance(samples); {
	case v < 100:
		f.Score = 15
		f.Reason = "Unusually smooth texture detected - low noise variance suggests AI generation"
	case v < 200:
		f.Score = 8
		f.Reason = "Moderate smoothness detected - possible AI generation"
	}
	return f
}

// brightnessVariance is the population variance of mean(R,G,B).
func brightnessVariance(pixels []imaging.RGB) float64 {
	values := make([]float64, len(pixels))
	mean := 0.0
	for i, p := range pixels {
		values[i] = (float64(p.R) + float64(p.G) + float64(p.B)) / 3
		mean += values[i]
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return variance / float64(len(values))
}

// AnalyzeSymmetry scores how closely the top rows mirror left to right.
func AnalyzeSymmetry(r imaging.Raster) Factor {
	f := Factor{Name: FactorSymmetry, Weight: WeightSymmetry, Reason: "Natural asymmetry detected"}

	switch ratio := SymmetryRatio(r); {
	case ratio > 0.7:
		f.Score = 12
		f.Reason = "High symmetry detected - AI models often generate highly symmetrical images"
	case ratio > 0.5:
		f.Score = 6
		f.Reason = "Moderate symmetry detected - possible AI generation"
	}
	return f
}

// SymmetryRatio is the share of mirrored pixel pairs in the first
// min(50, height) rows whose summed channel difference is below 10.
// It is 0 for rasters narrower than two pixels.
func SymmetryRatio(r imaging.Raster) float64 {
	w := r.Width()
	rows := min(symmetryRows, r.Height())
	half := w / 2
	if rows <= 0 || half <= 0 {
		return 0
	}

	matches := 0
	for y := 0; y < rows; y++ {
		for x := 0; x < half; x++ {
			if channelDiff(r.At(x, y), r.At(w-1-x, y)) < symmetryMatchDiff {
				matches++
			}
		}
	}
	return float64(matches) / float64(rows*half)
}

// AnalyzeColorDistribution scores the diversity of quantised sample colours.
func AnalyzeColorDistribution(s *imaging.Sampler, r imaging.Raster) Factor {
	f := Factor{Name: FactorColor, Weight: WeightColor, Reason: "Natural color distribution detected"}

	samples := s.Sample(r, colorSamples)
	if len(samples) == 0 {
		return f
	}

	switch d := colorDiversity(samples); {
	case d < 0.1 || d > 0.9:
		f.Score = 10
		f.Reason = "Unusual color distribution detected - may indicate AI generation"
	case d < 0.15 || d > 0.8:
		f.Score = 5
		f.Reason = "Moderate color distribution anomaly detected"
	}
	return f
}

// colorDiversity is distinct quantised colours over sample count.
func colorDiversity(pixels []imaging.RGB) float64 {
	histogram := make(map[imaging.RGB]int)
	for _, p := range pixels {
		histogram[quantize(p)]++
	}
	return float64(len(histogram)) / float64(len(pixels))
}

func quantize(p imaging.RGB) imaging.RGB {
	return imaging.RGB{
		R: p.R / colorQuantum * colorQuantum,
		G: p.G / colorQuantum * colorQuantum,
		B: p.B / colorQuantum * colorQuantum,
	}
}

// AnalyzeMetadata scores missing container metadata. Files carrying EXIF
// score zero and produce no reason line.
func AnalyzeMetadata(meta imaging.ContainerMetadata) Factor {
	f := Factor{Name: FactorMetadata, Weight: WeightMetadata}

	switch {
	case !meta.HasExif && !meta.HasICCProfile:
		f.Score = 8
		f.Reason = "Missing EXIF/ICC metadata - AI-generated images often lack camera metadata"
	case !meta.HasExif:
		f.Score = 4
		f.Reason = "Limited metadata detected - may indicate generated content"
	}
	return f
}

// AnalyzeSmoothness scores the share of sampled pixels sitting on an edge.
func AnalyzeSmoothness(s *imaging.Sampler, r imaging.Raster) Factor {
	f := Factor{Name: FactorSmoothness, Weight: WeightSmoothness, Reason: "Natural texture and edges detected"}

	switch ratio := EdgeRatio(s, r); {
	case ratio < 0.1:
		f.Score = 12
		f.Reason = "Unusually smooth texture detected - lack of natural edges suggests AI generation"
	case ratio < 0.15:
		f.Score = 6
		f.Reason = "Moderate smoothness detected - possible AI generation"
	}
	return f
}

// EdgeRatio samples min(200, w*h) points that have a right and a bottom
// neighbour and returns the share whose difference to either exceeds 30.
// Rasters without such points have ratio 0.
func EdgeRatio(s *imaging.Sampler, r imaging.Raster) float64 {
	w, h := r.Width(), r.Height()
	n := imaging.SampleSize(r, smoothnessSamples)
	if w < 2 || h < 2 || n <= 0 {
		return 0
	}

	edges := 0
	for i := 0; i < n; i++ {
		x, y := s.Point(w-1, h-1)
		center := r.At(x, y)
		if channelDiff(center, r.At(x+1, y)) > edgeDiff || channelDiff(center, r.At(x, y+1)) > edgeDiff {
			edges++
		}
	}
	return float64(edges) / float64(n)
}

// channelDiff is the summed absolute difference of the three channels.
func channelDiff(a, b imaging.RGB) int {
	return absDiff(a.R, b.R) + absDiff(a.G, b.G) + absDiff(a.B, b.B)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
