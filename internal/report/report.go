// Package report renders detection results for people and for machines.
//
// The same Document is used for the HTTP response body and for the CLI's
// json and yaml output, so both surfaces always agree on field names.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	yaml "go.yaml.in/yaml/v3"

	"github.com/aidetector/aidetector/internal/imaging"
	"github.com/aidetector/aidetector/internal/service"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists the accepted output formats.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatYAML}
}

// Verdict labels.
const (
	LabelAI   = "AI-Generated"
	LabelReal = "Real Content"
)

// Band describes how strong a confidence value is.
func Band(confidence int) string {
	switch {
	case confidence >= 70:
		return "High confidence detection"
	case confidence >= 40:
		return "Moderate confidence"
	default:
		return "Lower confidence - requires review"
	}
}

// Label returns the headline for a verdict.
func Label(v service.Verdict) string {
	if v.IsAIGenerated {
		return LabelAI
	}
	return LabelReal
}

// Document is the serialised form of a result.
type Document struct {
	service.Verdict `yaml:",inline"`

	Details *Details `json:"details,omitempty" yaml:"details,omitempty"`
}

// Details carries the diagnostic part of a result.
type Details struct {
	Status           service.Status             `json:"status" yaml:"status"`
	Cause            string                     `json:"cause,omitempty" yaml:"cause,omitempty"`
	Factors          []service.Factor           `json:"factors,omitempty" yaml:"factors,omitempty"`
	Metadata         *imaging.ContainerMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Container        string                     `json:"container,omitempty" yaml:"container,omitempty"`
	ContentHash      string                     `json:"contentHash" yaml:"contentHash"`
	ProcessingTimeMs int64                      `json:"processingTimeMs" yaml:"processingTimeMs"`
}

// NewDocument builds the serialised form; details are included on request.
func NewDocument(r *service.Result, detailed bool) Document {
	doc := Document{Verdict: r.Verdict}
	if !detailed {
		return doc
	}

	d := &Details{
		Status:           r.Status,
		Factors:          r.Factors,
		Metadata:         r.Metadata,
		Container:        r.Container,
		ContentHash:      r.ContentHash,
		ProcessingTimeMs: r.ProcessingTime.Milliseconds(),
	}
	if r.Cause != nil {
		d.Cause = r.Cause.Error()
	}
	doc.Details = d
	return doc
}

// Render writes r to w in the given format.
func Render(w io.Writer, r *service.Result, format string, detailed bool) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatText, "":
		return renderText(w, r, detailed)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewDocument(r, detailed))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewDocument(r, detailed)); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (expected %s)", format, strings.Join(Formats(), "|"))
	}
}

func renderText(w io.Writer, r *service.Result, detailed bool) error {
	v := r.Verdict

	box := realBox
	if v.IsAIGenerated {
		box = aiBox
	}
	headline := titleStyle.Render(fmt.Sprintf("%s  %d%%", Label(v), v.Confidence)) + "\n" + dimStyle.Render(Band(v.Confidence))

	var sb strings.Builder
	sb.WriteString(box.Render(headline))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s%s (%s)\n", dimStyle.Render("File: "), v.FileName, v.FileType)

	sb.WriteString("\n")
	sb.WriteString(sectionStyle.Render("Analysis"))
	sb.WriteString("\n")
	for _, reason := range v.Reasoning {
		fmt.Fprintf(&sb, "  %s %s\n", bulletStyle.Render("•"), reason)
	}

	if detailed {
		writeDetails(&sb, r)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeDetails(sb *strings.Builder, r *service.Result) {
	if r.Degraded() && r.Cause != nil {
		fmt.Fprintf(sb, "\n%s %s\n", warnStyle.Render("Degraded:"), r.Cause)
	}

	if len(r.Factors) > 0 {
		sb.WriteString("\n")
		sb.WriteString(sectionStyle.Render("Factors"))
		sb.WriteString("\n")
		for _, f := range r.Factors {
			fmt.Fprintf(sb, "  %-20s %4.0f / %.0f\n", f.Name, f.Score, f.Weight)
		}
	}

	if m := r.Metadata; m != nil {
		sb.WriteString("\n")
		sb.WriteString(sectionStyle.Render("Container"))
		sb.WriteString("\n")
		fmt.Fprintf(sb, "  %s%s %dx%d\n", dimStyle.Render("Format: "), m.Format, m.Width, m.Height)
		fmt.Fprintf(sb, "  %s%t  %s%t\n", dimStyle.Render("EXIF: "), m.HasExif, dimStyle.Render("ICC: "), m.HasICCProfile)
		if camera := strings.TrimSpace(m.CameraMake + " " + m.CameraModel); camera != "" {
			fmt.Fprintf(sb, "  %s%s\n", dimStyle.Render("Camera: "), camera)
		}
		if m.Software != "" {
			fmt.Fprintf(sb, "  %s%s\n", dimStyle.Render("Software: "), m.Software)
		}
	}

	if r.Container != "" {
		fmt.Fprintf(sb, "\n%s%s\n", dimStyle.Render("Container: "), r.Container)
	}

	fmt.Fprintf(sb, "\n%s%s\n", dimStyle.Render("SHA-256: "), r.ContentHash)
	fmt.Fprintf(sb, "%s%dms\n", dimStyle.Render("Time: "), r.ProcessingTime.Milliseconds())
}
