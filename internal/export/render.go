// Package export renders finished story artifacts for delivery: a
// structural JSON dump, a fixed-section Markdown report, and the Markdown
// rendered to HTML. Rendering is pure and deterministic; identical inputs
// produce identical bytes, so export retries never fork the stored output.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jatlaoui/ines/internal/domain"
)

// Report section headings, in their fixed rendering order. The story text
// itself precedes them; these sections document how it was made.
const (
	headingMetadata     = "البيانات الوصفية"
	headingStages       = "مراحل التحويل"
	headingQuality      = "مقاييس الجودة"
	headingAuthenticity = "مقاييس الأصالة"
	headingEnhancements = "التحسينات الإبداعية"
	headingFinalScores  = "الدرجات النهائية"
)

// Renderer produces the export formats. Safe for concurrent use.
type Renderer struct {
	html goldmark.Markdown
}

// NewRenderer creates a renderer with GFM tables enabled for the HTML path.
func NewRenderer() *Renderer {
	return &Renderer{
		html: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Render produces the requested format. Unknown formats are an error, never
// a silent default.
func (r *Renderer) Render(format domain.ExportFormat, in domain.ExportStoryInput) ([]byte, error) {
	switch format {
	case domain.ExportJSON:
		return r.renderJSON(in)
	case domain.ExportMarkdown:
		return []byte(r.renderMarkdown(in)), nil
	case domain.ExportHTML:
		return r.renderHTML(in)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownExportFormat, format)
	}
}

// Extension returns the file extension for a format, dot included.
func Extension(format domain.ExportFormat) string {
	switch format {
	case domain.ExportJSON:
		return ".json"
	case domain.ExportMarkdown:
		return ".md"
	case domain.ExportHTML:
		return ".html"
	default:
		return ""
	}
}

// jsonExport is the structural dump: the originating request, the finished
// artifact, and the full phase trace.
type jsonExport struct {
	TaskID   string               `json:"task_id"`
	Request  domain.StoryRequest  `json:"request"`
	Artifact domain.StoryArtifact `json:"artifact"`
	Stages   []domain.StageResult `json:"stages,omitempty"`
}

func (r *Renderer) renderJSON(in domain.ExportStoryInput) ([]byte, error) {
	out, err := json.MarshalIndent(jsonExport{
		TaskID:   in.TaskID,
		Request:  in.Request,
		Artifact: in.Artifact,
		Stages:   in.Stages,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return out, nil
}

func (r *Renderer) renderMarkdown(in domain.ExportStoryInput) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n", in.Artifact.Title)
	for _, unit := range in.Artifact.Units {
		sb.WriteString("\n")
		if unit.Title != "" {
			fmt.Fprintf(&sb, "## %s\n\n", unit.Title)
		}
		sb.WriteString(unit.Body)
		sb.WriteString("\n")
	}

	writeMetadata(&sb, in)
	writeStages(&sb, in.Stages)
	writeMetrics(&sb, headingQuality, in.Artifact.QualityMetrics)
	writeMetrics(&sb, headingAuthenticity, in.Artifact.AuthenticityMetrics)
	writeEnhancements(&sb, in.Artifact.Enhancements)
	writeMetrics(&sb, headingFinalScores, in.Artifact.FinalScores)

	return sb.String()
}

func (r *Renderer) renderHTML(in domain.ExportStoryInput) ([]byte, error) {
	var body bytes.Buffer
	if err := r.html.Convert([]byte(r.renderMarkdown(in)), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"ar\" dir=\"rtl\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n</head>\n<body>\n", in.Artifact.Title)
	sb.Write(body.Bytes())
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String()), nil
}

func writeMetadata(sb *strings.Builder, in domain.ExportStoryInput) {
	fmt.Fprintf(sb, "\n## %s\n\n", headingMetadata)
	sb.WriteString("| الحقل | القيمة |\n| --- | --- |\n")
	fmt.Fprintf(sb, "| معرف المهمة | %s |\n", in.TaskID)
	fmt.Fprintf(sb, "| الطول المستهدف | %s |\n", in.Request.TargetLength)
	if in.Request.Style != "" {
		fmt.Fprintf(sb, "| الأسلوب | %s |\n", in.Request.Style)
	}
	if in.Request.CulturalFocus != "" {
		fmt.Fprintf(sb, "| التركيز الثقافي | %s |\n", in.Request.CulturalFocus)
	}
	fmt.Fprintf(sb, "| عدد الوحدات | %d |\n", len(in.Artifact.Units))
	fmt.Fprintf(sb, "| عدد الكلمات | %d |\n", in.Artifact.WordCount)
	if !in.Artifact.CompletedAt.IsZero() {
		fmt.Fprintf(sb, "| اكتمل في | %s |\n", in.Artifact.CompletedAt.UTC().Format("2006-01-02 15:04:05"))
	}
}

func writeStages(sb *strings.Builder, stages []domain.StageResult) {
	fmt.Fprintf(sb, "\n## %s\n\n", headingStages)
	if len(stages) == 0 {
		sb.WriteString("لا توجد مراحل مسجلة.\n")
		return
	}
	sb.WriteString("| المرحلة | التقدم | التحذيرات |\n| --- | --- | --- |\n")
	for _, stage := range stages {
		fmt.Fprintf(sb, "| %s | %.2f | %d |\n", stage.Phase, stage.Progress, len(stage.Warnings))
	}
}

func writeMetrics(sb *strings.Builder, heading string, metrics map[string]float64) {
	fmt.Fprintf(sb, "\n## %s\n\n", heading)
	if len(metrics) == 0 {
		sb.WriteString("لا توجد قيم.\n")
		return
	}

	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb.WriteString("| المقياس | القيمة |\n| --- | --- |\n")
	for _, k := range keys {
		fmt.Fprintf(sb, "| %s | %.2f |\n", k, metrics[k])
	}
}

func writeEnhancements(sb *strings.Builder, enhancements []string) {
	fmt.Fprintf(sb, "\n## %s\n\n", headingEnhancements)
	if len(enhancements) == 0 {
		sb.WriteString("لم تطبق تحسينات.\n")
		return
	}
	for _, e := range enhancements {
		fmt.Fprintf(sb, "- %s\n", e)
	}
}
