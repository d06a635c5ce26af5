package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// RenderMarkdown formats a summary as a Markdown document with one table row
// per sample size.
func RenderMarkdown(title string, summary Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Replicates: %d\n\n", summary.Replicates)

	b.WriteString("| sample size | values | finite | mean ZS | var ZS | VMR ZS | mean nZS | var nZS | VMR nZS | median nZS |\n")
	b.WriteString("|---:|---:|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	for _, s := range summary.Sizes {
		fmt.Fprintf(&b, "| %d | %d | %d | %s | %s | %s | %s | %s | %s | %s |\n",
			s.SampleSize,
			s.ZScore.Count,
			s.ZScore.FiniteCount,
			formatScore(s.ZScore.Mean),
			formatScore(s.ZScore.Variance),
			formatScore(s.ZScore.VarianceToMean),
			formatScore(s.Normalized.Mean),
			formatScore(s.Normalized.Variance),
			formatScore(s.Normalized.VarianceToMean),
			formatScore(s.Normalized.Median),
		)
	}
	return b.String()
}

// RenderHTML renders the Markdown summary as a complete HTML page
func RenderHTML(title string, summary Summary) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(RenderMarkdown(title, summary)), p, renderer)
}

func formatScore(v float64) string {
	switch {
	case math.IsNaN(v):
		return "n/a"
	case math.IsInf(v, 1):
		return "+inf"
	case math.IsInf(v, -1):
		return "-inf"
	default:
		return fmt.Sprintf("%.4f", v)
	}
}
