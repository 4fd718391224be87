package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"biobank-trait-report/internal/domain"
)

// RenderMarkdown renders a document as a Markdown preview.
// Page breaks become horizontal rules.
func RenderMarkdown(doc *Document) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", doc.GeneratedAt.Format(time.RFC3339)))

	for _, b := range doc.Blocks {
		switch b.Kind {
		case BlockSection:
			sb.WriteString(fmt.Sprintf("# %s\n\n", b.Text))
		case BlockSubsection:
			sb.WriteString(fmt.Sprintf("## %s\n\n", b.Text))
		case BlockParagraph:
			sb.WriteString(b.Text)
			sb.WriteString("\n\n")
		case BlockFigure:
			sb.WriteString(fmt.Sprintf("![%s](%s)\n\n", b.Text, b.Artifact.Name))
			sb.WriteString(fmt.Sprintf("*%s*\n\n", b.Text))
		case BlockTable:
			sb.WriteString(fmt.Sprintf("**%s**\n\n", b.Text))
			writeMarkdownTable(&sb, b.Table)
		case BlockPageBreak:
			sb.WriteString("---\n\n")
		}
	}

	return sb.String()
}

func writeMarkdownTable(sb *strings.Builder, t *domain.Table) {
	if t == nil {
		return
	}

	sb.WriteString(markdownRow(t.Columns))
	sep := make([]string, len(t.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	sb.WriteString("|" + strings.Join(sep, "|") + "|\n")
	for _, row := range t.Rows {
		sb.WriteString(markdownRow(row))
	}
	sb.WriteString("\n")
}

var markdownCellEscaper = strings.NewReplacer("|", `\|`, "\n", "<br>")

func markdownRow(cells []string) string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = markdownCellEscaper.Replace(c)
	}
	return "| " + strings.Join(out, " | ") + " |\n"
}

// RenderHTML converts a Markdown preview into a complete HTML page.
func RenderHTML(md, title string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	root := p.Parse([]byte(md))

	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.Render(root, renderer)
}
