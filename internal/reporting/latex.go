package reporting

import (
	"fmt"
	"strings"

	"biobank-trait-report/internal/domain"
)

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
	`<`, `\textless{}`,
	`>`, `\textgreater{}`,
)

// EscapeLaTeX escapes text for use in LaTeX body content.
func EscapeLaTeX(s string) string {
	return latexEscaper.Replace(s)
}

// RenderLaTeX renders a document as a standalone LaTeX source.
func RenderLaTeX(doc *Document) string {
	var sb strings.Builder

	sb.WriteString("\\documentclass{article}\n")
	sb.WriteString("\\usepackage[tmargin=1cm,lmargin=1cm,rmargin=1cm]{geometry}\n")
	sb.WriteString("\\usepackage{graphicx}\n")
	sb.WriteString("\\usepackage{longtable}\n")
	sb.WriteString("\\usepackage{booktabs}\n")
	sb.WriteString("\\begin{document}\n\n")

	for _, b := range doc.Blocks {
		switch b.Kind {
		case BlockSection:
			sb.WriteString(fmt.Sprintf("\\section{%s}\n", EscapeLaTeX(b.Text)))
		case BlockSubsection:
			sb.WriteString(fmt.Sprintf("\\subsection{%s}\n", EscapeLaTeX(b.Text)))
		case BlockParagraph:
			sb.WriteString(EscapeLaTeX(b.Text))
			sb.WriteString("\n\n")
		case BlockFigure:
			sb.WriteString("\\begin{figure}[h!]\n")
			sb.WriteString("\\centering\n")
			sb.WriteString(fmt.Sprintf("\\includegraphics[width=%s]{%s}\n", b.Width, b.Artifact.Name))
			sb.WriteString(fmt.Sprintf("\\caption{%s}\n", EscapeLaTeX(b.Text)))
			sb.WriteString("\\end{figure}\n\n")
		case BlockTable:
			writeLongtable(&sb, b.Table, b.Text)
		case BlockPageBreak:
			sb.WriteString("\\newpage\n\n")
		}
	}

	sb.WriteString("\\end{document}\n")
	return sb.String()
}

// writeLongtable renders a booktabs longtable with a repeated header.
func writeLongtable(sb *strings.Builder, t *domain.Table, caption string) {
	if t == nil {
		return
	}

	var colspec strings.Builder
	for _, c := range t.Columns {
		if c == "strata" || c == "sex" {
			colspec.WriteByte('l')
		} else {
			colspec.WriteByte('r')
		}
	}
	header := latexRow(t.Columns)
	escaped := EscapeLaTeX(caption)

	sb.WriteString(fmt.Sprintf("\\begin{longtable}{%s}\n", colspec.String()))
	sb.WriteString(fmt.Sprintf("\\caption{%s}\\\\\n", escaped))
	sb.WriteString("\\toprule\n")
	sb.WriteString(header)
	sb.WriteString("\\midrule\n")
	sb.WriteString("\\endfirsthead\n")
	sb.WriteString(fmt.Sprintf("\\caption[]{%s} \\\\\n", escaped))
	sb.WriteString("\\toprule\n")
	sb.WriteString(header)
	sb.WriteString("\\midrule\n")
	sb.WriteString("\\endhead\n")
	sb.WriteString("\\midrule\n")
	sb.WriteString(fmt.Sprintf("\\multicolumn{%d}{r}{Continued on next page} \\\\\n", len(t.Columns)))
	sb.WriteString("\\midrule\n")
	sb.WriteString("\\endfoot\n")
	sb.WriteString("\\bottomrule\n")
	sb.WriteString("\\endlastfoot\n")
	for _, row := range t.Rows {
		sb.WriteString(latexRow(row))
	}
	sb.WriteString("\\end{longtable}\n\n")
}

func latexRow(cells []string) string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = latexCell(c)
	}
	return strings.Join(out, " & ") + " \\\\\n"
}

// latexCell escapes a cell; multi-line cells become a left-aligned stack.
func latexCell(c string) string {
	if !strings.Contains(c, "\n") {
		return EscapeLaTeX(c)
	}
	lines := strings.Split(c, "\n")
	for i, l := range lines {
		lines[i] = EscapeLaTeX(l)
	}
	return "\\shortstack[l]{" + strings.Join(lines, "\\\\") + "}"
}
