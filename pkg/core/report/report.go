// Package report renders M-Score results for people.
package report

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"forensic_audit/pkg/core/calc"
)

// NotAvailable is printed for undefined values.
const NotAvailable = "n/a"

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown renders scores as a GFM table followed by a one-line summary.
func Markdown(scores []calc.ScoreRecord) string {
	var b strings.Builder
	b.WriteString("# Beneish M-Score\n\n")
	if len(scores) == 0 {
		b.WriteString("No period has a prior year to compare against.\n")
		return b.String()
	}

	showEntity := false
	for _, s := range scores {
		if s.Entity != "" {
			showEntity = true
			break
		}
	}

	headers := []string{"Year", "DSRI", "GMI", "AQI", "SGI", "DEPI", "SGAI", "LVGI", "TATA", "M-Score", "Classification"}
	if showEntity {
		headers = append([]string{"Company"}, headers...)
	}
	writeRow(&b, headers)
	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(&b, sep)

	counts := map[calc.Classification]int{}
	for _, s := range scores {
		row := []string{
			fmt.Sprint(s.Period),
			num(s.DSRI), num(s.GMI), num(s.AQI), num(s.SGI),
			num(s.DEPI), num(s.SGAI), num(s.LVGI), num(s.TATA),
			num(s.MScore), label(s.Classification),
		}
		if showEntity {
			row = append([]string{escape(s.Entity)}, row...)
		}
		writeRow(&b, row)
		counts[s.Classification]++
	}

	fmt.Fprintf(&b, "\n%d periods scored: %d likely, %d possible, %d unlikely, %d undefined.\n",
		len(scores), counts[calc.Likely], counts[calc.Possible], counts[calc.Unlikely], counts[calc.Undefined])
	fmt.Fprintf(&b, "\nThresholds: below %.2f unlikely, %.2f to %.2f possible, above %.2f likely.\n",
		calc.UnlikelyBelow, calc.UnlikelyBelow, calc.LikelyAbove, calc.LikelyAbove)
	return b.String()
}

// HTML converts markdown produced by Markdown into an HTML fragment.
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return buf.String(), nil
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("| ")
	b.WriteString(strings.Join(cells, " | "))
	b.WriteString(" |\n")
}

func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NotAvailable
	}
	return fmt.Sprintf("%.3f", v)
}

func label(c calc.Classification) string {
	if c == calc.Undefined {
		return NotAvailable
	}
	return string(c)
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "|", `\|`, "<", `\<`, ">", `\>`,
	"*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`,
)

// escape keeps entity names from being read as markdown or raw HTML.
func escape(s string) string { return mdEscaper.Replace(s) }

// BenfordMarkdown renders a first-digit test as a GFM table.
func BenfordMarkdown(r calc.BenfordResult) string {
	var b strings.Builder
	b.WriteString("## Benford first-digit test\n\n")
	if r.Level == calc.BenfordInsufficient {
		fmt.Fprintf(&b, "Too few usable amounts: %d of %d needed.\n", r.Total, calc.BenfordMinimumSamples)
		return b.String()
	}

	writeRow(&b, []string{"Digit", "Count", "Observed", "Expected"})
	writeRow(&b, []string{"---", "---", "---", "---"})
	for i := range r.Counts {
		writeRow(&b, []string{
			fmt.Sprint(i + 1),
			fmt.Sprint(r.Counts[i]),
			fmt.Sprintf("%.3f", r.Frequencies[i]),
			fmt.Sprintf("%.3f", r.Expected[i]),
		})
	}
	fmt.Fprintf(&b, "\n%d amounts, MAD %.4f: %s.\n", r.Total, r.MAD, r.Level)
	return b.String()
}
