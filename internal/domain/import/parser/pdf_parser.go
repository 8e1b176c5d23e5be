package parser

import (
	"bytes"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

var multiSpace = regexp.MustCompile(`\s{2,}`)

const scannedObservation = "o arquivo pode ser uma imagem digitalizada; tente enviar como imagem"

const (
	defaultGlyphSize = 10.0
	wordGapRatio     = 0.2
)

// parsePDF turns the text layer of the first pages into rows. Columns are
// split on tabs, then pipes, then runs of two or more spaces.
func parsePDF(data []byte, maxPages int) (table *Table, err error) {
	defer func() {
		// The pdf reader panics on some malformed files.
		if r := recover(); r != nil {
			table, err = nil, fail(ErrNoData, fmt.Errorf("failed to read pdf: %v", r))
		}
	}()

	lines, err := pdfLines(data, maxPages)
	if err != nil {
		return nil, err
	}
	if len(lines) < 2 {
		return nil, fail(ErrScannedPDF, nil, scannedObservation)
	}

	split := pdfSplitter(lines)
	rows := make([][]Cell, 0, len(lines))
	for _, line := range lines {
		var row []Cell
		for _, part := range split(line) {
			if part = strings.TrimSpace(part); part != "" {
				row = append(row, TextCell(part))
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}

	table, err = buildTable("", rows)
	if err != nil {
		return nil, fail(ErrNoData, err, "não foi possível identificar colunas no texto do PDF")
	}
	return table, nil
}

func pdfLines(data []byte, maxPages int) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fail(ErrNoData, fmt.Errorf("failed to open pdf: %w", err))
	}

	var lines []string
	pages := min(reader.NumPage(), maxPages)
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		lines = append(lines, pageLines(page.Content().Text)...)
	}
	return lines, nil
}

// pageLines rebuilds text lines from positioned glyphs. Glyphs sharing a
// baseline form a line, ordered left to right. A horizontal gap wider than
// a glyph starts a new column and is written as a tab.
func pageLines(glyphs []pdf.Text) []string {
	byY := make(map[float64][]pdf.Text)
	for _, g := range glyphs {
		// TJ arrays end with a synthetic newline glyph.
		if g.S == "\n" {
			continue
		}
		y := math.Round(g.Y)
		byY[y] = append(byY[y], g)
	}

	ys := make([]float64, 0, len(byY))
	for y := range byY {
		ys = append(ys, y)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ys)))

	lines := make([]string, 0, len(ys))
	for _, y := range ys {
		if line := strings.TrimSpace(joinGlyphs(byY[y])); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func joinGlyphs(glyphs []pdf.Text) string {
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

	var b strings.Builder
	for i, g := range glyphs {
		if i > 0 {
			prev := glyphs[i-1]
			size := prev.FontSize
			if size <= 0 {
				size = defaultGlyphSize
			}
			gap := g.X - (prev.X + prev.W)
			switch {
			case gap > size:
				b.WriteByte('\t')
			case gap > size*wordGapRatio && prev.S != " " && g.S != " ":
				b.WriteByte(' ')
			}
		}
		b.WriteString(g.S)
	}
	return b.String()
}

func pdfSplitter(lines []string) func(string) []string {
	joined := strings.Join(lines, "\n")
	switch {
	case strings.Contains(joined, "\t"):
		return func(s string) []string { return strings.Split(s, "\t") }
	case strings.Contains(joined, "|"):
		return func(s string) []string { return strings.Split(s, "|") }
	default:
		return func(s string) []string { return multiSpace.Split(s, -1) }
	}
}
