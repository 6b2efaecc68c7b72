package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/twmb/ktop/internal/bucket"
)

// brailleDotBit maps a (row, col) position inside a single terminal cell's
// 2x4 sub-pixel grid to its bit in a Braille Patterns codepoint (U+2800 +
// bitmask). No pack example imports a terminal charting widget (SPEC_FULL.md
// DOMAIN STACK), so the chart is a small hand-rolled Braille renderer.
var brailleDotBit = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

const brailleBase = 0x2800

// series is one topic's plotted rate curve, paired with its display color.
type series struct {
	topic  string
	points []bucket.Point
	color  lipgloss.Color
}

// renderChart draws width x height terminal cells of a braille dot-matrix
// line chart for the given series, scaled so 0 sits at the bottom row and
// maxY at the top. With maxY <= 0 every point is drawn on the bottom row;
// with no points at all the chart is blank.
func renderChart(all []series, width, height int, maxY float64) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	subCols := width * 2
	subRows := height * 4

	dots := make([][]rune, height)
	colorAt := make([][]lipgloss.Color, height)
	for r := range dots {
		dots[r] = make([]rune, width)
		colorAt[r] = make([]lipgloss.Color, width)
		for c := range dots[r] {
			dots[r][c] = brailleBase
		}
	}

	for _, s := range all {
		n := len(s.points)
		if n == 0 {
			continue
		}
		for i, p := range s.points {
			subCol := 0
			if n > 1 {
				subCol = i * (subCols - 1) / (n - 1)
			}
			subRow := valueToSubRow(p.Rate, maxY, subRows)
			plot(dots, colorAt, subCol, subRow, width, height, s.color)
		}
	}

	var b strings.Builder
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			ch := dots[r][c]
			if ch == brailleBase {
				b.WriteRune(' ')
				continue
			}
			style := lipgloss.NewStyle()
			if colorAt[r][c] != "" {
				style = style.Foreground(colorAt[r][c])
			}
			b.WriteString(style.Render(string(ch)))
		}
		if r < height-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func valueToSubRow(v, maxY float64, subRows int) int {
	if maxY <= 0 {
		return subRows - 1
	}
	frac := v / maxY
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	// subRow 0 is the top sub-row; larger values plot higher (smaller index).
	row := subRows - 1 - int(frac*float64(subRows-1))
	if row < 0 {
		row = 0
	}
	if row >= subRows {
		row = subRows - 1
	}
	return row
}

func plot(dots [][]rune, colorAt [][]lipgloss.Color, subCol, subRow, width, height int, color lipgloss.Color) {
	cellCol := subCol / 2
	cellRow := subRow / 4
	if cellCol < 0 || cellCol >= width || cellRow < 0 || cellRow >= height {
		return
	}
	bitCol := subCol % 2
	bitRow := subRow % 4
	dots[cellRow][cellCol] |= brailleDotBit[bitRow][bitCol]
	colorAt[cellRow][cellCol] = color
}
