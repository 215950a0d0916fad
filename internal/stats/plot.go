package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/verte-zerg/bookdesk/internal/model"
	"golang.org/x/term"
)

const (
	defaultPlotHeight   = 10
	minPlotWidth        = 10
	axisSeparator       = " │ "
	colorGreen          = "\x1b[32m"
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

// PlotOptions sizes and styles a revenue plot.
type PlotOptions struct {
	// Width is the total width including the axis. Zero uses the terminal width.
	Width    int
	Height   int
	Currency string
	Color    bool
}

// PlotRevenue renders the per-day revenue as a braille area chart.
func PlotRevenue(w io.Writer, title string, buckets []model.DateBucket, opts PlotOptions) error {
	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	if len(buckets) == 0 {
		_, err := fmt.Fprintln(w, "No sales yet.")
		return err
	}
	values := BucketValues(buckets)
	_, maxVal := seriesMinMaxSingle(values)
	if maxVal <= 0 {
		maxVal = 1
	}

	height := opts.Height
	if height <= 0 {
		height = defaultPlotHeight
	}
	labels := axisLabels(height, maxVal, opts.Currency)
	axisWidth := 0
	for _, l := range labels {
		if dw := DisplayWidth(l); dw > axisWidth {
			axisWidth = dw
		}
	}
	totalWidth := opts.Width
	if totalWidth <= 0 {
		totalWidth = terminalWidth()
	}
	width := PlotWidthFor(totalWidth, axisWidth)

	scaled := resampleSeries(values, width)
	cells := makeCells(height, width)
	dotRows := height * 4
	for x, v := range scaled {
		top := valueToRow(v, 0, maxVal, dotRows)
		if v <= 0 {
			continue
		}
		for y := top; y < dotRows; y++ {
			setBrailleDot(cells, x*2, y)
			setBrailleDot(cells, x*2+1, y)
		}
	}

	useColor := shouldUseColor(w, opts.Color)
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(padCell(labels[y], axisWidth, true))
		row.WriteString(axisSeparator)
		if useColor {
			row.WriteString(colorGreen)
		}
		for x := 0; x < width; x++ {
			row.WriteRune(brailleFromMask(cells[y][x]))
		}
		if useColor {
			row.WriteString(colorReset)
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	footer := dateAxis(buckets[0].Date, buckets[len(buckets)-1].Date, width)
	if _, err := fmt.Fprintln(w, strings.Repeat(" ", axisWidth+DisplayWidth(axisSeparator))+footer); err != nil {
		return err
	}
	return nil
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth, axisWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	plotWidth := totalWidth - axisWidth - DisplayWidth(axisSeparator)
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

func axisLabels(height int, maxVal float64, currency string) []string {
	labels := make([]string, height)
	if height <= 0 {
		return labels
	}
	labels[0] = FormatMoney(decimal.NewFromFloat(maxVal).Round(2), currency)
	if height > 2 {
		labels[height/2] = FormatMoney(decimal.NewFromFloat(maxVal/2).Round(2), currency)
	}
	if height > 1 {
		labels[height-1] = FormatMoney(decimal.Zero, currency)
	}
	return labels
}

// dateAxis prints the first and last dates as dd/MM at the plot edges.
func dateAxis(first, last string, width int) string {
	left := shortDate(first)
	if first == last {
		return left
	}
	right := shortDate(last)
	gap := width - DisplayWidth(left) - DisplayWidth(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func shortDate(key string) string {
	t, err := time.Parse(dateKeyLayout, key)
	if err != nil {
		return key
	}
	return t.Format("02/01")
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := 0; y < height; y++ {
		cells[y] = make([]uint8, width)
	}
	return cells
}

func resampleSeries(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	if len(values) == width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	if len(values) > width {
		for i := 0; i < width; i++ {
			start := int(float64(i) * float64(len(values)) / float64(width))
			end := int(float64(i+1) * float64(len(values)) / float64(width))
			if end <= start {
				end = start + 1
			}
			if end > len(values) {
				end = len(values)
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
		return out
	}
	// Fewer days than columns: each day spans a block of columns.
	for i := 0; i < width; i++ {
		idx := i * len(values) / width
		out[i] = values[idx]
	}
	return out
}

func seriesMinMaxSingle(values []float64) (float64, float64) {
	minVal := math.Inf(1)
	maxVal := math.Inf(-1)
	for _, v := range values {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if minVal == math.Inf(1) {
		minVal = 0
	}
	if maxVal == math.Inf(-1) {
		maxVal = 0
	}
	return minVal, maxVal
}

func valueToRow(v, minVal, maxVal float64, height int) int {
	if height <= 1 {
		return 0
	}
	pos := (v - minVal) / (maxVal - minVal)
	row := int(math.Round((1 - pos) * float64(height-1)))
	if row < 0 {
		row = 0
	}
	if row >= height {
		row = height - 1
	}
	return row
}

func setBrailleDot(cells [][]uint8, x, y int) {
	if y < 0 || x < 0 {
		return
	}
	cellY := y / 4
	cellX := x / 2
	if cellY >= len(cells) || cellX >= len(cells[cellY]) {
		return
	}
	cells[cellY][cellX] |= brailleDotMask(x%2, y%4)
}

func brailleDotMask(x, y int) uint8 {
	switch {
	case x == 0 && y == 0:
		return 0x01
	case x == 0 && y == 1:
		return 0x02
	case x == 0 && y == 2:
		return 0x04
	case x == 0 && y == 3:
		return 0x40
	case x == 1 && y == 0:
		return 0x08
	case x == 1 && y == 1:
		return 0x10
	case x == 1 && y == 2:
		return 0x20
	case x == 1 && y == 3:
		return 0x80
	default:
		return 0
	}
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}
