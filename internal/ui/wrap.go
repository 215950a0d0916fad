package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// wrapText breaks text into lines of at most width cells, preferring the
// last space on the line. Words wider than width are split.
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		lines = append(lines, wrapLine([]rune(para), width)...)
	}
	return lines
}

func wrapLine(runes []rune, width int) []string {
	var out []string
	line := make([]rune, 0, len(runes))
	lineWidth := 0
	lastSpace := -1

	for i := 0; i < len(runes); {
		r := runes[i]
		w := runewidth.RuneWidth(r)
		if lineWidth+w > width && len(line) > 0 {
			if r == ' ' {
				out = append(out, string(line))
				line = line[:0]
				lineWidth = 0
				lastSpace = -1
				i++
				continue
			}
			if lastSpace >= 0 {
				out = append(out, strings.TrimRight(string(line[:lastSpace]), " "))
				line = append([]rune{}, line[lastSpace+1:]...)
				lineWidth = runewidth.StringWidth(string(line))
				lastSpace = lastSpaceIndex(line)
			} else {
				out = append(out, string(line))
				line = line[:0]
				lineWidth = 0
				lastSpace = -1
			}
			continue
		}
		line = append(line, r)
		lineWidth += w
		if r == ' ' {
			lastSpace = len(line) - 1
		}
		i++
	}
	return append(out, string(line))
}

func lastSpaceIndex(line []rune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i] == ' ' {
			return i
		}
	}
	return -1
}

// renderWrapped styles every wrapped line of text separately so that
// escape sequences never span a line break.
func renderWrapped(render func(...string) string, text string, width int) []string {
	lines := wrapText(text, width)
	for i, l := range lines {
		lines[i] = render(l)
	}
	return lines
}
