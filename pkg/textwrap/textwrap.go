// Package textwrap wraps paragraphs to a fixed display width. Widths are
// measured in terminal cells, so CJK text and emoji wrap correctly.
package textwrap

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Wrap splits text into lines no wider than width cells. Runs of whitespace
// collapse to a single space and words wider than width are broken.
func Wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var (
		lines   []string
		current strings.Builder
		used    int
	)
	flush := func() {
		if current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
			used = 0
		}
	}

	for _, word := range words {
		w := runewidth.StringWidth(word)
		if w > width {
			flush()
			lines = append(lines, breakWord(word, width)...)
			// The last chunk may still have room after it.
			last := lines[len(lines)-1]
			lines = lines[:len(lines)-1]
			current.WriteString(last)
			used = runewidth.StringWidth(last)
			continue
		}
		switch {
		case used == 0:
			current.WriteString(word)
			used = w
		case used+1+w <= width:
			current.WriteByte(' ')
			current.WriteString(word)
			used += 1 + w
		default:
			flush()
			current.WriteString(word)
			used = w
		}
	}
	flush()
	return lines
}

// Fill is Wrap joined with newlines.
func Fill(text string, width int) string {
	return strings.Join(Wrap(text, width), "\n")
}

func breakWord(word string, width int) []string {
	var (
		chunks []string
		b      strings.Builder
		used   int
	)
	for _, r := range word {
		rw := runewidth.RuneWidth(r)
		if used+rw > width && used > 0 {
			chunks = append(chunks, b.String())
			b.Reset()
			used = 0
		}
		b.WriteRune(r)
		used += rw
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}
