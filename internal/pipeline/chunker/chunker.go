package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

var (
	paragraphRe = regexp.MustCompile(`\n{2,}`)
	spaceRunRe  = regexp.MustCompile(`[ \t]{2,}`)
)

const paragraphSeparator = "\n\n"

// Clean strips control characters (keeping newlines and tabs) and collapses
// runs of horizontal whitespace. Applied to each parent chunk before
// splitting so unit sizes reflect real content.
func Clean(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return spaceRunRe.ReplaceAllString(b.String(), " ")
}

// Split breaks text into retrieval units of at most maxUnitSize runes,
// preferring the largest coherent boundary that still fits: whole paragraphs,
// then sentences, then words, then a raw fixed-width cut. The fixed-width cut
// is unconditional, so the cascade always terminates.
func Split(text string, maxUnitSize int) []string {
	if maxUnitSize < 1 || strings.TrimSpace(text) == "" {
		return nil
	}

	acc := accumulator{max: maxUnitSize, sep: paragraphSeparator}
	for _, paragraph := range paragraphRe.Split(text, -1) {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		if utf8.RuneCountInString(paragraph) <= maxUnitSize {
			acc.add(paragraph)
			continue
		}
		acc.flush()
		for _, unit := range splitOversizeParagraph(paragraph, maxUnitSize) {
			acc.add(unit)
		}
	}
	return acc.finish()
}

func splitOversizeParagraph(paragraph string, maxUnitSize int) []string {
	acc := accumulator{max: maxUnitSize}
	for _, sentence := range splitSentences(paragraph) {
		if utf8.RuneCountInString(sentence) <= maxUnitSize {
			acc.add(sentence)
			continue
		}
		acc.flush()
		for _, unit := range splitOversizeSentence(sentence, maxUnitSize) {
			acc.add(unit)
		}
	}
	return acc.finish()
}

func splitOversizeSentence(sentence string, maxUnitSize int) []string {
	acc := accumulator{max: maxUnitSize}
	for _, token := range splitTokens(sentence) {
		if utf8.RuneCountInString(token) <= maxUnitSize {
			acc.add(token)
			continue
		}
		//single pathological token, the terminal fixed-width case
		for _, piece := range fixedSplit(token, maxUnitSize) {
			acc.add(piece)
		}
	}
	return acc.finish()
}

// splitSentences cuts after Latin and CJK sentence terminators.
func splitSentences(text string) []string {
	var out []string
	var current []rune
	for _, r := range text {
		current = append(current, r)
		switch r {
		case '.', '!', '?', ';', '。', '！', '？', '；':
			out = append(out, string(current))
			current = current[:0]
		}
	}
	if len(current) > 0 {
		out = append(out, string(current))
	}
	return out
}

// splitTokens walks UAX#29 word boundaries, which handles CJK text without a
// dictionary-based segmenter.
func splitTokens(text string) []string {
	var tokens []string
	state := -1
	var token string
	for len(text) > 0 {
		token, text, state = uniseg.FirstWordInString(text, state)
		tokens = append(tokens, token)
	}
	return tokens
}

func fixedSplit(text string, maxUnitSize int) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > maxUnitSize {
		out = append(out, string(runes[:maxUnitSize]))
		runes = runes[maxUnitSize:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// accumulator packs pieces into units, flushing whenever appending the next
// piece (plus separator) would push the unit past max runes. Every piece
// handed to add must itself fit within max.
type accumulator struct {
	max   int
	sep   string
	units []string
	buf   strings.Builder
	runes int
}

func (a *accumulator) add(piece string) {
	n := utf8.RuneCountInString(piece)
	sepRunes := utf8.RuneCountInString(a.sep)
	if a.runes > 0 && a.runes+sepRunes+n > a.max {
		a.flush()
	}
	if a.runes > 0 {
		a.buf.WriteString(a.sep)
		a.runes += sepRunes
	}
	a.buf.WriteString(piece)
	a.runes += n
}

func (a *accumulator) flush() {
	if a.runes > 0 {
		a.units = append(a.units, a.buf.String())
		a.buf.Reset()
		a.runes = 0
	}
}

func (a *accumulator) finish() []string {
	a.flush()
	return a.units
}
