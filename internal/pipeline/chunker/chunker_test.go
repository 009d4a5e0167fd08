package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{"control chars stripped", "hello\x00wor\x07ld", "helloworld"},
		{"newlines kept", "line one\nline two", "line one\nline two"},
		{"tabs kept but runs collapsed", "a\t\tb", "a b"},
		{"space runs collapsed", "too    many spaces", "too many spaces"},
		{"plain text untouched", "nothing to do here", "nothing to do here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.expected {
				t.Errorf("Clean(%q) = %q; want %q", tt.in, got, tt.expected)
			}
		})
	}
}

func TestSplit_RespectsMaxUnitSize(t *testing.T) {
	text := strings.Repeat("A short sentence. ", 40) + "\n\n" +
		strings.Repeat("Another paragraph with more words in it. ", 40)

	units := Split(text, 100)
	if len(units) < 2 {
		t.Fatalf("Expected multiple units, got %d", len(units))
	}
	for i, u := range units {
		if n := utf8.RuneCountInString(u); n > 100 {
			t.Errorf("Unit %d has %d runes, exceeds limit of 100", i, n)
		}
	}
}

func TestSplit_SmallParagraphsPacked(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph.\n\nThird paragraph."

	units := Split(text, 200)
	if len(units) != 1 {
		t.Fatalf("Expected the three small paragraphs packed into 1 unit, got %d: %v", len(units), units)
	}
	for _, want := range []string{"First paragraph.", "Second paragraph.", "Third paragraph."} {
		if !strings.Contains(units[0], want) {
			t.Errorf("Packed unit missing %q: %q", want, units[0])
		}
	}
}

func TestSplit_ContentPreserved(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. " +
		"Pack my box with five dozen liquor jugs! " +
		"How vexingly quick daft zebras jump?"

	units := Split(text, 50)
	joined := strings.Join(units, " ")
	for _, word := range strings.Fields(text) {
		if !strings.Contains(joined, word) {
			t.Errorf("Word %q lost during splitting", word)
		}
	}
}

func TestSplit_OversizeSentenceFallsBackToWords(t *testing.T) {
	// One sentence, no terminators until the end, longer than the limit.
	sentence := strings.Repeat("word ", 60) + "end."

	units := Split(sentence, 40)
	if len(units) < 2 {
		t.Fatalf("Expected sentence split on word boundaries, got %d units", len(units))
	}
	for i, u := range units {
		if utf8.RuneCountInString(u) > 40 {
			t.Errorf("Unit %d exceeds limit: %q", i, u)
		}
		if strings.Contains(u, "wor d") {
			t.Errorf("Unit %d cut inside a word: %q", i, u)
		}
	}
}

func TestSplit_PathologicalTokenTerminates(t *testing.T) {
	// A single token with no boundaries at all must still terminate
	// through the fixed-width cut.
	token := strings.Repeat("x", 1000)

	units := Split(token, 64)
	if len(units) == 0 {
		t.Fatal("Expected units for a pathological token, got none")
	}
	var total int
	for i, u := range units {
		n := utf8.RuneCountInString(u)
		if n > 64 {
			t.Errorf("Unit %d has %d runes, exceeds limit of 64", i, n)
		}
		total += n
	}
	if total != 1000 {
		t.Errorf("Fixed-width cut lost content: got %d runes back, want 1000", total)
	}
}

func TestSplit_CJK(t *testing.T) {
	text := strings.Repeat("这是一个用于测试的中文句子。", 30)

	units := Split(text, 50)
	if len(units) < 2 {
		t.Fatalf("Expected CJK text split into multiple units, got %d", len(units))
	}
	for i, u := range units {
		if n := utf8.RuneCountInString(u); n > 50 {
			t.Errorf("Unit %d has %d runes, exceeds limit of 50", i, n)
		}
	}
	joined := strings.Join(units, "")
	if utf8.RuneCountInString(joined) < utf8.RuneCountInString(text) {
		t.Error("CJK content lost during splitting")
	}
}

func TestSplit_EmptyAndInvalid(t *testing.T) {
	if units := Split("", 100); units != nil {
		t.Errorf("Expected nil for empty text, got %v", units)
	}
	if units := Split("   \n\n  ", 100); units != nil {
		t.Errorf("Expected nil for whitespace-only text, got %v", units)
	}
	if units := Split("some text", 0); units != nil {
		t.Errorf("Expected nil for zero unit size, got %v", units)
	}
}
