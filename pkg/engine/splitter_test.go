package engine

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestSplitters(t *testing.T) {
	tests := []struct {
		name  string
		split Splitter
		input string
		want  []string
	}{
		{"codepoints ascii", SplitCodePoints, "Hi!", []string{"H", "i", "!"}},
		{"codepoints empty", SplitCodePoints, "", []string{}},
		{"codepoints multibyte", SplitCodePoints, "héllo", []string{"h", "é", "l", "l", "o"}},
		{"codepoints flag", SplitCodePoints, "🇫🇷", []string{"🇫", "🇷"}},
		{"graphemes flag", SplitGraphemes, "🇫🇷", []string{"🇫🇷"}},
		{"graphemes combining", SplitGraphemes, "e\u0301a", []string{"e\u0301", "a"}},
		{"graphemes empty", SplitGraphemes, "", nil},
		{"words", SplitWords, "hello big world", []string{"hello ", "big ", "world"}},
		{"words leading space", SplitWords, "  hi there", []string{"  ", "hi ", "there"}},
		{"words trailing space", SplitWords, "hi  ", []string{"hi  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.split(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if joined := strings.Join(got, ""); joined != tt.input {
				t.Errorf("units do not reproduce input: %q", joined)
			}
		})
	}
}

func TestSplitterByName(t *testing.T) {
	for _, name := range []string{"", SplitterCodePoint, SplitterGrapheme, SplitterWord} {
		if _, err := SplitterByName(name); err != nil {
			t.Errorf("SplitterByName(%q) failed: %v", name, err)
		}
	}
	if _, err := SplitterByName("syllable"); err == nil {
		t.Error("expected error for unknown splitter")
	}
}

func TestTypist_GraphemeSplitter(t *testing.T) {
	sink := runToEnd(t, []Action{TypeString("🇫🇷!"), Backspace(1)}, Props{
		Splitter:       SplitGraphemes,
		TypingDelay:    time.Millisecond,
		BackspaceDelay: time.Millisecond,
	})

	want := []Lines{
		{},
		{TextLine("")},
		{TextLine("🇫🇷")},
		{TextLine("🇫🇷!")},
		{TextLine("🇫🇷")},
	}
	got := sink.snapshots()
	if len(got) != len(want) {
		t.Fatalf("expected %d emissions, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("emission %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}
