package render

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/typist/pkg/content"
	"github.com/openfroyo/typist/pkg/engine"
)

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		lines engine.Lines
		width int
		want  string
	}{
		{
			name:  "empty",
			lines: engine.Lines{},
			want:  "",
		},
		{
			name:  "inline fragments",
			lines: engine.Lines{engine.TextLine("Hello w"), engine.TextLine("orld")},
			want:  "Hello world",
		},
		{
			name:  "null lines render nothing",
			lines: engine.Lines{engine.TextLine("a"), {}, engine.TextLine("b")},
			want:  "ab",
		},
		{
			name: "line break",
			lines: engine.Lines{
				engine.TextLine("one"),
				engine.NodeLine(content.NewElement("br", "", nil)),
				engine.TextLine("two"),
			},
			want: "one\ntwo",
		},
		{
			name:  "rule uses width",
			lines: engine.Lines{engine.NodeLine(content.NewElement("hr", "", nil))},
			width: 3,
			want:  "\n───\n",
		},
		{
			name:  "element text",
			lines: engine.Lines{engine.NodeLine(content.NewElement("b", "bold", nil))},
			want:  "bold",
		},
		{
			name:  "empty element markup",
			lines: engine.Lines{engine.NodeLine(content.NewElement("img", "", map[string]string{"src": "x.png"}))},
			want:  `<img src="x.png"/>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.lines, tt.width); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestText_DefaultRuleWidth(t *testing.T) {
	got := Text(engine.Lines{engine.NodeLine(content.NewElement("hr", "", nil))}, 0)
	if want := "\n" + strings.Repeat("─", RuleWidth) + "\n"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestRows(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"no width", "hello world", 0, []string{"hello world"}},
		{"fits", "hello", 5, []string{"hello"}},
		{"truncated", "hello world", 5, []string{"hello"}},
		{"multi row", "ab\ncdef", 3, []string{"ab", "cde"}},
		{"wide runes", "你好世界", 5, []string{"你好"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rows(tt.text, tt.width)
			if len(got) != len(tt.want) {
				t.Fatalf("Rows() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("row %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTerminal_RedrawsInPlace(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, WithANSI(true), WithWidth(10))

	term.Sink(engine.Lines{engine.TextLine("hi")})
	if got, want := buf.String(), "\r\x1b[Jhi"; got != want {
		t.Fatalf("first frame = %q, want %q", got, want)
	}

	buf.Reset()
	term.Sink(engine.Lines{
		engine.TextLine("a"),
		engine.NodeLine(content.NewElement("br", "", nil)),
		engine.TextLine("b"),
	})
	if got, want := buf.String(), "\r\x1b[Ja\r\nb"; got != want {
		t.Fatalf("second frame = %q, want %q", got, want)
	}

	buf.Reset()
	term.Sink(engine.Lines{engine.TextLine("c")})
	if got, want := buf.String(), "\x1b[1A\r\x1b[Jc"; got != want {
		t.Fatalf("third frame = %q, want %q", got, want)
	}
}

func TestTerminal_Cursor(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, WithANSI(true), WithCursor("▌"))

	term.Sink(engine.Lines{engine.TextLine("ok")})
	if got, want := buf.String(), ansiHideCursor+"\r\x1b[Jok▌"; got != want {
		t.Fatalf("frame = %q, want %q", got, want)
	}

	buf.Reset()
	term.Finish()
	if got, want := buf.String(), "\r\x1b[Jok\r\n"+ansiShowCursor; got != want {
		t.Fatalf("finish = %q, want %q", got, want)
	}
}

func TestTerminal_Truncates(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, WithANSI(true), WithWidth(3))

	term.Sink(engine.Lines{engine.TextLine("abcdef")})
	if got, want := buf.String(), "\r\x1b[Jabc"; got != want {
		t.Fatalf("frame = %q, want %q", got, want)
	}
	if w := term.Width(); w != 3 {
		t.Errorf("Width() = %d, want 3", w)
	}
}

func TestTerminal_PlainOutputPrintsFinalFrameOnly(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, WithCursor("_"))

	term.Sink(engine.Lines{engine.TextLine("h")})
	term.Sink(engine.Lines{engine.TextLine("he")})
	if buf.Len() != 0 {
		t.Fatalf("plain output wrote %q before Finish", buf.String())
	}

	term.Finish()
	if got, want := buf.String(), "he\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	if rec.Last() != nil || rec.Len() != 0 {
		t.Fatal("new recorder is not empty")
	}

	next := rec.Next()
	typist := engine.NewTypist(engine.Props{
		Content:     engine.Actions{engine.TypeString("hey"), engine.Backspace(1)},
		TypingDelay: time.Millisecond,
	}, rec.Sink)
	if err := typist.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	select {
	case <-next:
	default:
		t.Error("Next() channel not closed after an emission")
	}

	want := []string{"", "", "h", "he", "hey", "he"}
	got := rec.Texts()
	if len(got) != len(want) {
		t.Fatalf("Texts() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, got[i], want[i])
		}
	}
	if last := Text(rec.Last(), 0); last != "he" {
		t.Errorf("Last() = %q, want %q", last, "he")
	}

	rec.Reset()
	if rec.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", rec.Len())
	}
}
