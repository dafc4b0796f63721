package textwrap

import (
	"reflect"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestWrap(t *testing.T) {
	got := Wrap("The quick   brown fox jumps over\nthe lazy dog", 10)
	want := []string{"The quick", "brown fox", "jumps over", "the lazy", "dog"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Wrap = %q, want %q", got, want)
	}
}

func TestWrapBreaksLongWords(t *testing.T) {
	got := Wrap("see https://example.com/a/very/long/path ok", 12)
	for _, line := range got {
		if runewidth.StringWidth(line) > 12 {
			t.Fatalf("line %q exceeds width", line)
		}
	}
	if strings.Join(got, "") != "seehttps://example.com/a/very/long/pathok" {
		t.Fatalf("content lost: %q", got)
	}
}

func TestWrapWideRunes(t *testing.T) {
	got := Wrap("人工智能 新闻 摘要", 9)
	want := []string{"人工智能", "新闻 摘要"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Wrap = %q, want %q", got, want)
	}
}

func TestFillEmpty(t *testing.T) {
	if Fill("   ", 50) != "" {
		t.Fatalf("expected empty output")
	}
	if Fill("a b", 0) != "a b" {
		t.Fatalf("width 0 should not wrap")
	}
}
