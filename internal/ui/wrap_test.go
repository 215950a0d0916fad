package ui

import (
	"reflect"
	"strings"
	"testing"
)

func TestWrapTextBreaksAtSpaces(t *testing.T) {
	got := wrapText("Session expired. Please sign in again.", 16)
	want := []string{"Session expired.", "Please sign in", "again."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected lines: %q", got)
	}
}

func TestWrapTextSplitsLongWords(t *testing.T) {
	got := wrapText("abcdefghij", 4)
	want := []string{"abcd", "efgh", "ij"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected lines: %q", got)
	}
}

func TestWrapTextCountsWideRunes(t *testing.T) {
	got := wrapText("本本本 ab", 4)
	want := []string{"本本", "本", "ab"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected lines: %q", got)
	}
}

func TestWrapTextKeepsNewlines(t *testing.T) {
	got := wrapText("one\ntwo", 10)
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("unexpected lines: %q", got)
	}
}

func TestWrapTextNoWidth(t *testing.T) {
	got := wrapText("whatever it is", 0)
	if len(got) != 1 || got[0] != "whatever it is" {
		t.Fatalf("unexpected lines: %q", got)
	}
}

func TestRenderWrappedStylesEachLine(t *testing.T) {
	got := renderWrapped(func(s ...string) string { return "[" + strings.Join(s, "") + "]" }, "aa bb", 2)
	if !reflect.DeepEqual(got, []string{"[aa]", "[bb]"}) {
		t.Fatalf("unexpected lines: %q", got)
	}
}
