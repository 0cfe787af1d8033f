package bank

import (
	"strings"
	"testing"
)

func ownText(s *section) string {
	return strings.TrimSpace(strings.Join(s.lines, "\n"))
}

func TestSplitSections_Tree(t *testing.T) {
	text := "preamble\n# Top\nintro\n## A\na body\n### A1\nnested\n## B\nb body\n# Second\n"
	root := splitSections(text)

	if ownText(root) != "preamble" {
		t.Errorf("root body = %q", ownText(root))
	}
	if len(root.children) != 2 {
		t.Fatalf("expected 2 top-level sections, got %d", len(root.children))
	}
	top := root.children[0]
	if top.title != "Top" || top.level != 1 {
		t.Errorf("top = %q level %d", top.title, top.level)
	}
	if len(top.children) != 2 {
		t.Fatalf("expected A and B under Top, got %d", len(top.children))
	}
	a := top.children[0]
	if ownText(a) != "a body" || len(a.children) != 1 || ownText(a.children[0]) != "nested" {
		t.Errorf("section A parsed wrong: body %q, %d children", ownText(a), len(a.children))
	}
	if top.children[1].title != "B" {
		t.Errorf("expected B, got %q", top.children[1].title)
	}
}

func TestSplitSections_Empty(t *testing.T) {
	root := splitSections("")
	if ownText(root) != "" || len(root.children) != 0 {
		t.Errorf("expected empty root, got %+v", root)
	}
}

func TestAllLinesKeepsSubheadings(t *testing.T) {
	root := splitSections("## Lessons\n1. one\n### More\n2. two\n")
	lessons := root.children[0]
	items := parseItems(allLines(lessons))
	if len(items) != 2 || items[1].num != 2 || items[1].text != "two" {
		t.Errorf("items = %+v", items)
	}
}
