package bank

import (
	"strings"
)

// section is a heading and the lines under it, up to the next heading of
// the same or a higher level.
type section struct {
	level    int
	title    string
	lines    []string
	children []*section
}

// splitSections parses markdown into a heading tree. Text before the first
// heading lands in a level-0 root. Headings inside fenced code blocks are
// treated as text.
func splitSections(text string) *section {
	root := &section{}
	stack := []*section{root}
	inFence := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
		}

		level, title := heading(trimmed)
		if inFence || level == 0 {
			cur := stack[len(stack)-1]
			cur.lines = append(cur.lines, line)
			continue
		}

		for len(stack) > 1 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		s := &section{level: level, title: title}
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, s)
		stack = append(stack, s)
	}
	return root
}

// heading returns the ATX heading level and title of line, or 0.
func heading(line string) (int, string) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, ""
	}
	rest := line[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return 0, ""
	}
	return level, strings.TrimSpace(strings.TrimRight(strings.TrimSpace(rest), "#"))
}

// walk visits s and its descendants depth first.
func (s *section) walk(fn func(*section) bool) {
	if !fn(s) {
		return
	}
	for _, c := range s.children {
		c.walk(fn)
	}
}
