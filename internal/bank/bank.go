// Package bank extracts typed memory entries from a structured markdown
// memory bank: decisions, lessons, role state, blockers, open questions and
// status items.
package bank

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rcliao/cogmem/internal/model"
)

var (
	adrRe      = regexp.MustCompile(`(?i)^ADR[-_ ]?\d+$`)
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	numberedRe = regexp.MustCompile(`^(\d+)[.)]\s+(.*)$`)
	checkboxRe = regexp.MustCompile(`^\[([ xX])\]\s*(.*)$`)
	separator  = regexp.MustCompile(`^:?-{3,}:?$`)
	slugRe     = regexp.MustCompile(`[^a-z0-9]+`)
)

// idNamespace seeds content-addressed entry IDs.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/rcliao/cogmem/bank"))

const (
	TagCompleted  = "completed"
	TagInProgress = "in-progress"
)

type sectionKind int

const (
	sectionOther sectionKind = iota
	sectionDecisions
	sectionLessons
	sectionRoles
	sectionBlockers
	sectionQuestions
	sectionStatus
)

func classify(title string) sectionKind {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "decision"):
		return sectionDecisions
	case strings.Contains(t, "lesson"):
		return sectionLessons
	case strings.Contains(t, "role") && strings.Contains(t, "state"):
		return sectionRoles
	case strings.Contains(t, "blocker"):
		return sectionBlockers
	case strings.Contains(t, "question"):
		return sectionQuestions
	case strings.Contains(t, "status"), statusTag(t) != "":
		return sectionStatus
	}
	return sectionOther
}

// statusTag maps a status heading to the tag its items inherit.
func statusTag(title string) string {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "completed"), strings.Contains(t, "done"), strings.Contains(t, "shipped"):
		return TagCompleted
	case strings.Contains(t, "in progress"), strings.Contains(t, "in-progress"),
		strings.Contains(t, "current work"), strings.Contains(t, "active"):
		return TagInProgress
	}
	return ""
}

// Extract returns the memory entries found in markdown, in document order.
// IDs are unique within the result.
func Extract(markdown string) []model.MemoryEntry {
	x := &extractor{seen: make(map[string]bool), out: []model.MemoryEntry{}}

	splitSections(markdown).walk(func(s *section) bool {
		if s.level <= 1 && hasClassifiedChild(s) {
			return true
		}
		switch classify(s.title) {
		case sectionDecisions:
			x.decisions(s)
		case sectionLessons:
			x.lessons(s)
		case sectionRoles:
			x.roles(s)
		case sectionBlockers:
			x.bullets(s, model.KindBlocker, true)
		case sectionQuestions:
			x.bullets(s, model.KindQuestion, false)
		case sectionStatus:
			x.status(s, statusTag(s.title))
		default:
			return true
		}
		return false
	})
	return x.out
}

func hasClassifiedChild(s *section) bool {
	for _, c := range s.children {
		if classify(c.title) != sectionOther {
			return true
		}
	}
	return false
}

type extractor struct {
	seen map[string]bool
	out  []model.MemoryEntry
}

func (x *extractor) add(e model.MemoryEntry) {
	if e.Content == "" || x.seen[e.ID] {
		return
	}
	x.seen[e.ID] = true
	x.out = append(x.out, e)
}

func (x *extractor) decisions(s *section) {
	lines := allLines(s)
	for _, row := range tableRows(lines) {
		var id, date string
		var parts []string
		for _, cell := range row {
			switch {
			case cell == "":
			case id == "" && adrRe.MatchString(cell):
				id = strings.ToUpper(cell)
			case date == "" && dateRe.MatchString(cell):
				date = dateRe.FindString(cell)
			default:
				parts = append(parts, cell)
			}
		}
		if len(parts) == 0 {
			continue
		}
		content := strings.Join(parts, " - ")
		e := model.MemoryEntry{Kind: model.KindDecision, Content: content, Date: date}
		if id != "" {
			e.ID = "decision-" + strings.ToLower(id)
			e.Content = id + ": " + content
			e.Tags = []string{id}
		} else {
			e.ID = contentID(model.KindDecision, content)
		}
		x.add(e)
	}
	for _, it := range parseItems(lines) {
		x.add(model.MemoryEntry{ID: contentID(model.KindDecision, it.text), Kind: model.KindDecision, Content: it.text})
	}
}

func (x *extractor) lessons(s *section) {
	for _, it := range parseItems(allLines(s)) {
		id := contentID(model.KindLesson, it.text)
		if it.num > 0 {
			id = "lesson-" + strconv.Itoa(it.num)
		}
		x.add(model.MemoryEntry{ID: id, Kind: model.KindLesson, Content: it.text})
	}
}

func (x *extractor) roles(s *section) {
	for _, c := range s.children {
		role := strings.TrimSpace(c.title)
		content := strings.TrimSpace(strings.Join(allLines(c), "\n"))
		if role == "" || content == "" {
			continue
		}
		x.add(model.MemoryEntry{
			ID:      "role-" + slug(role),
			Kind:    model.KindRoleState,
			Content: content,
			Role:    role,
		})
	}
}

func (x *extractor) bullets(s *section, kind model.Kind, skipPlaceholders bool) {
	for _, it := range parseItems(allLines(s)) {
		if skipPlaceholders && isPlaceholder(it.text) {
			continue
		}
		x.add(model.MemoryEntry{ID: contentID(kind, it.text), Kind: kind, Content: it.text})
	}
}

func (x *extractor) status(s *section, tag string) {
	for _, it := range parseItems(s.lines) {
		t := tag
		switch it.check {
		case checked:
			t = TagCompleted
		case unchecked:
			t = TagInProgress
		}
		e := model.MemoryEntry{ID: contentID(model.KindStatus, it.text), Kind: model.KindStatus, Content: it.text}
		if t != "" {
			e.Tags = []string{t}
		}
		x.add(e)
	}
	for _, c := range s.children {
		childTag := statusTag(c.title)
		if childTag == "" {
			childTag = tag
		}
		x.status(c, childTag)
	}
}

type checkState int

const (
	noCheckbox checkState = iota
	checked
	unchecked
)

type item struct {
	text  string
	num   int
	check checkState
}

// parseItems collects bullet and numbered list items. Indented lines that
// follow an item continue it.
func parseItems(lines []string) []item {
	var items []item
	cur := -1
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			cur = -1
			continue
		}

		if m := numberedRe.FindStringSubmatch(t); m != nil {
			n, _ := strconv.Atoi(m[1])
			items = append(items, item{text: m[2], num: n})
			cur = len(items) - 1
			continue
		}
		if len(t) >= 2 && strings.ContainsRune("-*+", rune(t[0])) && (t[1] == ' ' || t[1] == '\t') {
			it := item{text: strings.TrimSpace(t[2:])}
			if m := checkboxRe.FindStringSubmatch(it.text); m != nil {
				it.text = m[2]
				it.check = unchecked
				if m[1] != " " {
					it.check = checked
				}
			}
			items = append(items, it)
			cur = len(items) - 1
			continue
		}
		if t == "-" || t == "*" {
			items = append(items, item{text: t})
			cur = len(items) - 1
			continue
		}

		if cur >= 0 && (line[0] == ' ' || line[0] == '\t') {
			items[cur].text += " " + t
			continue
		}
		cur = -1
	}

	out := items[:0]
	for _, it := range items {
		it.text = strings.TrimSpace(it.text)
		if it.text != "" {
			out = append(out, it)
		}
	}
	return out
}

// tableRows returns the data rows of every markdown table in lines, without
// header and separator rows.
func tableRows(lines []string) [][]string {
	var rows [][]string
	var table [][]string
	flush := func() {
		if len(table) >= 2 && isSeparator(table[1]) {
			table = table[2:]
		}
		for _, r := range table {
			if !isSeparator(r) {
				rows = append(rows, r)
			}
		}
		table = nil
	}

	for _, line := range lines {
		t := strings.TrimSpace(line)
		if !strings.HasPrefix(t, "|") {
			flush()
			continue
		}
		t = strings.TrimSuffix(strings.TrimPrefix(t, "|"), "|")
		cells := strings.Split(t, "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		table = append(table, cells)
	}
	flush()
	return rows
}

func isSeparator(cells []string) bool {
	for _, c := range cells {
		if !separator.MatchString(strings.ReplaceAll(c, " ", "")) {
			return false
		}
	}
	return len(cells) > 0
}

func isPlaceholder(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.Trim(t, "*_`()")
	t = strings.TrimRight(t, ".!:;,")
	switch strings.TrimSpace(t) {
	case "none", "n/a", "na", "-", "":
		return true
	}
	return false
}

// allLines flattens a section and its subsections back into lines,
// keeping subsection headings as text.
func allLines(s *section) []string {
	lines := append([]string{}, s.lines...)
	for _, c := range s.children {
		lines = append(lines, "")
		lines = append(lines, strings.Repeat("#", c.level)+" "+c.title)
		lines = append(lines, allLines(c)...)
	}
	return lines
}

// contentID derives a stable ID from kind and content, so reordering a list
// does not change its entries' IDs.
func contentID(kind model.Kind, content string) string {
	u := uuid.NewSHA1(idNamespace, []byte(string(kind)+"\x00"+content))
	return string(kind) + "-" + u.String()[:8]
}

func slug(s string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
