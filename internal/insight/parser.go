package insight

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// rule is one pattern in a field's fallback chain. extract returns false to let
// the next rule try.
type rule[T any] struct {
	re      *regexp.Regexp
	extract func(m []string) (T, bool)
}

func firstMatch[T any](text string, chain []rule[T]) (T, bool) {
	for _, r := range chain {
		m := r.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, ok := r.extract(m); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

var (
	headingRe = regexp.MustCompile(`(?m)^#{2,3}[ \t]+(.+?)[ \t]*$`)

	titleChain = []rule[string]{
		{regexp.MustCompile(`(?m)^#{1,3}[ \t]*🎯[ \t]*(.+?)[ \t]*$`), cleanCapture},
		{regexp.MustCompile(`(?m)^[ \t]*🎯[ \t]*(.+?)[ \t]*$`), cleanCapture},
	}

	actionStyles = []*regexp.Regexp{
		// **[UX/UI]** description
		regexp.MustCompile(`(?m)^[ \t]*(?:\d+\.[ \t]*|[-*][ \t]*)?\*\*\[([^\]\n]+)\]:?\*\*[ \t]*:?[ \t]*(.*)$`),
		// - [UX/UI] description
		regexp.MustCompile(`(?m)^[ \t]*[-*][ \t]*\[([^\]\n]+)\][ \t]*:?[ \t]*(.*)$`),
	}

	ownerChain = []rule[Owner]{
		// **Squad:** `Pagamentos` @ana
		{regexp.MustCompile("(?i)(?:\\*\\*)?Squad:?(?:\\*\\*)?:?[ \\t]*`([^`\\n]+)`[ \\t]*[-–—|,]?[ \\t]*(@[\\w.\\-]+)"), ownerFrom},
		// **Squad:** Pagamentos @ana
		{regexp.MustCompile(`(?i)(?:\*\*)?Squad:?(?:\*\*)?:?[ \t]*([^@\n]+?)[ \t]*[-–—|,]?[ \t]*(@[\w.\-]+)`), ownerFrom},
		// **Responsável:** Pagamentos (Ana Souza)
		{regexp.MustCompile(`(?i)(?:\*\*)?(?:Squad|Respons[aá]vel|Owner):?(?:\*\*)?:?[ \t]*([^(\n]+?)[ \t]*\(([^)\n]+)\)`), ownerFrom},
	}

	impactChain = []rule[string]{
		{regexp.MustCompile(`(?i)\*\*Impacto:?\*\*:?[ \t]*(.+)`), cleanCapture},
		{regexp.MustCompile(`(?im)^[ \t]*[-*]?[ \t]*Impacto[ \t]*:[ \t]*(.+)$`), cleanCapture},
	}

	violationChain = []rule[string]{
		{regexp.MustCompile(`(?i)\*\*Viola(?:ção|cao):?\*\*:?[ \t]*(.+)`), cleanCapture},
		{regexp.MustCompile(`(?im)^[ \t]*[-*]?[ \t]*Viola(?:ção|cao)[ \t]*:[ \t]*(.+)$`), cleanCapture},
	}

	ticketsLineRe  = regexp.MustCompile(`(?im)^[ \t]*[-*]?[ \t]*(?:\*\*)?Tickets(?:\*\*)?[ \t]*:[ \t]*(?:\*\*)?[ \t]*(.+)$`)
	evidenceCounts = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\((\d+)[ \t]*tickets?\)`),
		regexp.MustCompile(`(?i)total:?[ \t]*(\d+)`),
	}
	evidenceIDRe = regexp.MustCompile(`\b[A-Za-z][A-Za-z0-9]*(?:-[A-Za-z0-9]+)*-\d+\b|\b\d+\b`)

	findingRe = regexp.MustCompile(`^[ \t]*[-*][ \t]*(.+?)[ \t]*\((P[23])[ \t]*[-–—:][ \t]*(\d+)[^)]*\)[ \t]*\.?$`)
)

// Parse extracts an ActionableInsight from model markdown. It never fails:
// every field has a fallback and any panic yields DefaultInsight. The returned
// warnings list the fields that fell back.
func Parse(markdown string) (result ActionableInsight, warnings []string) {
	defer func() {
		if r := recover(); r != nil {
			result = DefaultInsight()
			warnings = append(warnings, fmt.Sprintf("parse failed, using default insight: %v", r))
		}
	}()

	result.Title = DefaultTitle
	if title, ok := firstMatch(markdown, titleChain); ok {
		result.Title = title
	} else {
		warnings = append(warnings, "title not found, using default")
	}

	result.Actions = parseActions(scope(markdown, "acoes recomendadas"))
	if len(result.Actions) == 0 {
		warnings = append(warnings, "no actions extracted")
	}

	result.Owner = DefaultOwner
	if owner, ok := firstMatch(scope(markdown, "responsavel"), ownerChain); ok {
		result.Owner = owner
	} else {
		warnings = append(warnings, "owner not found, using default")
	}

	result.DeltaAnalysis.Impact = DefaultImpact
	if impact, ok := firstMatch(markdown, impactChain); ok {
		result.DeltaAnalysis.Impact = impact
	} else {
		warnings = append(warnings, "impact not found, using default")
	}

	result.DeltaAnalysis.Violation = DefaultViolation
	if violation, ok := firstMatch(markdown, violationChain); ok {
		result.DeltaAnalysis.Violation = violation
	} else {
		warnings = append(warnings, "violation not found, using default")
	}

	result.Evidence = parseEvidence(scope(markdown, "evidencias"))
	result.OtherFindings = parseFindings(section(markdown, "outros achados"))

	return result, warnings
}

func parseActions(text string) []Action {
	actions := []Action{}
	for _, re := range actionStyles {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			desc := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(m[2]), ":-–— "))
			desc = strings.TrimSpace(strings.Trim(desc, "*"))
			if desc == "" {
				continue
			}
			actions = append(actions, Action{Type: actionType(m[1]), Description: desc})
		}
		if len(actions) > 0 {
			break
		}
	}
	return actions
}

func actionType(category string) ActionType {
	c := strings.ToLower(category)
	switch {
	case strings.Contains(c, "backend"):
		return ActionBackend
	case strings.Contains(c, "ops"), strings.Contains(c, "process"):
		return ActionOpsProcess
	default:
		return ActionUXUI
	}
}

func ownerFrom(m []string) (Owner, bool) {
	squad := strings.TrimSpace(strings.Trim(strings.TrimSpace(m[1]), "*`[]"))
	responsible := strings.TrimSpace(strings.Trim(strings.TrimSpace(m[2]), "*`[]"))
	if squad == "" || responsible == "" {
		return Owner{}, false
	}
	return Owner{Squad: squad, Responsible: responsible}, true
}

func parseEvidence(markdown string) *Evidence {
	m := ticketsLineRe.FindStringSubmatch(markdown)
	if m == nil {
		return nil
	}
	line := m[1]

	var count *int
	for _, re := range evidenceCounts {
		if cm := re.FindStringSubmatchIndex(line); cm != nil {
			if n, err := strconv.Atoi(line[cm[2]:cm[3]]); err == nil {
				count = &n
			}
			line = line[:cm[0]] + line[cm[1]:]
			break
		}
	}

	var ids []string
	seen := make(map[string]bool)
	for _, id := range evidenceIDRe.FindAllString(line, -1) {
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	return &Evidence{Tickets: ids, Count: count}
}

func parseFindings(block string) []OtherFinding {
	var findings []OtherFinding
	for _, line := range strings.Split(block, "\n") {
		m := findingRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		count, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		title := strings.TrimSpace(strings.Trim(m[1], "*"))
		if title == "" {
			continue
		}
		findings = append(findings, OtherFinding{Title: title, Priority: Priority(m[2]), Count: count})
	}
	return findings
}

// section returns the body under the first heading containing one of names,
// compared without case or accents. Missing headings yield "".
func section(markdown string, names ...string) string {
	headings := headingRe.FindAllStringSubmatchIndex(markdown, -1)
	for i, h := range headings {
		title := fold(markdown[h[2]:h[3]])
		for _, name := range names {
			if !strings.Contains(title, name) {
				continue
			}
			end := len(markdown)
			if i+1 < len(headings) {
				end = headings[i+1][0]
			}
			return markdown[h[1]:end]
		}
	}
	return ""
}

// scope is section with the whole document as fallback.
func scope(markdown string, names ...string) string {
	if s := section(markdown, names...); strings.TrimSpace(s) != "" {
		return s
	}
	return markdown
}

func cleanCapture(m []string) (string, bool) {
	s := strings.TrimSpace(m[1])
	s = strings.TrimSpace(strings.Trim(s, "*[]"))
	return s, s != ""
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
