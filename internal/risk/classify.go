package risk

import (
	"slices"
	"strconv"
	"strings"
)

// DefaultSection names content scanned without an explicit section.
const DefaultSection = "content"

type span struct{ start, end int }

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

// Classify runs every matcher over content and derives the risk level for
// scanContext. It is pure: the same input always yields the same findings,
// and matched text never leaves this function.
func Classify(section, content string, scanContext ScanContext) Findings {
	return ClassifySections([]Section{{Name: section, Content: content}}, scanContext)
}

// ClassifySections classifies several named pieces of content as one unit.
// Offsets are relative to each section's own content.
func ClassifySections(sections []Section, scanContext ScanContext) Findings {
	detected := make([]Detection, 0)
	used := make(map[string]bool, len(sections))
	for _, sec := range sections {
		name := sectionKey(sec.Name, used)
		detected = append(detected, detect(name, sec.Content)...)
	}

	summary := make(map[Category]int)
	for _, d := range detected {
		summary[d.Category]++
	}
	level := riskLevel(detected, summary)
	return Findings{
		Detected:         detected,
		RiskLevel:        level,
		RequiresOverride: level != LevelNone && scanContext == ContextExport,
		Summary:          summary,
	}
}

func detect(section, content string) []Detection {
	var taken []span
	var out []Detection
	for _, m := range matchers {
		for _, loc := range m.re.FindAllStringIndex(content, -1) {
			s := span{start: loc[0], end: loc[1]}
			if slices.ContainsFunc(taken, s.overlaps) {
				continue
			}
			taken = append(taken, s)
			out = append(out, Detection{
				DetectionID:     detectionID(section, m.category, s),
				Section:         section,
				Category:        m.category,
				Pattern:         m.id,
				StartIndex:      s.start,
				EndIndex:        s.end,
				Severity:        m.severity,
				SuggestedAction: m.action,
				HIPAAIdentifier: m.hipaa,
			})
		}
	}
	slices.SortFunc(out, func(a, b Detection) int {
		return a.StartIndex - b.StartIndex
	})
	return out
}

func riskLevel(detected []Detection, summary map[Category]int) Level {
	if len(detected) == 0 {
		return LevelNone
	}
	if len(summary) >= 2 {
		return LevelHigh
	}
	worst := SeverityMedium
	for _, d := range detected {
		switch d.Severity {
		case SeverityCritical:
			return LevelHigh
		case SeverityHigh:
			worst = SeverityHigh
		}
	}
	if worst == SeverityHigh {
		return LevelMedium
	}
	return LevelLow
}

func detectionID(section string, c Category, s span) string {
	return section + ":" + string(c) + ":" + strconv.Itoa(s.start) + ":" + strconv.Itoa(s.end)
}

// knownSections are the section keys a detection id may carry. Any other
// caller-supplied name is reported as GenericSection so free text (a patient
// name used as a column header, say) never reaches an id.
var knownSections = map[string]bool{
	DefaultSection: true,
	"title":        true,
	"abstract":     true,
	"introduction": true,
	"background":   true,
	"methods":      true,
	"results":      true,
	"discussion":   true,
	"conclusion":   true,
	"references":   true,
	"appendix":     true,
	"summary":      true,
	"notes":        true,
	"data":         true,
	"metadata":     true,
	"tables":       true,
	"figures":      true,
	"supplement":   true,
}

// GenericSection replaces section names outside the known vocabulary.
const GenericSection = "section"

// sectionKey reduces a section name to lowercase ASCII letters and maps it
// onto the known vocabulary. Keys already used in the scan get a letter
// suffix so detection ids stay unique.
func sectionKey(name string, used map[string]bool) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	base := b.String()
	switch {
	case base == "":
		base = DefaultSection
	case !knownSections[base]:
		base = GenericSection
	}
	key := base
	for i := 1; used[key]; i++ {
		key = base + letters(i)
	}
	used[key] = true
	return key
}

// letters renders n >= 1 as a bijective base-26 suffix: 1 -> a, 26 -> z, 27 -> aa.
func letters(n int) string {
	var out []byte
	for n > 0 {
		n--
		out = append(out, byte('a'+n%26))
		n /= 26
	}
	slices.Reverse(out)
	return string(out)
}
