package output

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pmezard/go-difflib/difflib"
)

var (
	addStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	delStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hunkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
)

// UnifiedDiff returns a unified diff of before and after for file name,
// or "" when they are equal
func UnifiedDiff(name string, before, after []byte) (string, error) {
	if string(before) == string(after) {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}

// ColorDiff colors the lines of a unified diff
func ColorDiff(diff string) string {
	lines := strings.SplitAfter(diff, "\n")
	var b strings.Builder
	for _, line := range lines {
		body := strings.TrimSuffix(line, "\n")
		nl := line[len(body):]
		switch {
		case strings.HasPrefix(body, "+++"), strings.HasPrefix(body, "---"):
			b.WriteString(titleStyle.Render(body))
		case strings.HasPrefix(body, "@@"):
			b.WriteString(hunkStyle.Render(body))
		case strings.HasPrefix(body, "+"):
			b.WriteString(addStyle.Render(body))
		case strings.HasPrefix(body, "-"):
			b.WriteString(delStyle.Render(body))
		default:
			b.WriteString(body)
		}
		b.WriteString(nl)
	}
	return b.String()
}
