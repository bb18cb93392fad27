package analyst

import (
	"regexp"
	"strings"
)

var (
	boldPattern    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	headerPattern  = regexp.MustCompile(`(?m)^#{1,6}\s*(.+)$`)
	// only at a block boundary so prose like "the next step is" survives
	nextStepsStart = regexp.MustCompile(`(?i)(?:^|<br/>|\n)\s*(?:<b>|\*\*)?next steps?\b`)
)

// toHTML converts the markdown the model slips into despite instructions to the
// HTML fragment contract: <b>, <br/>, <ul><li>.
func toHTML(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = headerPattern.ReplaceAllString(text, "<b>$1</b>")
	text = boldPattern.ReplaceAllString(text, "<b>$1</b>")

	lines := strings.Split(text, "\n")
	var out strings.Builder
	inList := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		isBullet := strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") || strings.HasPrefix(trimmed, "• ")
		switch {
		case isBullet:
			if !inList {
				out.WriteString("<ul>")
				inList = true
			}
			out.WriteString("<li>" + strings.TrimSpace(strings.TrimLeft(trimmed, "-*• ")) + "</li>")
		case trimmed == "":
			if inList {
				out.WriteString("</ul>")
				inList = false
			}
			out.WriteString("<br/>")
		default:
			if inList {
				out.WriteString("</ul>")
				inList = false
			}
			out.WriteString(trimmed + "<br/>")
		}
	}
	if inList {
		out.WriteString("</ul>")
	}
	html := out.String()
	for strings.Contains(html, "<br/><br/><br/>") {
		html = strings.ReplaceAll(html, "<br/><br/><br/>", "<br/><br/>")
	}
	return strings.TrimSuffix(html, "<br/>")
}

// stripNextSteps removes a trailing "Next Steps" section the model keeps
// adding despite the prompt forbidding it.
func stripNextSteps(html string) string {
	loc := nextStepsStart.FindStringIndex(html)
	if loc == nil {
		return html
	}
	trimmed := strings.TrimRight(html[:loc[0]], " \n")
	for _, suffix := range []string{"<br/>", "<ul>", "<li>"} {
		trimmed = strings.TrimSuffix(trimmed, suffix)
	}
	return strings.TrimRight(trimmed, " \n")
}
