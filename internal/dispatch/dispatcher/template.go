package dispatcher

import (
	"fmt"
	"regexp"
)

var (
	prependRe  = regexp.MustCompile(`(?s)//PREPEND BEGIN\n(.*?)//PREPEND END`)
	templateRe = regexp.MustCompile(`(?s)//TEMPLATE BEGIN\n(.*?)//TEMPLATE END`)
	appendRe   = regexp.MustCompile(`(?s)//APPEND BEGIN\n(.*?)//APPEND END`)
)

// problemTemplate is a per-language source skeleton authored on the problem.
// The user's code replaces the template block; the prepend and append blocks
// wrap it.
type problemTemplate struct {
	Prepend  string
	Template string
	Append   string
}

func parseProblemTemplate(text string) problemTemplate {
	var t problemTemplate
	if m := prependRe.FindStringSubmatch(text); m != nil {
		t.Prepend = m[1]
	}
	if m := templateRe.FindStringSubmatch(text); m != nil {
		t.Template = m[1]
	}
	if m := appendRe.FindStringSubmatch(text); m != nil {
		t.Append = m[1]
	}
	return t
}

// applyTemplate interpolates the submitted code into the problem's template
// for the submission language. Languages without a template pass through
// unchanged.
func applyTemplate(problemTemplates map[string]string, language, code string) string {
	text, ok := problemTemplates[language]
	if !ok || text == "" {
		return code
	}
	t := parseProblemTemplate(text)
	return fmt.Sprintf("%s\n%s\n%s", t.Prepend, code, t.Append)
}
