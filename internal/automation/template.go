package automation

import "regexp"

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Render substitutes {{name}} placeholders from vars. Unknown names render
// as the empty string.
func Render(template string, vars map[string]string) string {
	if template == "" {
		return ""
	}
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		return vars[name]
	})
}
