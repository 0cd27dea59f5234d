package transmission

import "regexp"

// Placeholder marker substituted with each contact's name. Matching is
// case-insensitive: {nome}, {Nome} and {NOME} all substitute.
var placeholderRe = regexp.MustCompile(`(?i)\{nome\}`)

// Render personalizes a message template for one contact by replacing
// every placeholder occurrence with the given name.
func Render(template, name string) string {
	return placeholderRe.ReplaceAllLiteralString(template, name)
}
