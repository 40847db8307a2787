package analyzer

import (
	"go/ast"
	"strings"
)

// parseDocComment turns a header doc comment into one documentation string.
// Doxygen tags are rewritten into prose: "@param name text" becomes
// "Parameter name: text", "@return text" becomes "Returns: text" and
// "@brief" is dropped.
func parseDocComment(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "@") {
			parts := strings.SplitN(line, " ", 2)
			tagName := parts[0]
			var value string
			if len(parts) > 1 {
				value = strings.TrimSpace(parts[1])
			}

			switch tagName {
			case "@brief":
				line = value
			case "@param":
				name, rest, _ := strings.Cut(value, " ")
				line = "Parameter " + name + ": " + strings.TrimSpace(rest)
			case "@return", "@returns":
				line = "Returns: " + value
			}
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
