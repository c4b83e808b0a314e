// internal/browser/cdpdriver/selector.go
package cdpdriver

import (
	"fmt"
	"strings"
)

// toSearchQuery converts a locator in the engine's selector dialect into a
// query accepted by DOM.performSearch, which understands both CSS and XPath.
//
//	xpath=<expr>   the expression, anchored at the document when relative
//	text=<literal> the innermost element whose text contains the literal
//	css=<sel>      the selector
//	anything else  treated as CSS
func toSearchQuery(selector string) string {
	switch {
	case strings.HasPrefix(selector, "xpath="):
		expr := strings.TrimSpace(strings.TrimPrefix(selector, "xpath="))
		if !strings.HasPrefix(expr, "/") && !strings.HasPrefix(expr, "(") {
			expr = "/" + expr
		}
		return expr
	case strings.HasPrefix(selector, "text="):
		text := unquote(strings.TrimSpace(strings.TrimPrefix(selector, "text=")))
		lit := xpathLiteral(text)
		return fmt.Sprintf(
			"//*[not(self::script or self::style)][contains(normalize-space(.), %s) and not(*[contains(normalize-space(.), %s)])]",
			lit, lit,
		)
	case strings.HasPrefix(selector, "css="):
		return strings.TrimSpace(strings.TrimPrefix(selector, "css="))
	default:
		return selector
	}
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// xpathLiteral quotes s for use in an XPath 1.0 expression. XPath has no
// escape sequences, so strings with both quote kinds are built with concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts)-1)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
