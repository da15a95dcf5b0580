package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dynconf/dynconf/pkg/util"
)

// Strict-undefined support. pongo2 silently renders unresolvable variables
// as an empty string, which turns a typo in a data-file column name into a
// broken command pushed at a live device. Before executing a template, the
// variable roots referenced by its tags are checked against the bindings
// and any miss fails the render.

var (
	tagPattern     = regexp.MustCompile(`\{\{(.*?)\}\}|\{%(.*?)%\}`)
	stringPattern  = regexp.MustCompile(`"[^"]*"|'[^']*'`)
	identPattern   = regexp.MustCompile(`[.|]?\s*[A-Za-z_][A-Za-z0-9_]*`)
	setPattern     = regexp.MustCompile(`^\s*-?\s*set\s+([A-Za-z_][A-Za-z0-9_]*)`)
	forPattern     = regexp.MustCompile(`^\s*-?\s*for\s+(.+?)\s+in\s`)
	keywordPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// keywords are tag names, operators, and literals that look like variable
// references to the tokenizer but never resolve through the context.
var keywords = map[string]bool{
	"if": true, "elif": true, "else": true, "endif": true,
	"for": true, "endfor": true, "in": true, "not": true,
	"and": true, "or": true, "is": true, "set": true,
	"with": true, "endwith": true, "block": true, "endblock": true,
	"include": true, "extends": true, "macro": true, "endmacro": true,
	"comment": true, "endcomment": true, "filter": true, "endfilter": true,
	"true": true, "false": true, "True": true, "False": true,
	"nil": true, "none": true, "None": true, "forloop": true, "reversed": true,
}

// checkUndefined reports the first template variable root that is neither
// bound nor defined by an enclosing set/for tag.
func checkUndefined(name, source string, vars map[string]any) error {
	defined := map[string]bool{}

	for _, tag := range tagPattern.FindAllStringSubmatch(source, -1) {
		body := tag[1]
		if body == "" {
			body = tag[2]
		}
		body = stringPattern.ReplaceAllString(body, `""`)

		// {% set x = ... %} and {% for x in ... %} introduce names.
		if m := setPattern.FindStringSubmatch(body); m != nil {
			defined[m[1]] = true
		}
		if m := forPattern.FindStringSubmatch(body); m != nil {
			for _, target := range strings.Split(m[1], ",") {
				defined[strings.TrimSpace(target)] = true
			}
		}

		for _, tok := range identPattern.FindAllString(body, -1) {
			// Attribute access (.field) and filters (|upper) are not
			// context roots.
			if strings.HasPrefix(tok, ".") || strings.HasPrefix(tok, "|") {
				continue
			}
			ident := strings.TrimSpace(tok)
			if !keywordPattern.MatchString(ident) || keywords[ident] || defined[ident] {
				continue
			}
			if _, ok := vars[ident]; !ok {
				return &util.RenderError{
					Template: name,
					Err:      fmt.Errorf("undefined variable %q", ident),
				}
			}
		}
	}
	return nil
}
