package registry

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yosida95/uritemplate/v3"
)

// compiledTemplate pairs a parsed RFC 6570 template (used to validate
// the template string at registration time and to list its variable
// names) with a regexp derived from it, used to extract variable
// bindings back out of a concrete URI on resources/read.
//
// uritemplate/v3 only expands templates into URIs; it has no reverse
// direction, so the regexp is this package's own addition, built over
// simple ("{var}") expansions only. Reserved, fragment, and
// path-segment operators ({+var}, {#var}, {/var}, ...) are accepted by
// the parser but matched the same as a plain {var} capture, which is
// sufficient for every resource template shape this runtime registers.
type compiledTemplate struct {
	tmpl    *uritemplate.Template
	varname []string
	matcher *regexp.Regexp
}

var varExpr = regexp.MustCompile(`\{[+#./;?&]?([^}]+)\}`)

func compileTemplate(raw string) (*compiledTemplate, error) {
	tmpl, err := uritemplate.New(raw)
	if err != nil {
		return nil, fmt.Errorf("parse uri template %q: %w", raw, err)
	}

	var pattern strings.Builder
	pattern.WriteByte('^')
	last := 0
	var names []string
	for _, loc := range varExpr.FindAllStringSubmatchIndex(raw, -1) {
		pattern.WriteString(regexp.QuoteMeta(raw[last:loc[0]]))
		name := raw[loc[2]:loc[3]]
		// A variable list like {owner,repo} expands to N path segments;
		// registries in this runtime only ever declare single-variable
		// expansions, so take the first name and capture greedily up to
		// the next literal.
		if idx := strings.IndexAny(name, ",*"); idx >= 0 {
			name = name[:idx]
		}
		name = sanitizeGroupName(name)
		names = append(names, name)
		pattern.WriteString(fmt.Sprintf("(?P<%s>[^/]+)", name))
		last = loc[1]
	}
	pattern.WriteString(regexp.QuoteMeta(raw[last:]))
	pattern.WriteByte('$')

	matcher, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, fmt.Errorf("build matcher for %q: %w", raw, err)
	}

	return &compiledTemplate{tmpl: tmpl, varname: names, matcher: matcher}, nil
}

// sanitizeGroupName maps a template variable name to a valid Go regexp
// named-capture-group identifier, replacing any character RFC 6570
// allows but Go's regexp syntax doesn't (e.g. '.', '%').
func sanitizeGroupName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Varnames returns the template's declared variable names, for
// registration-time validation against a handler's expected parameters.
func (c *compiledTemplate) Varnames() []string { return c.tmpl.Varnames() }

// Match extracts variable bindings from uri if it matches the template
// shape, reporting ok=false otherwise.
func (c *compiledTemplate) Match(uri string) (map[string]string, bool) {
	m := c.matcher.FindStringSubmatch(uri)
	if m == nil {
		return nil, false
	}
	out := make(map[string]string, len(c.varname))
	for i, name := range c.matcher.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		out[name] = m[i]
	}
	return out, true
}
