// Package uritemplate matches concrete resource URIs against
// scheme://host/segment/{var}/... patterns and expands templates back into
// concrete URIs. It is hand-written rather than built on a general RFC 6570
// library: the matching semantics needed here (single-segment {var} vs.
// reserved multi-segment {var*}, paired with authorization-predicate lookup
// keyed by the raw template string) are narrow enough that a small
// purpose-built matcher is clearer than adapting a general one.
package uritemplate

import (
	"net/url"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{[^{}]+\}`)

// IsTemplate reports whether s contains any {...} placeholder.
func IsTemplate(s string) bool {
	return placeholderPattern.MatchString(s)
}

// compiled holds a template's match regexp and the ordered variable names
// captured by its groups.
type compiled struct {
	re   *regexp.Regexp
	vars []string
}

// compile builds a matching regexp for a template string. {var} matches a
// single path segment ([^/]+); {var*} is a reserved-expansion capture
// matching the remainder greedily (.+).
func compile(template string) *compiled {
	var vars []string
	var b strings.Builder
	b.WriteByte('^')

	rest := template
	for {
		loc := placeholderPattern.FindStringIndex(rest)
		if loc == nil {
			b.WriteString(regexp.QuoteMeta(rest))
			break
		}
		b.WriteString(regexp.QuoteMeta(rest[:loc[0]]))
		placeholder := rest[loc[0]+1 : loc[1]-1]
		name := placeholder
		reserved := strings.HasSuffix(placeholder, "*")
		if reserved {
			name = strings.TrimSuffix(placeholder, "*")
		}
		vars = append(vars, name)
		if reserved {
			b.WriteString("(.+)")
		} else {
			b.WriteString("([^/]+)")
		}
		rest = rest[loc[1]:]
	}
	b.WriteByte('$')

	return &compiled{re: regexp.MustCompile(b.String()), vars: vars}
}

// Match tests uri against template. On success it returns the captured
// variables (URL-decoded) plus any template query parameters bound from the
// concrete URI's query string; on no match it returns (nil, false).
func Match(uri, template string) (map[string]string, bool) {
	uriPath, uriQuery := splitQuery(uri)
	templatePath, templateQuery := splitQuery(template)

	c := compile(templatePath)
	m := c.re.FindStringSubmatch(uriPath)
	if m == nil {
		return nil, false
	}

	params := make(map[string]string, len(c.vars))
	for i, name := range c.vars {
		decoded, err := url.QueryUnescape(m[i+1])
		if err != nil {
			decoded = m[i+1]
		}
		params[name] = decoded
	}

	if templateQuery != "" {
		values, err := url.ParseQuery(uriQuery)
		if err == nil {
			for _, key := range strings.Split(templateQuery, "&") {
				name := strings.TrimSuffix(strings.TrimPrefix(key, "{"), "}")
				name = strings.TrimPrefix(name, "?")
				if v := values.Get(name); v != "" {
					params[name] = v
				}
			}
		}
	}

	return params, true
}

// Expand substitutes params into template, URL-encoding each value. A
// placeholder with no corresponding entry in params is replaced with the
// empty string.
func Expand(template string, params map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(ph string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(ph, "{"), "}")
		name = strings.TrimSuffix(name, "*")
		v, ok := params[name]
		if !ok {
			return ""
		}
		return url.QueryEscape(v)
	})
}

// splitQuery separates a URI (or template) into its path portion and raw
// query string (without the leading '?').
func splitQuery(s string) (path, query string) {
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}
