// Package xmlsig implements deterministic canonicalization, digital signing
// and verification of filing documents. Canonicalization is a pure function
// of the document text: signing and verification apply it identically.
package xmlsig

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Canonicalization rules:
//   - CRLF/CR line endings become LF
//   - the XML declaration and processing instructions are removed
//   - empty elements are expanded (<a/> becomes <a></a>)
//   - attributes are sorted, namespace declarations first, then by name
//   - attribute values are double-quoted with canonical escaping
//   - character data is re-escaped canonically (&, <, >)
//
// Comments are preserved verbatim. The function is idempotent.
func Canonicalize(doc []byte) ([]byte, error) {
	s := string(doc)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		if s[i] != '<' {
			j := strings.IndexByte(s[i:], '<')
			var text string
			if j < 0 {
				text = s[i:]
				i = len(s)
			} else {
				text = s[i : i+j]
				i += j
			}
			b.WriteString(escapeText(unescape(text)))
			continue
		}
		switch {
		case strings.HasPrefix(s[i:], "<?"):
			end := strings.Index(s[i:], "?>")
			if end < 0 {
				return nil, errors.New("canonicalize: unterminated processing instruction")
			}
			i += end + 2
			// a removed declaration must not leave a blank line behind
			if i < len(s) && s[i] == '\n' {
				i++
			}
		case strings.HasPrefix(s[i:], "<!--"):
			end := strings.Index(s[i:], "-->")
			if end < 0 {
				return nil, errors.New("canonicalize: unterminated comment")
			}
			b.WriteString(s[i : i+end+3])
			i += end + 3
		case strings.HasPrefix(s[i:], "<!"):
			end := strings.IndexByte(s[i:], '>')
			if end < 0 {
				return nil, errors.New("canonicalize: unterminated markup declaration")
			}
			i += end + 1
		default:
			end := strings.IndexByte(s[i:], '>')
			if end < 0 {
				return nil, errors.New("canonicalize: unterminated tag")
			}
			tag := s[i+1 : i+end]
			i += end + 1
			if strings.HasPrefix(tag, "/") {
				b.WriteString("</")
				b.WriteString(strings.TrimSpace(tag[1:]))
				b.WriteByte('>')
				continue
			}
			selfClosing := strings.HasSuffix(tag, "/")
			if selfClosing {
				tag = strings.TrimSuffix(tag, "/")
			}
			name, attrs, err := parseStartTag(tag)
			if err != nil {
				return nil, err
			}
			sortAttrs(attrs)
			b.WriteByte('<')
			b.WriteString(name)
			for _, a := range attrs {
				b.WriteByte(' ')
				b.WriteString(a.name)
				b.WriteString(`="`)
				b.WriteString(escapeAttr(unescape(a.value)))
				b.WriteByte('"')
			}
			b.WriteByte('>')
			if selfClosing {
				b.WriteString("</")
				b.WriteString(name)
				b.WriteByte('>')
			}
		}
	}
	return []byte(b.String()), nil
}

type attr struct {
	name  string
	value string
}

// parseStartTag splits the inside of a start tag into element name and
// attribute list.
func parseStartTag(tag string) (string, []attr, error) {
	tag = strings.TrimSpace(tag)
	nameEnd := strings.IndexFunc(tag, isSpace)
	if nameEnd < 0 {
		return tag, nil, nil
	}
	name := tag[:nameEnd]
	rest := tag[nameEnd:]
	var attrs []attr
	for {
		rest = strings.TrimLeftFunc(rest, isSpace)
		if rest == "" {
			break
		}
		eq := strings.IndexByte(rest, '=')
		if eq < 0 {
			return "", nil, errors.New("canonicalize: attribute without value in <" + name + ">")
		}
		aname := strings.TrimRightFunc(rest[:eq], isSpace)
		rest = strings.TrimLeftFunc(rest[eq+1:], isSpace)
		if rest == "" || (rest[0] != '"' && rest[0] != '\'') {
			return "", nil, errors.New("canonicalize: unquoted attribute value in <" + name + ">")
		}
		quote := rest[0]
		close := strings.IndexByte(rest[1:], quote)
		if close < 0 {
			return "", nil, errors.New("canonicalize: unterminated attribute value in <" + name + ">")
		}
		attrs = append(attrs, attr{name: aname, value: rest[1 : 1+close]})
		rest = rest[close+2:]
	}
	return name, attrs, nil
}

// sortAttrs orders namespace declarations first, then all attributes
// alphabetically by qualified name.
func sortAttrs(attrs []attr) {
	isNS := func(a attr) bool {
		return a.name == "xmlns" || strings.HasPrefix(a.name, "xmlns:")
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		ni, nj := isNS(attrs[i]), isNS(attrs[j])
		if ni != nj {
			return ni
		}
		return attrs[i].name < attrs[j].name
	})
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}

func escapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func escapeAttr(s string) string {
	s = escapeText(s)
	return strings.ReplaceAll(s, `"`, "&quot;")
}

// unescape resolves the predefined entities and numeric character
// references so escaping can be reapplied canonically.
func unescape(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '&' {
			b.WriteByte(s[i])
			i++
			continue
		}
		semi := strings.IndexByte(s[i:], ';')
		if semi < 0 {
			b.WriteByte(s[i])
			i++
			continue
		}
		ent := s[i+1 : i+semi]
		switch {
		case ent == "amp":
			b.WriteByte('&')
		case ent == "lt":
			b.WriteByte('<')
		case ent == "gt":
			b.WriteByte('>')
		case ent == "quot":
			b.WriteByte('"')
		case ent == "apos":
			b.WriteByte('\'')
		case strings.HasPrefix(ent, "#x") || strings.HasPrefix(ent, "#X"):
			if n, err := strconv.ParseInt(ent[2:], 16, 32); err == nil {
				b.WriteRune(rune(n))
			} else {
				b.WriteString(s[i : i+semi+1])
			}
		case strings.HasPrefix(ent, "#"):
			if n, err := strconv.ParseInt(ent[1:], 10, 32); err == nil {
				b.WriteRune(rune(n))
			} else {
				b.WriteString(s[i : i+semi+1])
			}
		default:
			b.WriteString(s[i : i+semi+1])
		}
		i += semi + 1
	}
	return b.String()
}
