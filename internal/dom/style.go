package dom

import (
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"golang.org/x/net/html"
)

// Declaration is one property of an inline style attribute.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// Style is an ordered list of inline declarations. Property names are kept
// lower-case; a property appears at most once.
type Style struct {
	decls []Declaration
}

// ParseStyle parses the content of a style attribute. Declarations the
// tokenizer cannot make sense of are dropped.
func ParseStyle(s string) *Style {
	st := &Style{}
	if strings.TrimSpace(s) == "" {
		return st
	}

	p := css.NewParser(parse.NewInput(strings.NewReader(s)), true)
	for guard := len(s) + 8; guard > 0; guard-- {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if p.Err() != nil {
				return st
			}
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			value, important := declarationValue(p.Values())
			if gt == css.CustomPropertyGrammar {
				value = strings.TrimSpace(value)
			}
			st.Set(string(data), value, important)
		}
	}
	return st
}

func declarationValue(tokens []css.Token) (string, bool) {
	important := false
	n := len(tokens)
	// strip trailing whitespace, then a trailing "! important"
	for n > 0 && tokens[n-1].TokenType == css.WhitespaceToken {
		n--
	}
	if n >= 1 && tokens[n-1].TokenType == css.IdentToken && strings.EqualFold(string(tokens[n-1].Data), "important") {
		m := n - 1
		for m > 0 && tokens[m-1].TokenType == css.WhitespaceToken {
			m--
		}
		if m > 0 && tokens[m-1].TokenType == css.DelimToken && string(tokens[m-1].Data) == "!" {
			important = true
			n = m - 1
		}
	}

	var b strings.Builder
	for _, t := range tokens[:n] {
		if t.TokenType == css.WhitespaceToken {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			continue
		}
		b.Write(t.Data)
	}
	return strings.TrimSpace(b.String()), important
}

// Get returns the value and priority of prop.
func (s *Style) Get(prop string) (value string, important bool, ok bool) {
	prop = strings.ToLower(strings.TrimSpace(prop))
	for _, d := range s.decls {
		if d.Property == prop {
			return d.Value, d.Important, true
		}
	}
	return "", false, false
}

// Set adds or replaces prop, keeping its original position.
func (s *Style) Set(prop, value string, important bool) {
	prop = strings.ToLower(strings.TrimSpace(prop))
	if prop == "" {
		return
	}
	for i, d := range s.decls {
		if d.Property == prop {
			s.decls[i].Value = value
			s.decls[i].Important = important
			return
		}
	}
	s.decls = append(s.decls, Declaration{Property: prop, Value: value, Important: important})
}

// Remove deletes the given properties and reports whether any was present.
func (s *Style) Remove(props ...string) bool {
	removed := false
	for _, prop := range props {
		prop = strings.ToLower(strings.TrimSpace(prop))
		out := s.decls[:0]
		for _, d := range s.decls {
			if d.Property == prop {
				removed = true
				continue
			}
			out = append(out, d)
		}
		s.decls = out
	}
	return removed
}

// Declarations returns a copy of the declarations in order.
func (s *Style) Declarations() []Declaration {
	return append([]Declaration(nil), s.decls...)
}

// Len returns the number of declarations.
func (s *Style) Len() int { return len(s.decls) }

// String serialises the style for a style attribute.
func (s *Style) String() string {
	parts := make([]string, 0, len(s.decls))
	for _, d := range s.decls {
		v := d.Property + ": " + d.Value
		if d.Important {
			v += " !important"
		}
		parts = append(parts, v)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "; ") + ";"
}

// GetStyle parses the style attribute of n.
func GetStyle(n *html.Node) *Style {
	return ParseStyle(GetAttr(n, "style"))
}

// SetStyle writes st back to the style attribute of n. An empty style removes
// the attribute.
func SetStyle(n *html.Node, st *Style) {
	if st.Len() == 0 {
		RemoveAttr(n, "style")
		return
	}
	SetAttr(n, "style", st.String())
}
