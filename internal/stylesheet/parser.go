package stylesheet

import (
	"bytes"
	"fmt"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// Diagnostic describes a construct the parser skipped. Parsing never fails;
// diagnostics are informational.
type Diagnostic struct {
	Line    int    `json:"line"`
	Offset  int    `json:"offset"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d: %s", d.Line, d.Message)
}

// Result is the output of Parse.
type Result struct {
	Styles      []Style
	Diagnostics []Diagnostic
}

// ParseSheet parses CSS text into styles sorted by tag. It returns nil when
// the text holds no rules.
func ParseSheet(text string) []Style {
	return Parse([]byte(text)).Styles
}

// Parse parses CSS and reports skipped constructs alongside the styles.
func Parse(data []byte) Result {
	p := &parser{c: newCursor(data)}
	p.sheet()
	if len(p.styles) == 0 {
		return Result{Diagnostics: p.diags}
	}
	SortStyles(p.styles)
	return Result{Styles: p.styles, Diagnostics: p.diags}
}

type token struct {
	tt     css.TokenType
	data   []byte
	offset int
	line   int
}

// cursor wraps the lexer with one token of pushback and position tracking.
type cursor struct {
	lex     *css.Lexer
	offset  int
	line    int
	back    *token
	current token
}

func newCursor(data []byte) *cursor {
	return &cursor{lex: css.NewLexer(parse.NewInputBytes(data)), line: 1}
}

func (c *cursor) next() token {
	if c.back != nil {
		t := *c.back
		c.back = nil
		c.current = t
		return t
	}
	tt, data := c.lex.Next()
	t := token{tt: tt, data: append([]byte(nil), data...), offset: c.offset, line: c.line}
	c.offset += len(data)
	c.line += bytes.Count(data, []byte{'\n'})
	c.current = t
	return t
}

func (c *cursor) unread() {
	t := c.current
	c.back = &t
}

type parser struct {
	c      *cursor
	styles []Style
	diags  []Diagnostic
}

func (p *parser) diag(t token, format string, args ...any) {
	p.diags = append(p.diags, Diagnostic{Line: t.line, Offset: t.offset, Message: fmt.Sprintf(format, args...)})
}

// sheet consumes top-level tokens. Identifier and other prelude tokens build
// the pending selector; a brace block closes the rule.
func (p *parser) sheet() {
	var prelude strings.Builder
	space := false
	for {
		t := p.c.next()
		switch t.tt {
		case css.ErrorToken:
			if prelude.Len() > 0 {
				p.diag(t, "selector %q has no block", prelude.String())
			}
			return
		case css.WhitespaceToken, css.CommentToken, css.CDOToken, css.CDCToken:
			space = prelude.Len() > 0
		case css.AtKeywordToken:
			p.diag(t, "skipped at-rule %s", t.data)
			p.skipAtRule()
			prelude.Reset()
			space = false
		case css.LeftBraceToken:
			tag := prelude.String()
			prelude.Reset()
			space = false
			if tag == "" {
				p.diag(t, "block without selector")
				p.skipBlock()
				continue
			}
			attrs := p.attributes()
			p.styles = append(p.styles, Style{Tag: tag, Attributes: attrs})
		case css.SemicolonToken, css.RightBraceToken:
			p.diag(t, "unexpected %q", t.data)
			prelude.Reset()
			space = false
		default:
			if space {
				prelude.WriteByte(' ')
				space = false
			}
			prelude.Write(t.data)
		}
	}
}

// attributes parses a rule body up to its closing brace. A repeated property
// name re-opens the earlier declaration so each name appears once.
func (p *parser) attributes() []Attribute {
	var out []Attribute
	pos := map[string]int{}
	name := ""
	for {
		t := p.c.next()
		switch t.tt {
		case css.ErrorToken:
			p.diag(t, "unterminated block")
			p.c.unread()
			return sortedAttributes(out)
		case css.RightBraceToken:
			return sortedAttributes(out)
		case css.WhitespaceToken, css.CommentToken, css.SemicolonToken:
		case css.IdentToken, css.CustomPropertyNameToken:
			name = string(t.data)
		case css.ColonToken:
			if name == "" {
				p.diag(t, "declaration without property name")
				p.attributeValue()
				continue
			}
			value := p.attributeValue()
			if value == "" {
				p.diag(t, "property %s has no value", name)
				name = ""
				continue
			}
			i, ok := pos[name]
			if !ok {
				i = len(out)
				pos[name] = i
				out = append(out, Attribute{Name: name})
			}
			out[i].Values = append(out[i].Values, value)
			name = ""
		case css.LeftBraceToken:
			p.diag(t, "nested block skipped")
			p.skipBlock()
			name = ""
		default:
			p.diag(t, "unexpected %q in declaration list", t.data)
			name = ""
		}
	}
}

func sortedAttributes(attrs []Attribute) []Attribute {
	SortAttributes(attrs)
	return attrs
}

// attributeValue reads a value up to the terminating semicolon, which it
// consumes, or the closing brace, which it leaves for the caller. Whitespace
// runs collapse to one space.
func (p *parser) attributeValue() string {
	var b strings.Builder
	space := false
	depth := 0
	for {
		t := p.c.next()
		switch t.tt {
		case css.ErrorToken, css.RightBraceToken:
			p.c.unread()
			return b.String()
		case css.SemicolonToken:
			if depth == 0 {
				return b.String()
			}
		case css.LeftBraceToken:
			p.c.unread()
			return b.String()
		case css.WhitespaceToken, css.CommentToken:
			space = b.Len() > 0
			continue
		case css.FunctionToken, css.LeftParenthesisToken:
			depth++
		case css.RightParenthesisToken:
			if depth > 0 {
				depth--
			}
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.Write(t.data)
	}
}

// skipAtRule discards an at-rule's prelude and its block, if any.
func (p *parser) skipAtRule() {
	for {
		t := p.c.next()
		switch t.tt {
		case css.ErrorToken, css.SemicolonToken:
			return
		case css.LeftBraceToken:
			p.skipBlock()
			return
		}
	}
}

// skipBlock discards tokens through the brace matching one already consumed.
func (p *parser) skipBlock() {
	depth := 1
	for depth > 0 {
		t := p.c.next()
		switch t.tt {
		case css.ErrorToken:
			return
		case css.LeftBraceToken:
			depth++
		case css.RightBraceToken:
			depth--
		}
	}
}
