package ddl

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF     tokenKind = iota
	tokWord              // identifiers and keywords
	tokQuoted            // "ident", `ident`, [ident]
	tokString            // 'literal', $$literal$$
	tokNumber            // 42, 3.14, 1e10
	tokLParen            // (
	tokRParen            // )
	tokComma             // ,
	tokSemicolon         // ;
	tokDot               // .
	tokOther             // operators and anything else
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "EOF"
	case tokWord:
		return "WORD"
	case tokQuoted:
		return "QUOTED"
	case tokString:
		return "STRING"
	case tokNumber:
		return "NUMBER"
	case tokLParen:
		return "LPAREN"
	case tokRParen:
		return "RPAREN"
	case tokComma:
		return "COMMA"
	case tokSemicolon:
		return "SEMICOLON"
	case tokDot:
		return "DOT"
	default:
		return "OTHER"
	}
}

// token is a lexical unit with its byte span in the source. For quoted
// identifiers and strings, text holds the unquoted value.
type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
}

// is reports whether the token is the given keyword, ignoring case.
func (t token) is(word string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, word)
}

// isIdent reports whether the token can name a table or column.
func (t token) isIdent() bool {
	return t.kind == tokWord || t.kind == tokQuoted || t.kind == tokString
}

// lexer turns SQL text into tokens. Whitespace and comments are dropped.
// Unterminated literals and comments run to the end of input and are
// reported as diagnostics.
type lexer struct {
	src   string
	pos   int
	diags []Diagnostic
}

func lex(src string) ([]token, []Diagnostic) {
	l := &lexer{src: src}
	var toks []token
	for {
		tok := l.next()
		if tok.kind == tokEOF {
			break
		}
		toks = append(toks, tok)
	}
	return toks, l.diags
}

func (l *lexer) peekByte(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) next() token {
	l.skipSpaceAndComments()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, start: l.pos, end: l.pos}
	}

	start := l.pos
	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", start: start, end: l.pos}
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", start: start, end: l.pos}
	case c == ',':
		l.pos++
		return token{kind: tokComma, text: ",", start: start, end: l.pos}
	case c == ';':
		l.pos++
		return token{kind: tokSemicolon, text: ";", start: start, end: l.pos}
	case c == '.' && !isDigit(l.peekByte(1)):
		l.pos++
		return token{kind: tokDot, text: ".", start: start, end: l.pos}
	case c == '"' || c == '`':
		return l.readDelimited(tokQuoted, c, c)
	case c == '\'':
		return l.readDelimited(tokString, '\'', '\'')
	case c == '[':
		if l.peekByte(1) == ']' {
			l.pos += 2
			return token{kind: tokOther, text: "[]", start: start, end: l.pos}
		}
		return l.readDelimited(tokQuoted, '[', ']')
	case c == '$':
		if tok, ok := l.readDollarQuoted(); ok {
			return tok
		}
		l.pos++
		return token{kind: tokOther, text: "$", start: start, end: l.pos}
	case isDigit(c) || (c == '.' && isDigit(l.peekByte(1))):
		return l.readNumber()
	}

	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	if isIdentStart(r) {
		return l.readWord()
	}
	l.pos += size
	return token{kind: tokOther, text: l.src[start:l.pos], start: start, end: l.pos}
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			l.pos++
		case c == '-' && l.peekByte(1) == '-':
			end := strings.IndexByte(l.src[l.pos:], '\n')
			if end < 0 {
				l.pos = len(l.src)
			} else {
				l.pos += end + 1
			}
		case c == '/' && l.peekByte(1) == '*':
			start := l.pos
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				l.pos = len(l.src)
				l.report(KindUnterminated, "unterminated block comment", start)
			} else {
				l.pos += end + 4
			}
		default:
			r, size := utf8.DecodeRuneInString(l.src[l.pos:])
			if !unicode.IsSpace(r) {
				return
			}
			l.pos += size
		}
	}
}

// readDelimited reads a literal enclosed by open/close. A doubled closing
// delimiter inside the literal stands for itself.
func (l *lexer) readDelimited(kind tokenKind, open, close byte) token {
	start := l.pos
	l.pos++ // opening delimiter
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == close {
			if l.peekByte(1) == close && open == close {
				sb.WriteByte(close)
				l.pos += 2
				continue
			}
			l.pos++
			return token{kind: kind, text: sb.String(), start: start, end: l.pos}
		}
		sb.WriteByte(c)
		l.pos++
	}
	l.report(KindUnterminated, "unterminated quoted literal", start)
	return token{kind: kind, text: sb.String(), start: start, end: l.pos}
}

// readDollarQuoted reads a PostgreSQL $tag$...$tag$ literal.
func (l *lexer) readDollarQuoted() (token, bool) {
	start := l.pos
	rest := l.src[l.pos+1:]
	i := 0
	for i < len(rest) && (isIdentByte(rest[i])) {
		i++
	}
	if i >= len(rest) || rest[i] != '$' {
		return token{}, false
	}
	tag := l.src[start : start+i+2]
	bodyStart := start + len(tag)
	end := strings.Index(l.src[bodyStart:], tag)
	if end < 0 {
		l.pos = len(l.src)
		l.report(KindUnterminated, "unterminated dollar-quoted literal", start)
		return token{kind: tokString, text: l.src[bodyStart:], start: start, end: l.pos}, true
	}
	l.pos = bodyStart + end + len(tag)
	return token{kind: tokString, text: l.src[bodyStart : bodyStart+end], start: start, end: l.pos}, true
}

func (l *lexer) readNumber() token {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isDigit(c) || c == '.' || c == '_' || isLetter(c) {
			l.pos++
			continue
		}
		if (c == '+' || c == '-') && l.pos > start && (l.src[l.pos-1] == 'e' || l.src[l.pos-1] == 'E') {
			l.pos++
			continue
		}
		break
	}
	return token{kind: tokNumber, text: l.src[start:l.pos], start: start, end: l.pos}
}

func (l *lexer) readWord() token {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isIdentPart(r) {
			break
		}
		l.pos += size
	}
	return token{kind: tokWord, text: l.src[start:l.pos], start: start, end: l.pos}
}

func (l *lexer) report(kind Kind, message string, offset int) {
	l.diags = append(l.diags, newDiagnostic(l.src, kind, message, "", Span{Start: offset, End: len(l.src)}))
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isIdentByte(c byte) bool { return isLetter(c) || isDigit(c) || c == '_' }

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
