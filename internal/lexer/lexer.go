// Package lexer scans R+ source text into a token stream.
package lexer

import (
	"strings"

	"github.com/rplus-lang/rplus/internal/token"
)

// Lexer converts source text into a stream of tokens.
type Lexer struct {
	input        string
	pos          int  // current position in bytes
	readPos      int  // next read position
	ch           byte // current char
	line         int
	column       int
	parenDepth   int
	bracketDepth int
	lastToken    token.Type
}

// New creates a lexer for the provided source text.
func New(input string) *Lexer {
	l := &Lexer{
		input:     input,
		line:      1,
		column:    0,
		lastToken: token.Newline, // treat start as newline boundary
	}
	l.readChar()
	return l
}

// NextToken returns the next token from the input. It never backtracks
// more than one character of lookahead and always terminates the stream
// with an EOF token.
func (l *Lexer) NextToken() token.Token {
	for {
		l.skipWhitespace()

		if l.ch == '\n' {
			if tok, ok := l.consumeNewline(); ok {
				return tok
			}
			continue
		}

		if l.ch == 0 {
			return l.makeToken(token.EOF, "")
		}

		if l.ch == '/' {
			if l.peekChar() == '/' {
				l.skipLineComment()
				continue
			}
			if l.peekChar() == '*' {
				l.skipBlockComment()
				continue
			}
		}

		switch l.ch {
		case '=':
			return l.twoOrOne('=', token.Equal, token.Assign)
		case '+':
			if l.peekChar() == '+' {
				return l.two(token.Inc)
			}
			return l.twoOrOne('=', token.PlusAssign, token.Plus)
		case '-':
			if l.peekChar() == '-' {
				return l.two(token.Dec)
			}
			if l.peekChar() == '>' {
				return l.two(token.Arrow)
			}
			return l.twoOrOne('=', token.MinusAssign, token.Minus)
		case '*':
			return l.twoOrOne('=', token.StarAssign, token.Star)
		case '/':
			return l.twoOrOne('=', token.SlashAssign, token.Slash)
		case '%':
			return l.twoOrOne('=', token.PercentAssign, token.Percent)
		case '!':
			return l.twoOrOne('=', token.NotEqual, token.Bang)
		case '<':
			if l.peekChar() == '<' {
				return l.two(token.ShiftLeft)
			}
			return l.twoOrOne('=', token.LessEqual, token.Less)
		case '>':
			if l.peekChar() == '>' {
				return l.two(token.ShiftRight)
			}
			return l.twoOrOne('=', token.GreaterEqual, token.Greater)
		case '&':
			if l.peekChar() == '&' {
				return l.two(token.AndAnd)
			}
			return l.one(token.Amp)
		case '|':
			if l.peekChar() == '|' {
				return l.two(token.OrOr)
			}
			return l.one(token.Pipe)
		case '^':
			return l.one(token.Caret)
		case '~':
			return l.one(token.Tilde)
		case '?':
			return l.one(token.Question)
		case '.':
			if l.peekChar() == '.' {
				return l.two(token.Range)
			}
			return l.one(token.Dot)
		case ',':
			return l.one(token.Comma)
		case ';':
			return l.one(token.Semi)
		case ':':
			return l.one(token.Colon)
		case '(':
			tok := l.makeToken(token.LParen, string(l.ch))
			l.readChar()
			l.parenDepth++
			return l.finishToken(tok)
		case ')':
			tok := l.makeToken(token.RParen, string(l.ch))
			l.readChar()
			if l.parenDepth > 0 {
				l.parenDepth--
			}
			return l.finishToken(tok)
		case '[':
			tok := l.makeToken(token.LBracket, string(l.ch))
			l.readChar()
			l.bracketDepth++
			return l.finishToken(tok)
		case ']':
			tok := l.makeToken(token.RBracket, string(l.ch))
			l.readChar()
			if l.bracketDepth > 0 {
				l.bracketDepth--
			}
			return l.finishToken(tok)
		case '{':
			return l.one(token.LBrace)
		case '}':
			return l.one(token.RBrace)
		case '"':
			return l.readString()
		case '\'':
			return l.readChar_()
		default:
			if isLetter(l.ch) {
				return l.readIdentifier()
			}
			if isDigit(l.ch) {
				return l.readNumber()
			}

			tok := l.makeToken(token.Error, string(l.ch))
			l.readChar()
			return l.finishToken(tok)
		}
	}
}

// one consumes a single-character token.
func (l *Lexer) one(t token.Type) token.Token {
	tok := l.makeToken(t, string(l.ch))
	l.readChar()
	return l.finishToken(tok)
}

// two consumes a fixed two-character token starting at the current char.
func (l *Lexer) two(t token.Type) token.Token {
	ch := l.ch
	l.readChar()
	tok := l.makeToken(t, string(ch)+string(l.ch))
	l.readChar()
	return l.finishToken(tok)
}

// twoOrOne consumes either `<current><next>` (if next == ch) as twoTok, or
// just `<current>` as oneTok.
func (l *Lexer) twoOrOne(next byte, twoTok, oneTok token.Type) token.Token {
	if l.peekChar() == next {
		return l.two(twoTok)
	}
	return l.one(oneTok)
}

func (l *Lexer) makeToken(t token.Type, lit string) token.Token {
	return token.Token{
		Type:    t,
		Literal: lit,
		Pos: token.Position{
			Offset: l.pos,
			Line:   l.line,
			Column: l.column,
		},
	}
}

func (l *Lexer) finishToken(tok token.Token) token.Token {
	l.lastToken = tok.Type
	return tok
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) consumeNewline() (token.Token, bool) {
	pos := l.makeToken(token.Newline, "")
	l.readChar()

	if l.parenDepth == 0 && l.bracketDepth == 0 && newlineEligible(l.lastToken) {
		l.lastToken = token.Newline
		return pos, true
	}
	return token.Token{}, false
}

func (l *Lexer) skipLineComment() {
	for l.ch != 0 && l.ch != '\n' {
		l.readChar()
	}
}

// skipBlockComment consumes a /* ... */ comment. Nested block comments
// are not supported: an inner "/*" is just content, and the comment ends
// at the first "*/".
func (l *Lexer) skipBlockComment() {
	l.readChar() // consume '/'
	l.readChar() // consume '*'
	for {
		if l.ch == 0 {
			return
		}
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar() // '*'
			l.readChar() // '/'
			return
		}
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() token.Token {
	start := l.makeToken(token.Ident, "")
	var sb strings.Builder
	for isLetter(l.ch) || isDigit(l.ch) {
		sb.WriteByte(l.ch)
		l.readChar()
	}
	lit := sb.String()
	start.Type = token.LookupIdent(lit)
	start.Literal = lit
	return l.finishToken(start)
}

// readNumber scans a NUMBER or FLOAT literal: an optional 0x/0X hex
// prefix, otherwise decimal digits with an optional fractional part and
// an optional scientific-notation exponent.
func (l *Lexer) readNumber() token.Token {
	start := l.makeToken(token.Number, "")
	var sb strings.Builder

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		sb.WriteByte(l.ch)
		l.readChar()
		sb.WriteByte(l.ch)
		l.readChar()
		for isHexDigit(l.ch) {
			sb.WriteByte(l.ch)
			l.readChar()
		}
		start.Literal = sb.String()
		return l.finishToken(start)
	}

	for isDigit(l.ch) {
		sb.WriteByte(l.ch)
		l.readChar()
	}

	isFloat := false
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		sb.WriteByte(l.ch)
		l.readChar()
		for isDigit(l.ch) {
			sb.WriteByte(l.ch)
			l.readChar()
		}
	}

	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		exponentStarts := isDigit(next) || ((next == '+' || next == '-') && l.readPos+1 < len(l.input) && isDigit(l.input[l.readPos+1]))
		if exponentStarts {
			var exp strings.Builder
			exp.WriteByte(l.ch)
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				exp.WriteByte(l.ch)
				l.readChar()
			}
			if isDigit(l.ch) {
				isFloat = true
				for isDigit(l.ch) {
					exp.WriteByte(l.ch)
					l.readChar()
				}
				sb.WriteString(exp.String())
			}
			// a lone "e+"/"e-" with no following digits is not a valid
			// exponent; we only got here because a digit, or a sign and then
			// a digit, followed directly, so this branch is unreachable.
		}
	}

	start.Literal = sb.String()
	if isFloat {
		start.Type = token.Float
	}
	return l.finishToken(start)
}

// readString scans a "..." literal, decoding backslash escapes. An
// unterminated string at EOF is accepted and returns whatever was
// collected up to that point.
func (l *Lexer) readString() token.Token {
	start := l.makeToken(token.String, "")
	var sb strings.Builder

	for {
		l.readChar()
		if l.ch == 0 {
			break
		}
		if l.ch == '"' {
			l.readChar()
			break
		}
		if l.ch == '\\' {
			l.readChar()
			sb.WriteByte(decodeEscape(l.ch))
			continue
		}
		sb.WriteByte(l.ch)
	}

	start.Literal = sb.String()
	return l.finishToken(start)
}

// readChar_ scans a '...' character literal. Named with a trailing
// underscore to avoid colliding with the byte-classification helpers.
func (l *Lexer) readChar_() token.Token {
	start := l.makeToken(token.Char, "")
	l.readChar() // consume opening '\''

	var lit byte
	if l.ch == '\\' {
		l.readChar()
		if l.ch == '\'' {
			lit = '\''
		} else {
			lit = decodeEscape(l.ch)
		}
	} else {
		lit = l.ch
	}

	if l.ch != 0 {
		l.readChar()
	}
	if l.ch == '\'' {
		l.readChar()
	}
	// closing quote is optional at EOF, per the string-literal rule.

	start.Literal = string(lit)
	return l.finishToken(start)
}

func decodeEscape(ch byte) byte {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '\\':
		return '\\'
	case '"':
		return '"'
	case '0':
		return 0
	default:
		return ch
	}
}

func newlineEligible(t token.Type) bool {
	switch t {
	case token.Ident, token.Number, token.Float, token.String, token.Char,
		token.True, token.False, token.Null,
		token.RParen, token.RBracket, token.RBrace,
		token.Return, token.Break, token.Continue, token.Inc, token.Dec:
		return true
	default:
		return false
	}
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.pos = l.readPos
		l.ch = 0
		return
	}

	l.ch = l.input[l.readPos]
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}
