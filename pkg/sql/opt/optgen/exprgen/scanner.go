// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package exprgen

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// token is the kind of lexical token returned by the scanner.
type token int

const (
	tokIllegal token = iota
	tokEOF
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokIdent
	tokNumber
	tokString
)

func (t token) String() string {
	switch t {
	case tokEOF:
		return "end of input"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	}
	return "illegal token"
}

// scanner breaks the input into tokens. Whitespace and comments, which run
// from "#" to the end of the line, are skipped.
type scanner struct {
	src string
	pos int

	// tok, lit and tokPos describe the last scanned token.
	tok    token
	lit    string
	tokPos int
}

func (s *scanner) init(src string) {
	*s = scanner{src: src}
}

// next scans the next token.
func (s *scanner) next() token {
	s.skipSpace()
	s.tokPos = s.pos
	if s.pos >= len(s.src) {
		s.tok, s.lit = tokEOF, ""
		return s.tok
	}

	ch := s.src[s.pos]
	switch {
	case ch == '(':
		s.single(tokLParen)
	case ch == ')':
		s.single(tokRParen)
	case ch == '[':
		s.single(tokLBracket)
	case ch == ']':
		s.single(tokRBracket)
	case ch == '"' || ch == '\'':
		s.scanString(ch)
	case isDigit(ch) || ((ch == '-' || ch == '+') && s.pos+1 < len(s.src) && isDigit(s.src[s.pos+1])):
		s.scanNumber()
	default:
		r, _ := utf8.DecodeRuneInString(s.src[s.pos:])
		if isIdentStart(r) {
			s.scanIdent()
		} else {
			s.single(tokIllegal)
		}
	}
	return s.tok
}

func (s *scanner) single(tok token) {
	s.tok, s.lit = tok, s.src[s.pos:s.pos+1]
	s.pos++
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		switch {
		case ch == '#':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == ',':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) scanString(quote byte) {
	var buf strings.Builder
	start := s.pos
	s.pos++
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		s.pos++
		switch ch {
		case quote:
			s.tok, s.lit = tokString, buf.String()
			return
		case '\\':
			if s.pos < len(s.src) {
				buf.WriteByte(s.src[s.pos])
				s.pos++
			}
		default:
			buf.WriteByte(ch)
		}
	}
	// Unterminated string.
	s.tok, s.lit = tokIllegal, s.src[start:]
}

func (s *scanner) scanNumber() {
	start := s.pos
	s.pos++
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		if !isDigit(ch) && ch != '.' && ch != 'e' && ch != 'E' {
			break
		}
		s.pos++
	}
	s.tok, s.lit = tokNumber, s.src[start:s.pos]
}

func (s *scanner) scanIdent() {
	start := s.pos
	for s.pos < len(s.src) {
		r, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if !isIdentStart(r) && !unicode.IsDigit(r) && r != '.' {
			break
		}
		s.pos += size
	}
	s.tok, s.lit = tokIdent, s.src[start:s.pos]
}

// location returns the line and column of the last scanned token, for error
// messages.
func (s *scanner) location() string {
	line, col := 1, 1
	for i := 0; i < s.tokPos && i < len(s.src); i++ {
		if s.src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return fmt.Sprintf("%d:%d", line, col)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}
