package manifest

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Recipes are Python, but their declarative attributes are plain literals.
// This file reads those literals without evaluating any code.

type pyKind int

const (
	pyString pyKind = iota
	pyNumber
	pyBool
	pyNone
	pyTuple
	pyList
	pyDict
)

type pyValue struct {
	kind  pyKind
	text  string
	items []pyValue
	// Dict keys, parallel to items.
	keys []pyValue
}

func (v pyValue) isSequence() bool {
	return v.kind == pyTuple || v.kind == pyList
}

// scalar returns the textual value of a string, number, bool or None.
func (v pyValue) scalar() (string, bool) {
	switch v.kind {
	case pyString, pyNumber, pyBool, pyNone:
		return v.text, true
	}
	return "", false
}

// stringList flattens a string or a sequence of strings.
func (v pyValue) stringList() ([]string, error) {
	if v.kind == pyString {
		return []string{v.text}, nil
	}
	if !v.isSequence() {
		return nil, fmt.Errorf("expected a string or a sequence of strings")
	}
	result := make([]string, 0, len(v.items))
	for _, item := range v.items {
		if item.kind != pyString {
			return nil, fmt.Errorf("expected a string element, got %s", item.describe())
		}
		result = append(result, item.text)
	}
	return result, nil
}

func (v pyValue) describe() string {
	switch v.kind {
	case pyString:
		return "string"
	case pyNumber:
		return "number"
	case pyBool:
		return "bool"
	case pyNone:
		return "None"
	case pyTuple:
		return "tuple"
	case pyList:
		return "list"
	default:
		return "dict"
	}
}

type pyTokenKind int

const (
	tokEOF pyTokenKind = iota
	tokString
	tokNumber
	tokName
	tokPunct
)

type pyToken struct {
	kind pyTokenKind
	text string
	pos  int
}

type pyLexer struct {
	src string
	pos int
}

func (l *pyLexer) next() (pyToken, error) {
	for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t' || l.src[l.pos] == '\n' || l.src[l.pos] == '\r' || l.src[l.pos] == '\\') {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return pyToken{kind: tokEOF, pos: l.pos}, nil
	}
	start := l.pos
	c := l.src[l.pos]
	switch {
	case strings.ContainsRune("()[]{},:", rune(c)):
		l.pos++
		return pyToken{kind: tokPunct, text: string(c), pos: start}, nil
	case c == '"' || c == '\'':
		return l.readString(start, false)
	case c == '-' || c == '+' || c == '.' || isDigit(c):
		return l.readNumber(start)
	case c == '_' || unicode.IsLetter(rune(c)):
		for l.pos < len(l.src) && (l.src[l.pos] == '_' || l.src[l.pos] == '.' || unicode.IsLetter(rune(l.src[l.pos])) || isDigit(l.src[l.pos])) {
			l.pos++
		}
		name := l.src[start:l.pos]
		// String prefixes: r"", b"", u"", f"", rb"".
		if l.pos < len(l.src) && (l.src[l.pos] == '"' || l.src[l.pos] == '\'') && len(name) <= 2 && strings.Trim(strings.ToLower(name), "rbuf") == "" {
			if strings.ContainsAny(name, "fF") {
				return pyToken{}, fmt.Errorf("formatted string literals are not supported at offset %d", start)
			}
			return l.readString(start, strings.ContainsAny(name, "rR"))
		}
		return pyToken{kind: tokName, text: name, pos: start}, nil
	}
	return pyToken{}, fmt.Errorf("unexpected character '%c' at offset %d", c, start)
}

func (l *pyLexer) readNumber(start int) (pyToken, error) {
	if l.src[l.pos] == '-' || l.src[l.pos] == '+' {
		l.pos++
	}
	digits := l.pos
	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || strings.ContainsRune("._eExXabcdefABCDEF", rune(l.src[l.pos]))) {
		l.pos++
	}
	if l.pos == digits {
		return pyToken{}, fmt.Errorf("invalid number at offset %d", start)
	}
	return pyToken{kind: tokNumber, text: strings.ReplaceAll(l.src[start:l.pos], "_", ""), pos: start}, nil
}

func (l *pyLexer) readString(start int, raw bool) (pyToken, error) {
	for l.src[l.pos] != '"' && l.src[l.pos] != '\'' {
		l.pos++
	}
	quote := l.src[l.pos : l.pos+1]
	if strings.HasPrefix(l.src[l.pos:], strings.Repeat(quote, 3)) {
		quote = strings.Repeat(quote, 3)
	}
	l.pos += len(quote)
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return pyToken{}, fmt.Errorf("unterminated string starting at offset %d", start)
		}
		if strings.HasPrefix(l.src[l.pos:], quote) {
			l.pos += len(quote)
			return pyToken{kind: tokString, text: sb.String(), pos: start}, nil
		}
		c := l.src[l.pos]
		if c == '\n' && len(quote) == 1 {
			return pyToken{}, fmt.Errorf("unterminated string starting at offset %d", start)
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			escaped := l.src[l.pos+1]
			l.pos += 2
			if raw {
				sb.WriteByte('\\')
				sb.WriteByte(escaped)
				continue
			}
			switch escaped {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '\'', '"':
				sb.WriteByte(escaped)
			case '\n':
				// Line continuation inside a string.
			default:
				sb.WriteByte('\\')
				sb.WriteByte(escaped)
			}
			continue
		}
		sb.WriteByte(c)
		l.pos++
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

type pyParser struct {
	lex *pyLexer
	tok pyToken
}

// parsePyLiteral parses a literal expression. A bare comma separated list is a tuple.
func parsePyLiteral(src string) (pyValue, error) {
	p := &pyParser{lex: &pyLexer{src: src}}
	if err := p.advance(); err != nil {
		return pyValue{}, err
	}
	if p.tok.kind == tokEOF {
		return pyValue{}, fmt.Errorf("empty expression")
	}
	value, err := p.parseSequence(tokEOF, "")
	if err != nil {
		return pyValue{}, err
	}
	if p.tok.kind != tokEOF {
		return pyValue{}, fmt.Errorf("unexpected '%s' at offset %d", p.tok.text, p.tok.pos)
	}
	return value, nil
}

func (p *pyParser) advance() (err error) {
	p.tok, err = p.lex.next()
	return
}

func (p *pyParser) isPunct(text string) bool {
	return p.tok.kind == tokPunct && p.tok.text == text
}

// parseSequence parses 'a' or 'a, b, ...' up to the closing token. A trailing comma makes a tuple.
func (p *pyParser) parseSequence(endKind pyTokenKind, endText string) (pyValue, error) {
	atEnd := func() bool {
		if endKind == tokEOF {
			return p.tok.kind == tokEOF
		}
		return p.isPunct(endText)
	}
	first, err := p.parseAtom()
	if err != nil {
		return pyValue{}, err
	}
	if !p.isPunct(",") {
		return first, nil
	}
	tuple := pyValue{kind: pyTuple, items: []pyValue{first}}
	for p.isPunct(",") {
		if err = p.advance(); err != nil {
			return pyValue{}, err
		}
		if atEnd() {
			break
		}
		item, err := p.parseAtom()
		if err != nil {
			return pyValue{}, err
		}
		tuple.items = append(tuple.items, item)
	}
	return tuple, nil
}

func (p *pyParser) parseAtom() (pyValue, error) {
	tok := p.tok
	switch tok.kind {
	case tokString:
		// Adjacent string literals are concatenated.
		text := tok.text
		if err := p.advance(); err != nil {
			return pyValue{}, err
		}
		for p.tok.kind == tokString {
			text += p.tok.text
			if err := p.advance(); err != nil {
				return pyValue{}, err
			}
		}
		return pyValue{kind: pyString, text: text}, nil
	case tokNumber:
		return pyValue{kind: pyNumber, text: tok.text}, p.advance()
	case tokName:
		switch tok.text {
		case "True", "False":
			return pyValue{kind: pyBool, text: tok.text}, p.advance()
		case "None":
			return pyValue{kind: pyNone, text: tok.text}, p.advance()
		}
		return pyValue{}, fmt.Errorf("unsupported expression '%s' at offset %d", tok.text, tok.pos)
	case tokPunct:
		switch tok.text {
		case "(":
			return p.parseParenthesized()
		case "[":
			return p.parseList()
		case "{":
			return p.parseDict()
		}
	case tokEOF:
		return pyValue{}, fmt.Errorf("unexpected end of expression")
	}
	return pyValue{}, fmt.Errorf("unexpected '%s' at offset %d", tok.text, tok.pos)
}

func (p *pyParser) parseParenthesized() (pyValue, error) {
	if err := p.advance(); err != nil {
		return pyValue{}, err
	}
	if p.isPunct(")") {
		return pyValue{kind: pyTuple}, p.advance()
	}
	value, err := p.parseSequence(tokPunct, ")")
	if err != nil {
		return pyValue{}, err
	}
	if !p.isPunct(")") {
		return pyValue{}, fmt.Errorf("expected ')' at offset %d", p.tok.pos)
	}
	return value, p.advance()
}

func (p *pyParser) parseList() (pyValue, error) {
	if err := p.advance(); err != nil {
		return pyValue{}, err
	}
	list := pyValue{kind: pyList}
	for !p.isPunct("]") {
		item, err := p.parseAtom()
		if err != nil {
			return pyValue{}, err
		}
		list.items = append(list.items, item)
		if p.isPunct(",") {
			if err = p.advance(); err != nil {
				return pyValue{}, err
			}
		} else if !p.isPunct("]") {
			return pyValue{}, fmt.Errorf("expected ',' or ']' at offset %d", p.tok.pos)
		}
	}
	return list, p.advance()
}

func (p *pyParser) parseDict() (pyValue, error) {
	if err := p.advance(); err != nil {
		return pyValue{}, err
	}
	dict := pyValue{kind: pyDict}
	for !p.isPunct("}") {
		key, err := p.parseAtom()
		if err != nil {
			return pyValue{}, err
		}
		if _, ok := key.scalar(); !ok {
			return pyValue{}, fmt.Errorf("unsupported dict key of type %s", key.describe())
		}
		if !p.isPunct(":") {
			return pyValue{}, fmt.Errorf("expected ':' at offset %d", p.tok.pos)
		}
		if err = p.advance(); err != nil {
			return pyValue{}, err
		}
		value, err := p.parseAtom()
		if err != nil {
			return pyValue{}, err
		}
		dict.keys = append(dict.keys, key)
		dict.items = append(dict.items, value)
		if p.isPunct(",") {
			if err = p.advance(); err != nil {
				return pyValue{}, err
			}
		} else if !p.isPunct("}") {
			return pyValue{}, fmt.Errorf("expected ',' or '}' at offset %d", p.tok.pos)
		}
	}
	return dict, p.advance()
}

// pyLine is a logical source line: physical lines joined while brackets or strings are open.
type pyLine struct {
	indent int
	text   string
	number int
}

// splitPyLines splits source into logical lines with comments removed.
func splitPyLines(src string) []pyLine {
	var lines []pyLine
	var current strings.Builder
	depth := 0
	quote := ""
	lineNumber := 1
	startLine := 1
	indent := -1
	flush := func() {
		text := strings.TrimSpace(current.String())
		if text != "" {
			lines = append(lines, pyLine{indent: indent, text: text, number: startLine})
		}
		current.Reset()
		indent = -1
	}
	for i := 0; i < len(src); i++ {
		c := src[i]
		if indent == -1 {
			if c == ' ' || c == '\t' {
				continue
			}
			if c == '\n' {
				lineNumber++
				continue
			}
			indent = lineIndent(src, i)
			startLine = lineNumber
		}
		if quote != "" {
			current.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				current.WriteByte(src[i])
				if src[i] == '\n' {
					lineNumber++
				}
				continue
			}
			if c == '\n' {
				lineNumber++
			}
			if strings.HasPrefix(src[i:], quote) {
				current.WriteString(quote[1:])
				i += len(quote) - 1
				quote = ""
			}
			continue
		}
		switch c {
		case '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			i--
			continue
		case '"', '\'':
			quote = string(c)
			if strings.HasPrefix(src[i:], strings.Repeat(quote, 3)) {
				quote = strings.Repeat(quote, 3)
				current.WriteString(quote)
				i += 2
				continue
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case '\\':
			if i+1 < len(src) && src[i+1] == '\n' {
				current.WriteByte(' ')
				i++
				lineNumber++
				continue
			}
		case '\n':
			lineNumber++
			if depth == 0 {
				flush()
				continue
			}
			current.WriteByte(' ')
			continue
		}
		current.WriteByte(c)
	}
	flush()
	return lines
}

func lineIndent(src string, pos int) int {
	start := strings.LastIndex(src[:pos], "\n") + 1
	width := 0
	for _, c := range src[start:pos] {
		if c == '\t' {
			width += 8 - width%8
		} else {
			width++
		}
	}
	return width
}

var (
	classPattern      = regexp.MustCompile(`^class\s+([A-Za-z_]\w*)\s*(?:\((.*)\))?\s*:`)
	// Matches "name = expr" and the annotated "name: type = expr".
	assignmentPattern = regexp.MustCompile(`^([A-Za-z_]\w*)\s*(?::\s*([^=]+?)\s*)?=\s*(.*)$`)
)

type pyAssignment struct {
	name string
	expr string
	line int
}

// extractClassAttributes returns the class-level assignments of the recipe class.
// The first class deriving from ConanFile wins, otherwise the first class in the file.
func extractClassAttributes(src string) (string, []pyAssignment, error) {
	lines := splitPyLines(src)
	classIndex := -1
	for i, line := range lines {
		match := classPattern.FindStringSubmatch(line.text)
		if match == nil {
			continue
		}
		if strings.Contains(match[2], "ConanFile") {
			classIndex = i
			break
		}
		if classIndex == -1 {
			classIndex = i
		}
	}
	if classIndex == -1 {
		return "", nil, fmt.Errorf("no recipe class found")
	}
	classLine := lines[classIndex]
	className := classPattern.FindStringSubmatch(classLine.text)[1]

	var attrs []pyAssignment
	bodyIndent := -1
	for _, line := range lines[classIndex+1:] {
		if line.indent <= classLine.indent {
			break
		}
		if bodyIndent == -1 {
			bodyIndent = line.indent
		}
		if line.indent != bodyIndent {
			continue
		}
		match := assignmentPattern.FindStringSubmatch(line.text)
		if match == nil || strings.HasPrefix(match[3], "=") {
			continue
		}
		attrs = append(attrs, pyAssignment{name: match[1], expr: match[3], line: line.number})
	}
	return className, attrs, nil
}
