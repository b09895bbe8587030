package parser

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/t4gen/pkg/position"
)

// State is the lexical state reported by the Tokenizer after each Advance.
type State int

const (
	StateContent State = iota
	StateExpression
	StateBlock
	StateDirective
	StateDirectiveName
	StateDirectiveValue
	StateHelper
	StateEOF
)

func (s State) String() string {
	switch s {
	case StateContent:
		return "Content"
	case StateExpression:
		return "Expression"
	case StateBlock:
		return "Block"
	case StateDirective:
		return "Directive"
	case StateDirectiveName:
		return "DirectiveName"
	case StateDirectiveValue:
		return "DirectiveValue"
	case StateHelper:
		return "Helper"
	case StateEOF:
		return "EOF"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// TagLexerRules split template text into tag markers and the text between them.
	TagLexerRules = lexer.Rules{
		"Root": {
			{Name: "EscapedTagStart", Pattern: `\\<#`},
			{Name: "DirectiveStart", Pattern: `<#@`, Action: lexer.Push("Directive")},
			{Name: "ExpressionStart", Pattern: `<#=`, Action: lexer.Push("Code")},
			{Name: "HelperStart", Pattern: `<#\+`, Action: lexer.Push("Code")},
			{Name: "BlockStart", Pattern: `<#`, Action: lexer.Push("Code")},
			{Name: "Text", Pattern: `[^<\\]+`},
			{Name: "Char", Pattern: `[<\\]`},
		},
		"Code": {
			{Name: "EscapedTagEnd", Pattern: `\\#>`},
			{Name: "TagEnd", Pattern: `#>`, Action: lexer.Pop()},
			{Name: "CodeText", Pattern: `[^#\\]+`},
			{Name: "CodeChar", Pattern: `[#\\]`},
		},
		"Directive": {
			{Name: "DirectiveEnd", Pattern: `#>`, Action: lexer.Pop()},
			{Name: "whitespace", Pattern: `\s+`},
			{Name: "Name", Pattern: `[A-Za-z_][A-Za-z0-9_.\-]*`},
			{Name: "Equals", Pattern: `=`},
			// \" is an escaped quote unless whitespace, '#' or the end of the
			// text follows it, in which case the backslash is literal and the
			// quote closes the value.
			{Name: "Value", Pattern: `"(?:[^"\\]|\\+[^"\\]|(?:\\+")+(?:[^"\\\s#]|\\+[^"\\]))*(?:\\+")*\\*"`},
		},
	}

	// TagLexer is the stateful lexer behind the Tokenizer
	TagLexer = lexer.MustStateful(TagLexerRules)

	tagSymbols = TagLexer.Symbols()
)

// ParseError is a lexical failure at a known location.
type ParseError struct {
	Location position.Location
	Message  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Location, e.Message)
}

func newParseError(loc position.Location, format string, args ...any) error {
	return errors.WithStack(&ParseError{Location: loc, Message: fmt.Sprintf(format, args...)})
}

// Tokenizer walks template text one lexical state at a time. Directive tags
// report StateDirective when opened, then alternate StateDirectiveName and
// StateDirectiveValue, then report StateDirective again when closed.
type Tokenizer struct {
	file string
	lex  lexer.Lexer
	peek *lexer.Token

	state    State
	value    string
	location position.Location
	tagStart position.Location
	tagEnd   position.Location

	inDirective     bool
	afterDirective  bool
	attributeNamed  bool
	directiveOpened position.Location
}

// NewTokenizer prepares a tokenizer for content read from file.
func NewTokenizer(file, content string) (*Tokenizer, error) {
	lex, err := TagLexer.LexString(file, content)
	if err != nil {
		return nil, errors.Errorf("creating lexer for %s: %w", file, err)
	}
	start := position.Start(file)
	return &Tokenizer{
		file:     file,
		lex:      lex,
		state:    StateContent,
		location: start,
		tagStart: start,
		tagEnd:   start,
	}, nil
}

func (t *Tokenizer) File() string                        { return t.file }
func (t *Tokenizer) State() State                        { return t.state }
func (t *Tokenizer) Value() string                       { return t.value }
func (t *Tokenizer) Location() position.Location         { return t.location }
func (t *Tokenizer) TagStartLocation() position.Location { return t.tagStart }
func (t *Tokenizer) TagEndLocation() position.Location   { return t.tagEnd }

// Advance moves to the next state. Once StateEOF is reached every further
// call reports StateEOF again.
func (t *Tokenizer) Advance() (State, error) {
	if t.state == StateEOF {
		return StateEOF, nil
	}

	t.value = ""

	if t.inDirective {
		return t.advanceDirective()
	}

	tok, err := t.next()
	if err != nil {
		return t.state, err
	}

	switch tok.Type {
	case lexer.EOF:
		t.state = StateEOF
		t.location = t.loc(tok.Pos)
		t.tagStart = t.location
		t.tagEnd = t.location
		return t.state, nil

	case tagSymbols["DirectiveStart"]:
		t.inDirective = true
		t.attributeNamed = false
		t.state = StateDirective
		t.tagStart = t.loc(tok.Pos)
		t.directiveOpened = t.tagStart
		t.location = t.tagStart.AddCols(len(tok.Value))
		return t.state, nil

	case tagSymbols["ExpressionStart"]:
		return t.readCode(StateExpression, tok)
	case tagSymbols["HelperStart"]:
		return t.readCode(StateHelper, tok)
	case tagSymbols["BlockStart"]:
		return t.readCode(StateBlock, tok)

	default:
		return t.readContent(tok)
	}
}

func (t *Tokenizer) readContent(first lexer.Token) (State, error) {
	var sb, raw strings.Builder
	start := t.loc(first.Pos)
	sb.WriteString(contentText(first))
	raw.WriteString(first.Value)

	for {
		tok, err := t.peekToken()
		if err != nil {
			return t.state, err
		}
		if !isContentToken(tok.Type) {
			break
		}
		t.peek = nil
		sb.WriteString(contentText(*tok))
		raw.WriteString(tok.Value)
	}

	text := sb.String()
	end := start.Advance(raw.String())

	if t.afterDirective {
		t.afterDirective = false
		if trimmed, ok := trimLeadingNewline(text); ok {
			start = start.AddLine()
			text = trimmed
		}
	}

	t.state = StateContent
	t.value = text
	t.location = start
	t.tagStart = start
	t.tagEnd = end
	return t.state, nil
}

func (t *Tokenizer) readCode(state State, open lexer.Token) (State, error) {
	tagStart := t.loc(open.Pos)
	codeStart := tagStart.AddCols(len(open.Value))

	var sb strings.Builder
	for {
		tok, err := t.next()
		if err != nil {
			return t.state, err
		}
		switch tok.Type {
		case lexer.EOF:
			return t.state, newParseError(tagStart, "Unexpected end of file: '%s' tag is not closed", strings.ToLower(state.String()))
		case tagSymbols["EscapedTagEnd"]:
			sb.WriteString("#>")
		case tagSymbols["TagEnd"]:
			t.afterDirective = false
			t.state = state
			t.value = sb.String()
			t.location = codeStart
			t.tagStart = tagStart
			t.tagEnd = t.loc(tok.Pos).AddCols(len(tok.Value))
			return t.state, nil
		default:
			sb.WriteString(tok.Value)
		}
	}
}

func (t *Tokenizer) advanceDirective() (State, error) {
	tok, err := t.nextSignificant()
	if err != nil {
		return t.state, err
	}

	switch tok.Type {
	case lexer.EOF:
		return t.state, newParseError(t.directiveOpened, "Unexpected end of file: directive is not closed")

	case tagSymbols["DirectiveEnd"]:
		t.inDirective = false
		t.afterDirective = true
		t.state = StateDirective
		t.location = t.loc(tok.Pos)
		t.tagStart = t.directiveOpened
		t.tagEnd = t.location.AddCols(len(tok.Value))
		return t.state, nil

	case tagSymbols["Name"]:
		t.state = StateDirectiveName
		t.value = tok.Value
		t.location = t.loc(tok.Pos)
		return t.state, nil

	case tagSymbols["Equals"]:
		valueTok, err := t.nextSignificant()
		if err != nil {
			return t.state, err
		}
		if valueTok.Type != tagSymbols["Value"] {
			return t.state, newParseError(t.loc(valueTok.Pos), "Expected a quoted attribute value after '='")
		}
		t.state = StateDirectiveValue
		t.value = unquoteDirectiveValue(valueTok.Value)
		t.location = t.loc(valueTok.Pos).AddCol()
		return t.state, nil

	case tagSymbols["Value"]:
		return t.state, newParseError(t.loc(tok.Pos), "Expected '=' before attribute value")

	default:
		return t.state, newParseError(t.loc(tok.Pos), "Unexpected '%s' in directive", tok.Value)
	}
}

func (t *Tokenizer) next() (lexer.Token, error) {
	if t.peek != nil {
		tok := *t.peek
		t.peek = nil
		return tok, nil
	}
	tok, err := t.lex.Next()
	if err != nil {
		return tok, t.wrapLexError(err)
	}
	return tok, nil
}

func (t *Tokenizer) nextSignificant() (lexer.Token, error) {
	for {
		tok, err := t.next()
		if err != nil {
			return tok, err
		}
		if tok.Type != tagSymbols["whitespace"] {
			return tok, nil
		}
	}
}

func (t *Tokenizer) peekToken() (*lexer.Token, error) {
	if t.peek != nil {
		return t.peek, nil
	}
	tok, err := t.lex.Next()
	if err != nil {
		return nil, t.wrapLexError(err)
	}
	t.peek = &tok
	return t.peek, nil
}

func (t *Tokenizer) wrapLexError(err error) error {
	var lexErr *lexer.Error
	if errors.As(err, &lexErr) {
		return newParseError(t.loc(lexErr.Pos), "%s", lexErr.Msg)
	}
	return newParseError(t.location, "%s", err.Error())
}

func (t *Tokenizer) loc(pos lexer.Position) position.Location {
	return position.New(t.file, pos.Line, pos.Column)
}

func isContentToken(typ lexer.TokenType) bool {
	return typ == tagSymbols["Text"] || typ == tagSymbols["Char"] || typ == tagSymbols["EscapedTagStart"]
}

func contentText(tok lexer.Token) string {
	if tok.Type == tagSymbols["EscapedTagStart"] {
		return "<#"
	}
	return tok.Value
}

func trimLeadingNewline(text string) (string, bool) {
	switch {
	case strings.HasPrefix(text, "\r\n"):
		return text[2:], true
	case strings.HasPrefix(text, "\n"), strings.HasPrefix(text, "\r"):
		return text[1:], true
	default:
		return text, false
	}
}

func unquoteDirectiveValue(quoted string) string {
	inner := quoted[1 : len(quoted)-1]
	return strings.ReplaceAll(inner, `\"`, `"`)
}
