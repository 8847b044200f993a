// Package token defines the lexical tokens produced by internal/lexer and
// consumed by internal/parser.
package token

import "github.com/leafo/songc/internal/diag"

type Kind int

const (
	EOF Kind = iota
	ILLEGAL

	IDENT
	INT
	FLOAT
	BPM // number immediately followed by `bpm`, e.g. 120bpm
	STRING
	TEMPLATE_HEAD   // `... ${`
	TEMPLATE_MIDDLE // `} ... ${`
	TEMPLATE_TAIL   // `} ... ``
	TEMPLATE_FULL   // a template literal with no interpolation at all
	PITCH           // e.g. C4, F#3, Bb5
	DURATION        // e.g. q, e., w, t
	POSREF          // BAR:BEAT, e.g. 4:1

	// Keywords
	FN
	CONST
	LET
	IF
	ELSE
	FOR
	WHILE
	IN
	RETURN
	BREAK
	CONTINUE
	MATCH
	TRUE
	FALSE
	NULL
	IMPORT
	EXPORT
	FROM
	AS
	TYPE
	ENUM
	SCORE
	TEMPO
	METER
	SOUND
	TRACK
	PLACE
	CLIP
	KIND
	ROLE
	META

	// Operators & punctuation
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	DOTDOT
	PIPE_GT // |>
	OR      // ||
	AND     // &&
	COALESCE // ??
	EQ       // ==
	NEQ      // !=
	LT
	LE
	GT
	GE
	NOT // !
	ASSIGN
	ARROW      // ->
	FATARROW   // =>
	QUESTION   // ?
	QDOT       // ?.
	QBRACKET   // ?[
	COLON
	COMMA
	DOT
	ELLIPSIS // ... (spread)
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	LBRACKET
	RBRACKET
	SEMI
)

var keywords = map[string]Kind{
	"fn": FN, "const": CONST, "let": LET, "if": IF, "else": ELSE,
	"for": FOR, "while": WHILE, "in": IN, "return": RETURN, "break": BREAK,
	"continue": CONTINUE, "match": MATCH, "true": TRUE, "false": FALSE,
	"null": NULL, "import": IMPORT, "export": EXPORT, "from": FROM, "as": AS,
	"type": TYPE, "enum": ENUM, "score": SCORE, "tempo": TEMPO, "meter": METER,
	"sound": SOUND, "track": TRACK, "place": PLACE, "clip": CLIP, "kind": KIND,
	"role": ROLE, "meta": META,
}

// Lookup returns the keyword Kind for ident, or IDENT if ident is not reserved.
func Lookup(ident string) Kind {
	if k, ok := keywords[ident]; ok {
		return k
	}
	return IDENT
}

// Token is a single lexical token with its source position.
type Token struct {
	Kind  Kind
	Text  string // raw/decoded text (decoded for STRING/TEMPLATE_* kinds)
	Pos   diag.Position
	Int   int64
	Float float64
}

func (t Token) String() string {
	return t.Text
}

var names = map[Kind]string{
	EOF: "EOF", ILLEGAL: "ILLEGAL", IDENT: "identifier", INT: "integer",
	FLOAT: "float", BPM: "bpm literal", STRING: "string", PITCH: "pitch literal",
	DURATION: "duration literal", POSREF: "position reference",
	LPAREN: "'('", RPAREN: "')'", LBRACE: "'{'", RBRACE: "'}'",
	LBRACKET: "'['", RBRACKET: "']'", COMMA: "','", COLON: "':'", SEMI: "';'",
	ARROW: "'->'", FATARROW: "'=>'", ASSIGN: "'='", DOT: "'.'",
}

// Name returns a human-readable category name for k, used in parser
// diagnostics ("expected <Name>, found ...").
func Name(k Kind) string {
	if n, ok := names[k]; ok {
		return n
	}
	for text, kind := range keywords {
		if kind == k {
			return "'" + text + "'"
		}
	}
	return "token"
}
