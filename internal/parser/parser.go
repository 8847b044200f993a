// Package parser implements a recursive-descent, Pratt-style parser:
// tokens in, an ast.Program or a diagnostic out.
package parser

import (
	"fmt"

	"github.com/leafo/songc/internal/ast"
	"github.com/leafo/songc/internal/diag"
	"github.com/leafo/songc/internal/lexer"
	"github.com/leafo/songc/internal/token"
)

type Parser struct {
	toks []token.Token
	pos  int
	path string
}

// Parse lexes src and parses it into a Program.
func Parse(src, path string) (*ast.Program, *diag.Diagnostic) {
	lx := lexer.New(src, path)
	toks, lerr := lx.Tokenize()
	if lerr != nil {
		return nil, lerr
	}
	p := &Parser{toks: toks, path: path}
	return p.parseProgram()
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}
func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) errf(pos diag.Position, format string, args ...any) *diag.Diagnostic {
	return diag.Newf("E100", pos, format, args...).WithFile(p.path)
}

func (p *Parser) unexpected(expected string) *diag.Diagnostic {
	t := p.cur()
	return p.errf(t.Pos, "expected %s, found %s", expected, describeToken(t))
}

func describeToken(t token.Token) string {
	if t.Kind == token.EOF {
		return "end of file"
	}
	return fmt.Sprintf("%q", t.Text)
}

func (p *Parser) expect(k token.Kind) (token.Token, *diag.Diagnostic) {
	if !p.at(k) {
		return token.Token{}, p.unexpected(token.Name(k))
	}
	return p.advance(), nil
}

// Most parse functions return (value, *diag.Diagnostic) and bail on the
// first error.

func (p *Parser) parseProgram() (*ast.Program, *diag.Diagnostic) {
	prog := &ast.Program{}
	for p.at(token.IMPORT) {
		imp, err := p.parseImport()
		if err != nil {
			return nil, err
		}
		prog.Imports = append(prog.Imports, imp)
	}
	for !p.at(token.EOF) {
		decl, err := p.parseTopDecl()
		if err != nil {
			return nil, err
		}
		prog.Body = append(prog.Body, decl)
	}
	return prog, nil
}

func (p *Parser) parseImport() (ast.Import, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // import
	var names []string
	if _, err := p.expect(token.LBRACE); err != nil {
		return ast.Import{}, err
	}
	for !p.at(token.RBRACE) {
		name, err := p.expect(token.IDENT)
		if err != nil {
			return ast.Import{}, err
		}
		names = append(names, name.Text)
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.advance() // }
	if _, err := p.expect(token.FROM); err != nil {
		return ast.Import{}, err
	}
	from, err := p.expect(token.STRING)
	if err != nil {
		return ast.Import{}, err
	}
	p.skipSemi()
	return ast.Import{Names: names, From: from.Text, Pos: pos}, nil
}

func (p *Parser) skipSemi() {
	for p.at(token.SEMI) {
		p.advance()
	}
}

func (p *Parser) parseTopDecl() (ast.TopDecl, *diag.Diagnostic) {
	exported := false
	if p.at(token.EXPORT) {
		exported = true
		p.advance()
	}
	switch p.cur().Kind {
	case token.FN:
		return p.parseFnDecl(exported)
	case token.CONST:
		return p.parseConstDecl(exported)
	case token.TYPE:
		return p.parseTypeAliasDecl()
	case token.ENUM:
		return p.parseEnumDecl()
	default:
		return nil, p.unexpected("a declaration ('fn', 'const', 'type', or 'enum')")
	}
}

func (p *Parser) parseFnDecl(exported bool) (*ast.FnDecl, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // fn
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	params, err2 := p.parseParamList()
	if err2 != nil {
		return nil, err2
	}
	body, err3 := p.parseBlock()
	if err3 != nil {
		return nil, err3
	}
	return &ast.FnDecl{Name: name.Text, Params: params, Body: body, Exported: exported, Pos: pos}, nil
}

func (p *Parser) parseParamList() ([]ast.Param, *diag.Diagnostic) {
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.at(token.RPAREN) {
		name, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		param := ast.Param{Name: name.Text}
		if p.at(token.ASSIGN) {
			p.advance()
			def, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			param.Default = def
		}
		params = append(params, param)
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.advance() // )
	return params, nil
}

func (p *Parser) parseConstDecl(exported bool) (*ast.ConstDecl, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // const
	target, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	val, err2 := p.parseExpr(precLowest)
	if err2 != nil {
		return nil, err2
	}
	p.skipSemi()
	return &ast.ConstDecl{Target: target, Value: val, Exported: exported, Pos: pos}, nil
}

func (p *Parser) parseTypeAliasDecl() (*ast.TypeAliasDecl, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // type
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if p.at(token.ASSIGN) {
		p.advance()
		// type aliases only need the name recorded; skip the aliased type
		// expression's tokens up to the statement terminator.
		for !p.at(token.SEMI) && !p.at(token.EOF) {
			p.advance()
		}
	}
	p.skipSemi()
	return &ast.TypeAliasDecl{Name: name.Text, Pos: pos}, nil
}

func (p *Parser) parseEnumDecl() (*ast.EnumDecl, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // enum
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	var variants []string
	for !p.at(token.RBRACE) {
		v, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v.Text)
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.advance() // }
	return &ast.EnumDecl{Name: name.Text, Variants: variants, Pos: pos}, nil
}

// parsePattern parses a `const`/`let` LHS: a bare name, or a tuple
// destructuring pattern `(a, b, ...rest)`.
func (p *Parser) parsePattern() (ast.Pattern, *diag.Diagnostic) {
	if p.at(token.LPAREN) {
		p.advance()
		pat := ast.Pattern{IsTuple: true}
		for !p.at(token.RPAREN) {
			if p.at(token.ELLIPSIS) {
				p.advance()
				rest, err := p.expect(token.IDENT)
				if err != nil {
					return ast.Pattern{}, err
				}
				pat.Rest = rest.Text
			} else {
				name, err := p.expect(token.IDENT)
				if err != nil {
					return ast.Pattern{}, err
				}
				pat.Names = append(pat.Names, name.Text)
			}
			if p.at(token.COMMA) {
				p.advance()
			}
		}
		p.advance() // )
		return pat, nil
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return ast.Pattern{}, err
	}
	return ast.Pattern{Names: []string{name.Text}}, nil
}

// ---- Statements ----

func (p *Parser) parseBlock() ([]ast.Statement, *diag.Diagnostic) {
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	stmts, err := p.parseStatementsUntil(token.RBRACE)
	if err != nil {
		return nil, err
	}
	p.advance() // }
	return stmts, nil
}

func (p *Parser) parseStatementsUntil(end token.Kind) ([]ast.Statement, *diag.Diagnostic) {
	var stmts []ast.Statement
	p.skipSemi()
	for !p.at(end) && !p.at(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		p.skipSemi()
	}
	return stmts, nil
}

func (p *Parser) parseStatement() (ast.Statement, *diag.Diagnostic) {
	switch p.cur().Kind {
	case token.LET:
		return p.parseLetStmt(true)
	case token.CONST:
		return p.parseLetStmt(false)
	case token.IF:
		return p.parseIfStmt()
	case token.FOR:
		return p.parseForStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.MATCH:
		return p.parseMatchStmt()
	case token.RETURN:
		return p.parseReturnStmt()
	case token.BREAK:
		pos := p.advance().Pos
		p.skipSemi()
		return &ast.BreakStmt{Pos: pos}, nil
	case token.CONTINUE:
		pos := p.advance().Pos
		p.skipSemi()
		return &ast.ContinueStmt{Pos: pos}, nil
	case token.META:
		return p.parseMetaStmt()
	case token.TEMPO:
		return p.parseTempoStmt()
	case token.METER:
		return p.parseMeterStmt()
	case token.SOUND:
		return p.parseSoundStmt()
	case token.TRACK:
		return p.parseTrackStmt()
	case token.PLACE:
		return p.parsePlaceStmt()
	default:
		return p.parseSimpleStmt()
	}
}

func (p *Parser) parseLetStmt(mutable bool) (*ast.LetStmt, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // let/const
	target, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	val, err2 := p.parseExpr(precLowest)
	if err2 != nil {
		return nil, err2
	}
	p.skipSemi()
	return &ast.LetStmt{Mutable: mutable, Target: target, Value: val, Pos: pos}, nil
}

func (p *Parser) parseIfStmt() (*ast.IfElseStmt, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // if
	cond, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	then, err2 := p.parseBlock()
	if err2 != nil {
		return nil, err2
	}
	stmt := &ast.IfElseStmt{Cond: cond, Then: then, Pos: pos}
	if p.at(token.ELSE) {
		p.advance()
		if p.at(token.IF) {
			elseIf, err := p.parseIfStmt()
			if err != nil {
				return nil, err
			}
			stmt.Else = []ast.Statement{elseIf}
		} else {
			elseBody, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			stmt.Else = elseBody
		}
	}
	return stmt, nil
}

func (p *Parser) parseForStmt() (ast.Statement, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // for
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.IN); err != nil {
		return nil, err
	}
	start, err2 := p.parseExpr(precLowest)
	if err2 != nil {
		return nil, err2
	}
	// `..` is a binary operator, so `start..end` arrives as one BinaryExpr.
	if rng, ok := start.(*ast.BinaryExpr); ok && rng.Op == ".." {
		body, err3 := p.parseBlock()
		if err3 != nil {
			return nil, err3
		}
		return &ast.ForRangeStmt{Var: name.Text, Start: rng.L, End: rng.R, Body: body, Pos: pos}, nil
	}
	body, err3 := p.parseBlock()
	if err3 != nil {
		return nil, err3
	}
	return &ast.ForInStmt{Var: name.Text, Iterable: start, Body: body, Pos: pos}, nil
}

func (p *Parser) parseWhileStmt() (*ast.WhileStmt, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // while
	cond, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	body, err2 := p.parseBlock()
	if err2 != nil {
		return nil, err2
	}
	return &ast.WhileStmt{Cond: cond, Body: body, Pos: pos}, nil
}

// parseMatchHeader consumes `match ( subject ) {` and returns the subject
// expression; the statement and expression forms that call it parse the
// arms themselves.
func (p *Parser) parseMatchHeader() (ast.Expr, *diag.Diagnostic) {
	p.advance() // match
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	subject, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	return subject, nil
}

func (p *Parser) parseMatchStmt() (*ast.MatchStmt, *diag.Diagnostic) {
	pos := p.cur().Pos
	subject, err := p.parseMatchHeader()
	if err != nil {
		return nil, err
	}
	stmt := &ast.MatchStmt{Subject: subject, Pos: pos}
	p.skipSemi()
	for !p.at(token.RBRACE) {
		arm, err := p.parseMatchStmtArm()
		if err != nil {
			return nil, err
		}
		stmt.Arms = append(stmt.Arms, arm)
		p.skipSemi()
	}
	p.advance() // }
	return stmt, nil
}

func (p *Parser) parseMatchStmtArm() (ast.MatchStmtArm, *diag.Diagnostic) {
	arm := ast.MatchStmtArm{}
	if p.at(token.ELSE) {
		p.advance()
		arm.IsElse = true
	} else {
		pat, err := p.parseExpr(precLowest)
		if err != nil {
			return ast.MatchStmtArm{}, err
		}
		arm.Pattern = pat
		if p.at(token.IF) {
			p.advance()
			guard, err := p.parseExpr(precLowest)
			if err != nil {
				return ast.MatchStmtArm{}, err
			}
			arm.Guard = guard
		}
	}
	if _, err := p.expect(token.ARROW); err != nil {
		return ast.MatchStmtArm{}, err
	}
	if p.at(token.LBRACE) {
		body, err := p.parseBlock()
		if err != nil {
			return ast.MatchStmtArm{}, err
		}
		arm.Body = body
	} else {
		val, err := p.parseExpr(precLowest)
		if err != nil {
			return ast.MatchStmtArm{}, err
		}
		arm.Body = []ast.Statement{&ast.ExprStmt{X: val, Pos: val.Position()}}
	}
	p.skipSemi()
	return arm, nil
}

func (p *Parser) parseReturnStmt() (*ast.ReturnStmt, *diag.Diagnostic) {
	pos := p.advance().Pos // return
	if p.at(token.SEMI) || p.at(token.RBRACE) {
		p.skipSemi()
		return &ast.ReturnStmt{Pos: pos}, nil
	}
	val, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	p.skipSemi()
	return &ast.ReturnStmt{Value: val, Pos: pos}, nil
}

// parseSimpleStmt handles assignment, the triplet/tuplet block forms (not
// reserved keywords, recognized here by lookahead), and bare expression
// statements.
func (p *Parser) parseSimpleStmt() (ast.Statement, *diag.Diagnostic) {
	pos := p.cur().Pos
	if p.at(token.IDENT) && (p.cur().Text == "triplet" || p.cur().Text == "tuplet") && p.peekAt(1).Kind == token.LPAREN {
		return p.parseTupletLike()
	}
	expr, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	if isAssignTarget(expr) && p.at(token.ASSIGN) {
		p.advance()
		val, err2 := p.parseExpr(precLowest)
		if err2 != nil {
			return nil, err2
		}
		p.skipSemi()
		return &ast.AssignStmt{Target: expr, Value: val, Pos: pos}, nil
	}
	p.skipSemi()
	return &ast.ExprStmt{X: expr, Pos: pos}, nil
}

func isAssignTarget(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Ident, *ast.MemberExpr, *ast.IndexExpr:
		return true
	default:
		return false
	}
}

// parseTupletLike parses `triplet(n[, inTime]){ ... }` and
// `tuplet(actual, normal){ ... }` — a call head directly followed by a
// block.
func (p *Parser) parseTupletLike() (ast.Statement, *diag.Diagnostic) {
	pos := p.cur().Pos
	name := p.advance().Text // triplet | tuplet
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var args []ast.Expr
	for !p.at(token.RPAREN) {
		arg, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.advance() // )
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if name == "triplet" {
		stmt := &ast.TripletStmt{Body: body, Pos: pos}
		if lit, ok := args[0].(*ast.IntLit); ok {
			stmt.N = int(lit.Value)
		}
		if len(args) > 1 {
			stmt.InTime = args[1]
		}
		return stmt, nil
	}
	stmt := &ast.TupletStmt{Body: body, Pos: pos}
	if lit, ok := args[0].(*ast.IntLit); ok {
		stmt.Actual = int(lit.Value)
	}
	if len(args) > 1 {
		stmt.Normal = args[1]
	}
	return stmt, nil
}

// ---- Score-item statements ----

func (p *Parser) parseKVList() ([]ast.KV, *diag.Diagnostic) {
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	var fields []ast.KV
	p.skipSemi()
	for !p.at(token.RBRACE) {
		key, err := p.parseFieldKey()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		val, err2 := p.parseExpr(precLowest)
		if err2 != nil {
			return nil, err2
		}
		fields = append(fields, ast.KV{Key: key, Value: val})
		if p.at(token.COMMA) {
			p.advance()
		}
		p.skipSemi()
	}
	p.advance() // }
	return fields, nil
}

func (p *Parser) parseFieldKey() (string, *diag.Diagnostic) {
	if p.at(token.STRING) {
		return p.advance().Text, nil
	}
	if p.at(token.IDENT) {
		return p.advance().Text, nil
	}
	// allow any keyword to double as a field key, e.g. `kind: "drum"`
	t := p.advance()
	return t.Text, nil
}

func (p *Parser) parseMetaStmt() (*ast.MetaStmt, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // meta
	fields, err := p.parseKVList()
	if err != nil {
		return nil, err
	}
	return &ast.MetaStmt{Fields: fields, Pos: pos}, nil
}

func (p *Parser) parseTempoStmt() (*ast.TempoStmt, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // tempo
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	stmt := &ast.TempoStmt{Pos: pos}
	p.skipSemi()
	for !p.at(token.RBRACE) {
		entry, err := p.parseTempoEntry()
		if err != nil {
			return nil, err
		}
		stmt.Entries = append(stmt.Entries, entry)
		if p.at(token.SEMI) {
			p.skipSemi()
		}
	}
	p.advance() // }
	return stmt, nil
}

func (p *Parser) parseTempoEntry() (ast.TempoEntry, *diag.Diagnostic) {
	at, err := p.parseExpr(precLowest)
	if err != nil {
		return ast.TempoEntry{}, err
	}
	if _, err := p.expect(token.ARROW); err != nil {
		return ast.TempoEntry{}, err
	}
	// gradational form: at -> endAt (ramp|ease) bpm
	if p.peekAt(1).Text == "ramp" || p.peekAt(1).Text == "ease" {
		endAt, err := p.parseExpr(precLowest)
		if err != nil {
			return ast.TempoEntry{}, err
		}
		ramp := p.advance().Text // ramp | ease
		bpm, err2 := p.parseExpr(precLowest)
		if err2 != nil {
			return ast.TempoEntry{}, err2
		}
		return ast.TempoEntry{At: at, EndAt: endAt, Ramp: ramp, BPM: bpm}, nil
	}
	bpm, err2 := p.parseExpr(precLowest)
	if err2 != nil {
		return ast.TempoEntry{}, err2
	}
	return ast.TempoEntry{At: at, BPM: bpm}, nil
}

func (p *Parser) parseMeterStmt() (*ast.MeterStmt, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // meter
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	stmt := &ast.MeterStmt{Pos: pos}
	p.skipSemi()
	for !p.at(token.RBRACE) {
		at, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.ARROW); err != nil {
			return nil, err
		}
		num, err2 := p.expect(token.INT)
		if err2 != nil {
			return nil, err2
		}
		if _, err := p.expect(token.SLASH); err != nil {
			return nil, err
		}
		den, err3 := p.expect(token.INT)
		if err3 != nil {
			return nil, err3
		}
		stmt.Entries = append(stmt.Entries, ast.MeterEntry{At: at, Numerator: int(num.Int), Denominator: int(den.Int)})
		p.skipSemi()
	}
	p.advance() // }
	return stmt, nil
}

func (p *Parser) parseSoundStmt() (*ast.SoundStmt, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // sound
	id, err := p.expect(token.STRING)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KIND); err != nil {
		return nil, err
	}
	kind, err2 := p.expect(token.IDENT)
	if err2 != nil {
		return nil, err2
	}
	fields, err3 := p.parseKVList()
	if err3 != nil {
		return nil, err3
	}
	return &ast.SoundStmt{ID: id.Text, Kind: kind.Text, Fields: fields, Pos: pos}, nil
}

func (p *Parser) parseTrackStmt() (*ast.TrackStmt, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // track
	name, err := p.expect(token.STRING)
	if err != nil {
		return nil, err
	}
	stmt := &ast.TrackStmt{Name: name.Text, Pos: pos}
	if p.at(token.ROLE) {
		p.advance()
		role, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		stmt.Role = role.Text
	}
	if p.at(token.SOUND) {
		p.advance()
		soundID, err := p.expect(token.STRING)
		if err != nil {
			return nil, err
		}
		stmt.SoundID = soundID.Text
	}
	body, err2 := p.parseBlock()
	if err2 != nil {
		return nil, err2
	}
	stmt.Body = body
	return stmt, nil
}

func (p *Parser) parsePlaceStmt() (*ast.PlaceStmt, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // place
	at, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	clip, err2 := p.parseExpr(precLowest)
	if err2 != nil {
		return nil, err2
	}
	p.skipSemi()
	return &ast.PlaceStmt{At: at, Clip: clip, Pos: pos}, nil
}

// ---- Expressions (Pratt precedence climbing) ----

type precedence int

const (
	precLowest precedence = iota
	precPipe              // |>
	precOr                // ||
	precAnd               // &&
	precCoalesce          // ??
	precEquality          // == !=
	precRelational        // < <= > >=
	precAdditive          // + -
	precMultiplicative    // * / %
	precRange             // ..
	precUnary
	precPostfix
)

func binPrec(k token.Kind) (precedence, bool) {
	switch k {
	case token.PIPE_GT:
		return precPipe, true
	case token.OR:
		return precOr, true
	case token.AND:
		return precAnd, true
	case token.COALESCE:
		return precCoalesce, true
	case token.EQ, token.NEQ:
		return precEquality, true
	case token.LT, token.LE, token.GT, token.GE:
		return precRelational, true
	case token.PLUS, token.MINUS:
		return precAdditive, true
	case token.STAR, token.SLASH, token.PERCENT:
		return precMultiplicative, true
	case token.DOTDOT:
		return precRange, true
	default:
		return precLowest, false
	}
}

var opText = map[token.Kind]string{
	token.PIPE_GT: "|>", token.OR: "||", token.AND: "&&", token.COALESCE: "??",
	token.EQ: "==", token.NEQ: "!=", token.LT: "<", token.LE: "<=", token.GT: ">", token.GE: ">=",
	token.PLUS: "+", token.MINUS: "-", token.STAR: "*", token.SLASH: "/", token.PERCENT: "%",
	token.DOTDOT: "..",
}

func (p *Parser) parseExpr(minPrec precedence) (ast.Expr, *diag.Diagnostic) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		prec, ok := binPrec(p.cur().Kind)
		if !ok || prec < minPrec {
			return left, nil
		}
		op := p.advance()
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: opText[op.Kind], L: left, R: right, Pos: op.Pos}
	}
}

func (p *Parser) parseUnary() (ast.Expr, *diag.Diagnostic) {
	if p.at(token.NOT) || p.at(token.MINUS) {
		op := p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		opStr := "!"
		if op.Kind == token.MINUS {
			opStr = "-"
		}
		return &ast.UnaryExpr{Op: opStr, X: x, Pos: op.Pos}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, *diag.Diagnostic) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Kind {
		case token.DOT:
			pos := p.advance().Pos
			name, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			expr = &ast.MemberExpr{X: expr, Name: name.Text, Pos: pos}
		case token.QDOT:
			pos := p.advance().Pos
			name, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			expr = &ast.MemberExpr{X: expr, Name: name.Text, Optional: true, Pos: pos}
		case token.LBRACKET:
			pos := p.advance().Pos
			idx, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBRACKET); err != nil {
				return nil, err
			}
			expr = &ast.IndexExpr{X: expr, Index: idx, Pos: pos}
		case token.QBRACKET:
			pos := p.advance().Pos
			idx, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBRACKET); err != nil {
				return nil, err
			}
			expr = &ast.IndexExpr{X: expr, Index: idx, Optional: true, Pos: pos}
		case token.LPAREN:
			pos := p.cur().Pos
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			expr = &ast.CallExpr{Callee: expr, Args: args, Pos: pos}
		case token.QUESTION:
			pos := p.advance().Pos
			then, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			els, err2 := p.parseExpr(precLowest)
			if err2 != nil {
				return nil, err2
			}
			expr = &ast.ConditionalExpr{Cond: expr, Then: then, Else: els, Pos: pos}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseCallArgs() ([]ast.Expr, *diag.Diagnostic) {
	p.advance() // (
	var args []ast.Expr
	for !p.at(token.RPAREN) {
		if p.at(token.ELLIPSIS) {
			pos := p.advance().Pos
			x, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			args = append(args, &ast.SpreadExpr{X: x, Pos: pos})
		} else if p.at(token.IDENT) && p.peekAt(1).Kind == token.COLON {
			pos := p.cur().Pos
			name := p.advance().Text
			p.advance() // :
			val, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			args = append(args, &ast.NamedArg{Name: name, Value: val, Pos: pos})
		} else {
			x, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			args = append(args, x)
		}
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.advance() // )
	return args, nil
}

func (p *Parser) parsePrimary() (ast.Expr, *diag.Diagnostic) {
	t := p.cur()
	switch t.Kind {
	case token.INT:
		p.advance()
		return &ast.IntLit{Value: t.Int, Pos: t.Pos}, nil
	case token.FLOAT:
		p.advance()
		return &ast.FloatLit{Value: t.Float, Pos: t.Pos}, nil
	case token.BPM:
		p.advance()
		return &ast.FloatLit{Value: t.Float, Pos: t.Pos}, nil
	case token.TRUE:
		p.advance()
		return &ast.BoolLit{Value: true, Pos: t.Pos}, nil
	case token.FALSE:
		p.advance()
		return &ast.BoolLit{Value: false, Pos: t.Pos}, nil
	case token.NULL:
		p.advance()
		return &ast.NullLit{Pos: t.Pos}, nil
	case token.STRING:
		p.advance()
		return &ast.StringLit{Value: t.Text, Pos: t.Pos}, nil
	case token.PITCH:
		p.advance()
		return &ast.PitchLit{Key: int(t.Int), Pos: t.Pos}, nil
	case token.DURATION:
		p.advance()
		return p.durationLitFromToken(t), nil
	case token.POSREF:
		p.advance()
		bar, beat, err := parsePosRefText(t.Text)
		if err != nil {
			return nil, p.errf(t.Pos, "malformed position reference %q", t.Text)
		}
		return &ast.PosRefLit{Bar: bar, Beat: beat, Pos: t.Pos}, nil
	case token.TEMPLATE_FULL:
		p.advance()
		return &ast.TemplateLit{Parts: []string{t.Text}, Pos: t.Pos}, nil
	case token.TEMPLATE_HEAD:
		return p.parseTemplateLit()
	case token.IDENT:
		p.advance()
		return &ast.Ident{Name: t.Text, Pos: t.Pos}, nil
	case token.LPAREN:
		return p.parseParenOrTuple()
	case token.LBRACKET:
		return p.parseArrayLit()
	case token.LBRACE:
		return p.parseObjectLit()
	case token.MATCH:
		return p.parseMatchExpr()
	case token.FN:
		return p.parseArrowFuncFn()
	case token.SCORE:
		return p.parseScoreBlock()
	case token.CLIP:
		return p.parseClipBlock()
	default:
		return nil, p.unexpected("an expression")
	}
}

// durationLitFromToken reads the DURATION token's denominator (Int) and
// dot count (Float) as emitted by the lexer. The lexer always emits
// numerator=1.
func (p *Parser) durationLitFromToken(t token.Token) *ast.DurationLit {
	return &ast.DurationLit{Numerator: 1, Denominator: int(t.Int), Dots: int(t.Float), Pos: t.Pos}
}

func parsePosRefText(text string) (bar, beat int, err error) {
	i := 0
	for i < len(text) && text[i] != ':' {
		i++
	}
	if i == len(text) {
		return 0, 0, fmt.Errorf("missing ':' in position reference")
	}
	bar, err = atoiSimple(text[:i])
	if err != nil {
		return 0, 0, err
	}
	beat, err = atoiSimple(text[i+1:])
	if err != nil {
		return 0, 0, err
	}
	return bar, beat, nil
}

func atoiSimple(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid digit %q", c)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

func (p *Parser) parseTemplateLit() (*ast.TemplateLit, *diag.Diagnostic) {
	head := p.advance() // TEMPLATE_HEAD
	lit := &ast.TemplateLit{Parts: []string{head.Text}, Pos: head.Pos}
	for {
		expr, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		lit.Exprs = append(lit.Exprs, expr)
		switch p.cur().Kind {
		case token.TEMPLATE_MIDDLE:
			t := p.advance()
			lit.Parts = append(lit.Parts, t.Text)
		case token.TEMPLATE_TAIL:
			t := p.advance()
			lit.Parts = append(lit.Parts, t.Text)
			return lit, nil
		default:
			return nil, p.unexpected("template continuation")
		}
	}
}

func (p *Parser) parseParenOrTuple() (ast.Expr, *diag.Diagnostic) {
	pos := p.advance().Pos // (
	if p.at(token.RPAREN) {
		p.advance()
		return &ast.TupleLit{Pos: pos}, nil
	}
	first, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	if !p.at(token.COMMA) {
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return first, nil
	}
	elems := []ast.Expr{first}
	for p.at(token.COMMA) {
		p.advance()
		if p.at(token.RPAREN) {
			break
		}
		e, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return &ast.TupleLit{Elems: elems, Pos: pos}, nil
}

func (p *Parser) parseArrayLit() (*ast.ArrayLit, *diag.Diagnostic) {
	pos := p.advance().Pos // [
	lit := &ast.ArrayLit{Pos: pos}
	for !p.at(token.RBRACKET) {
		elem := ast.ArrayElem{}
		if p.at(token.ELLIPSIS) {
			p.advance()
			elem.Spread = true
		}
		val, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		elem.Value = val
		lit.Elems = append(lit.Elems, elem)
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.advance() // ]
	return lit, nil
}

func (p *Parser) parseObjectLit() (*ast.ObjectLit, *diag.Diagnostic) {
	pos := p.advance().Pos // {
	lit := &ast.ObjectLit{Pos: pos}
	for !p.at(token.RBRACE) {
		if p.at(token.ELLIPSIS) {
			p.advance()
			x, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			lit.Fields = append(lit.Fields, ast.ObjectField{Value: x, Spread: true})
		} else {
			key, err := p.parseFieldKey()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			val, err2 := p.parseExpr(precLowest)
			if err2 != nil {
				return nil, err2
			}
			lit.Fields = append(lit.Fields, ast.ObjectField{Key: key, Value: val})
		}
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.advance() // }
	return lit, nil
}

func (p *Parser) parseMatchExpr() (*ast.MatchExpr, *diag.Diagnostic) {
	pos := p.cur().Pos
	subject, err := p.parseMatchHeader()
	if err != nil {
		return nil, err
	}
	expr := &ast.MatchExpr{Subject: subject, Pos: pos}
	p.skipSemi()
	for !p.at(token.RBRACE) {
		arm, err := p.parseMatchExprArm()
		if err != nil {
			return nil, err
		}
		expr.Arms = append(expr.Arms, arm)
		p.skipSemi()
	}
	p.advance() // }
	return expr, nil
}

func (p *Parser) parseMatchExprArm() (ast.MatchExprArm, *diag.Diagnostic) {
	arm := ast.MatchExprArm{}
	if p.at(token.ELSE) {
		p.advance()
		arm.IsElse = true
	} else {
		pat, err := p.parseExpr(precLowest)
		if err != nil {
			return ast.MatchExprArm{}, err
		}
		arm.Pattern = pat
		if p.at(token.IF) {
			p.advance()
			guard, err := p.parseExpr(precLowest)
			if err != nil {
				return ast.MatchExprArm{}, err
			}
			arm.Guard = guard
		}
	}
	if _, err := p.expect(token.ARROW); err != nil {
		return ast.MatchExprArm{}, err
	}
	val, err := p.parseExpr(precLowest)
	if err != nil {
		return ast.MatchExprArm{}, err
	}
	arm.Value = val
	p.skipSemi()
	return arm, nil
}

// parseArrowFuncFn parses an anonymous `fn(params) => expr` or
// `fn(params) { ... }` arrow function literal, distinct from a top-level
// `fn name(...) { ... }` declaration.
func (p *Parser) parseArrowFuncFn() (*ast.ArrowFunc, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // fn
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	return p.finishArrowFunc(params, pos)
}

func (p *Parser) finishArrowFunc(params []ast.Param, pos diag.Position) (*ast.ArrowFunc, *diag.Diagnostic) {
	if p.at(token.FATARROW) {
		p.advance()
		if p.at(token.LBRACE) {
			body, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			return &ast.ArrowFunc{Params: params, BlockBody: body, Pos: pos}, nil
		}
		body, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		return &ast.ArrowFunc{Params: params, Body: body, Pos: pos}, nil
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ArrowFunc{Params: params, BlockBody: body, Pos: pos}, nil
}

func (p *Parser) parseScoreBlock() (*ast.ScoreBlock, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // score
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ScoreBlock{Body: body, Pos: pos}, nil
}

func (p *Parser) parseClipBlock() (*ast.ClipBlock, *diag.Diagnostic) {
	pos := p.cur().Pos
	p.advance() // clip
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ClipBlock{Body: body, Pos: pos}, nil
}
