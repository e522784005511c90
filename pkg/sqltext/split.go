// Package sqltext splits opaque SQL scripts into individually executable
// statements.
//
// Migration payloads and backup dumps are authored as whole scripts with
// multiple statements. The executor and restore runner apply them one
// statement at a time so that failures can be reported with a precise
// statement position. Splitting is lexical only: the statement text itself is
// never interpreted.
//
// The lexer understands enough SQL structure to avoid splitting inside string
// literals, quoted identifiers, dollar-quoted bodies, and comments:
//
//	stmts, err := sqltext.Split(script)
//	for i, stmt := range stmts {
//		if err := conn.Exec(ctx, stmt); err != nil {
//			return errors.Wrapf(err, "statement %d failed", i+1)
//		}
//	}
package sqltext

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "LineComment", Pattern: `--[^\n]*`},
	{Name: "BlockComment", Pattern: `/\*(?s:.)*?\*/`},
	{Name: "DollarBody", Pattern: `\$\$(?s:.)*?\$\$`},
	{Name: "DollarTag", Pattern: `\$[A-Za-z_][A-Za-z0-9_]*\$`},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "QuotedIdent", Pattern: `"(?:[^"]|"")*"`},
	{Name: "Semi", Pattern: `;`},
	{Name: "Chunk", Pattern: `[^;'"$/-]+`},
	{Name: "Any", Pattern: `(?s:.)`},
})

func tokenize(script string) ([]lexer.Token, error) {
	lex, err := sqlLexer.Lex("", strings.NewReader(script))
	if err != nil {
		return nil, errors.Wrap(err, "failed to lex script")
	}

	tokens, err := lexer.ConsumeAll(lex)
	return tokens, errors.Wrap(err, "failed to tokenize script")
}

// Split breaks a SQL script into executable statements, dropping statements
// that contain only comments or whitespace. Semicolons inside string
// literals, quoted identifiers, dollar-quoted bodies ($$ or $tag$), and
// comments do not terminate a statement. A trailing statement without a
// closing semicolon is included.
func Split(script string) ([]string, error) {
	tokens, err := tokenize(script)
	if err != nil {
		return nil, err
	}

	symbols := sqlLexer.Symbols()
	semi := symbols["Semi"]
	dollarTag := symbols["DollarTag"]
	lineComment := symbols["LineComment"]
	blockComment := symbols["BlockComment"]

	var (
		statements []string
		buf        strings.Builder
		executable bool
	)

	flush := func() {
		stmt := strings.TrimSpace(buf.String())
		if stmt != "" && executable {
			statements = append(statements, stmt)
		}
		buf.Reset()
		executable = false
	}

	// Absolute offset of the segment tokens were lexed from. Tagged dollar
	// quotes force a re-lex, so this is not always zero.
	offset := 0

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.EOF() {
			break
		}

		if tok.Type == dollarTag {
			// The closing tag must match the opening one, which a
			// regular lexer rule cannot express. Scan the raw script
			// for it and consume the body verbatim.
			open := offset + tok.Pos.Offset
			bodyStart := open + len(tok.Value)
			closing := strings.Index(script[bodyStart:], tok.Value)
			if closing < 0 {
				return nil, errors.Errorf("unterminated dollar quote %s", tok.Value)
			}

			end := bodyStart + closing + len(tok.Value)
			buf.WriteString(script[open:end])
			executable = true

			// The body may have confused the lexer past the closing
			// tag, so restart it from a clean boundary.
			offset = end
			if tokens, err = tokenize(script[end:]); err != nil {
				return nil, err
			}
			i = -1
			continue
		}

		if tok.Type == semi {
			flush()
			continue
		}

		buf.WriteString(tok.Value)
		if tok.Type != lineComment && tok.Type != blockComment && strings.TrimSpace(tok.Value) != "" {
			executable = true
		}
	}
	flush()

	return statements, nil
}
