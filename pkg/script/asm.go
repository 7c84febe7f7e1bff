package script

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// scriptLexer tokenizes the small SCRIPTS assembly dialect accepted by
// the ad-hoc script command: one statement per line, numbers in
// decimal or 0x hex, ';' comments.
var scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `;[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},

	{Name: "KwMove", Pattern: `(?i)\bMOVE\b`},
	{Name: "KwMemory", Pattern: `(?i)\bMEMORY\b`},
	{Name: "KwInt", Pattern: `(?i)\bINT\b`},
	{Name: "KwNop", Pattern: `(?i)\bNOP\b`},

	{Name: "Comma", Pattern: `,`},
	{Name: "Number", Pattern: `0[xX][0-9a-fA-F]+|\d+`},
})

// Program is a parsed script source file.
type Program struct {
	Stmts []*Stmt `parser:"@@*"`
}

// Stmt is one script statement.
type Stmt struct {
	Move *MoveStmt `parser:"@@"`
	Int  *IntStmt  `parser:"| @@"`
	Nop  bool      `parser:"| @KwNop"`
}

// MoveStmt is "MOVE MEMORY len, src, dst".
type MoveStmt struct {
	Len string `parser:"KwMove KwMemory @Number"`
	Src string `parser:"Comma @Number"`
	Dst string `parser:"Comma @Number"`
}

// IntStmt is "INT value"; the value lands in DSPS when the chip stops.
type IntStmt struct {
	Value string `parser:"KwInt @Number"`
}

// Parser parses the SCRIPTS assembly dialect.
type Parser struct {
	parser *participle.Parser[Program]
}

// NewParser builds a script parser instance.
func NewParser() (*Parser, error) {
	parser, err := participle.Build[Program](
		participle.Lexer(scriptLexer),
		participle.Elide("Comment", "Whitespace"),
	)
	if err != nil {
		return nil, fmt.Errorf("script: build parser: %w", err)
	}
	return &Parser{parser: parser}, nil
}

// Parse parses script source from a reader.
func (p *Parser) Parse(r io.Reader) (*Program, error) {
	prog, err := p.parser.Parse("", r)
	if err != nil {
		return nil, fmt.Errorf("script: parse error: %w", err)
	}
	return prog, nil
}

// ParseString parses script source from a string.
func (p *Parser) ParseString(input string) (*Program, error) {
	prog, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("script: parse error: %w", err)
	}
	return prog, nil
}

// ParseFile parses script source from a file path.
func (p *Parser) ParseFile(filename string) (*Program, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("script: open file: %w", err)
	}
	defer file.Close()
	return p.Parse(file)
}

func parseNum(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("script: bad number %q: %w", s, err)
	}
	return uint32(v), nil
}

// Assemble encodes a parsed program into instruction words. A program
// that does not end with an INT gets an interrupt-and-stop appended so
// the chip always signals completion.
func (prog *Program) Assemble() ([]uint32, error) {
	var words []uint32
	terminated := false
	for _, st := range prog.Stmts {
		terminated = false
		switch {
		case st.Move != nil:
			length, err := parseNum(st.Move.Len)
			if err != nil {
				return nil, err
			}
			if length > 0x00ffffff {
				return nil, fmt.Errorf("script: move length %#x exceeds 24 bits", length)
			}
			src, err := parseNum(st.Move.Src)
			if err != nil {
				return nil, err
			}
			dst, err := parseNum(st.Move.Dst)
			if err != nil {
				return nil, err
			}
			words = append(words, opMemMove|length, src, dst)

		case st.Int != nil:
			v, err := parseNum(st.Int.Value)
			if err != nil {
				return nil, err
			}
			words = append(words, opIntStop, v)
			terminated = true

		case st.Nop:
			words = append(words, 0, 0)
		}
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("script: empty program")
	}
	if !terminated {
		words = append(words, opIntStop, 0)
	}
	return words, nil
}

// Run places an assembled program in DMA memory and executes it.
func (e *Engine) Run(words []uint32) error {
	buf, err := e.sess.Host().Mem.Alloc(uint32(len(words))*4, 16)
	if err != nil {
		return fmt.Errorf("script: alloc program: %w", err)
	}
	defer buf.Free()
	for i, w := range words {
		buf.Write32(uint32(i)*4, w)
	}
	e.flush(buf)
	e.sess.Acquire()
	return e.Execute(buf.Addr)
}
