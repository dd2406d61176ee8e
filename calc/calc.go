// Package calc implements the stack-calculator mini-language's textual
// parser: the external collaborator spec'd only by its interface,
// adapted from function.rs's parse_helper/parse_uint/parse_iint. It
// turns a whitespace-tolerant token stream directly into a
// command.Command sequence, with no intermediate AST — the grammar is
// regular enough that recursive descent over the raw string, recursing
// one level per `{`, is the whole parser.
package calc

import (
	"math"
	"strings"
	"unicode/utf8"

	"rpnjit/command"
)

// maxStackIndex/minStackIndex bound 'l'/'p'/'s' indices not by int32
// range itself but by what command.PushStackIndex/PopStackIndex actually
// do with it: they scale the index by 8 (bytes per slot) and narrow the
// result to an int32 displacement hole. An index whose raw value fits
// int32 but whose *8 scaling doesn't would silently wrap instead of
// addressing the slot it names, so the bound here is scaled down by 8
// to reject exactly those indices before they ever reach command.
const (
	maxStackIndex = math.MaxInt32 / 8
	minStackIndex = math.MinInt32 / 8
)

// Parse compiles a stack-calculator program into a command sequence
// ready for jit.AssembleFunction, and the highest parameter letter
// (a..f) it referenced, 0 if none. Leading and trailing whitespace
// around tokens is ignored; anything left over after the top-level
// parse other than trailing whitespace is UnrecognizedCommand.
func Parse(s string) ([]command.Command, int, error) {
	p := &parser{src: s}
	cmds, paramCount, err := p.parseUntil(false, 0)
	if err != nil {
		return nil, 0, err
	}
	rest := strings.TrimLeft(p.src[p.pos:], " \t\r\n")
	if rest != "" {
		r, _ := utf8.DecodeRuneInString(rest)
		return nil, 0, &UnrecognizedCommand{Char: r, Pos: p.pos + (len(p.src[p.pos:]) - len(rest))}
	}
	return cmds, paramCount, nil
}

type parser struct {
	src string
	pos int
}

// parseUntil parses commands until end of input or, when inLoop is
// true, a closing `}` (consumed here, before returning). It returns
// the highest parameter letter referenced within this level or any
// loop nested inside it.
func (p *parser) parseUntil(inLoop bool, openPos int) ([]command.Command, int, error) {
	var cmds []command.Command
	paramCount := 0

	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			if inLoop {
				return nil, 0, &UnterminatedLoop{Pos: openPos}
			}
			return cmds, paramCount, nil
		}

		r, size := utf8.DecodeRuneInString(p.src[p.pos:])

		switch r {
		case '}':
			if !inLoop {
				return cmds, paramCount, nil
			}
			p.pos += size
			return cmds, paramCount, nil

		case 'a', 'b', 'c', 'd', 'e', 'f':
			letter := int(r-'a') + 1
			if letter > paramCount {
				paramCount = letter
			}
			cmds = append(cmds, command.PushParam(letter-1))
			p.pos += size

		case '+':
			cmds = append(cmds, command.Add())
			p.pos += size
		case '-':
			cmds = append(cmds, command.Subtract())
			p.pos += size
		case '*':
			cmds = append(cmds, command.Multiply())
			p.pos += size
		case '/':
			cmds = append(cmds, command.Divide())
			p.pos += size
		case '%':
			cmds = append(cmds, command.Mod())
			p.pos += size
		case '\\':
			cmds = append(cmds, command.UDivide())
			p.pos += size
		case '@':
			cmds = append(cmds, command.UMod())
			p.pos += size

		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			start := p.pos
			magnitude, err := p.parseUint()
			if err != nil {
				return nil, 0, err
			}
			if magnitude > math.MaxInt64 {
				return nil, 0, &IntegerLiteralOutOfRange{Text: p.src[start:p.pos], Pos: start}
			}
			cmds = append(cmds, command.PushValue(int64(magnitude)))

		case 'l', 'p':
			p.pos += size
			start := p.pos
			idx, err := p.parseIint(start)
			if err != nil {
				return nil, 0, err
			}
			if idx > maxStackIndex || idx < minStackIndex {
				return nil, 0, &StackIndexOutOfRange{Text: p.src[start:p.pos], Pos: start}
			}
			cmds = append(cmds, command.PushStackIndex(int(idx)))

		case 's':
			p.pos += size
			start := p.pos
			idx, err := p.parseIint(start)
			if err != nil {
				return nil, 0, err
			}
			if idx > maxStackIndex || idx < minStackIndex {
				return nil, 0, &StackIndexOutOfRange{Text: p.src[start:p.pos], Pos: start}
			}
			cmds = append(cmds, command.PopStackIndex(int(idx)))

		case '{':
			openPos := p.pos
			p.pos += size
			inner, innerParams, err := p.parseUntil(true, openPos)
			if err != nil {
				return nil, 0, err
			}
			loop, err := command.While(inner)
			if err != nil {
				return nil, 0, err
			}
			if innerParams > paramCount {
				paramCount = innerParams
			}
			cmds = append(cmds, loop)

		default:
			return nil, 0, &UnrecognizedCommand{Char: r, Pos: p.pos}
		}
	}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if r != ' ' && r != '\t' && r != '\r' && r != '\n' {
			return
		}
		p.pos += size
	}
}

// parseUint greedily consumes decimal digits into a uint64 magnitude,
// rejecting overflow past uint64's range during accumulation. The
// magnitude is wider than the int64 a literal ultimately becomes so
// that parseIint below can recognize the one negative value (INT64_MIN)
// whose magnitude itself overflows int64.
func (p *parser) parseUint() (uint64, error) {
	start := p.pos
	var value uint64
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		digit := uint64(p.src[p.pos] - '0')
		if value > (math.MaxUint64-digit)/10 {
			for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
				p.pos++
			}
			return 0, &IntegerLiteralOutOfRange{Text: p.src[start:p.pos], Pos: start}
		}
		value = value*10 + digit
		p.pos++
	}
	if p.pos == start {
		return 0, &IntegerLiteralOutOfRange{Text: "", Pos: start}
	}
	return value, nil
}

// parseIint parses an optional leading '-' followed by parseUint,
// mirroring function.rs's parse_iint: a bare magnitude must fit a
// non-negative int64; a '-'-prefixed one negates it, with one special
// case — a magnitude of exactly 2^63 negates to INT64_MIN, the one
// int64 value with no positive counterpart.
func (p *parser) parseIint(errPos int) (int64, error) {
	negative := false
	if p.pos < len(p.src) && p.src[p.pos] == '-' {
		negative = true
		p.pos++
	}
	magnitude, err := p.parseUint()
	if err != nil {
		return 0, err
	}
	if !negative {
		if magnitude > math.MaxInt64 {
			return 0, &IntegerLiteralOutOfRange{Text: p.src[errPos:p.pos], Pos: errPos}
		}
		return int64(magnitude), nil
	}
	if magnitude <= math.MaxInt64 {
		return -int64(magnitude), nil
	}
	if magnitude == uint64(math.MaxInt64)+1 {
		return math.MinInt64, nil
	}
	return 0, &IntegerLiteralOutOfRange{Text: p.src[errPos:p.pos], Pos: errPos}
}
