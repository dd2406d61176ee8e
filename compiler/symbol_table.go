package compiler

import (
	"strings"

	"rpnjit/symbol"
)

// Scope says where a Variable lives: a fixed slot in the current
// function's stack frame, or a module-level static addressed by
// symbol.
type Scope int

const (
	ScopeLocal Scope = iota
	ScopeStatic
)

// Variable is a named, typed storage location a Register can load
// from or store to. It flattens the original Location{Local,Static}
// enum into one struct: Offset is meaningful for ScopeLocal, Symbol
// and Atomic for ScopeStatic.
type Variable struct {
	Name   string
	Type   Type
	Scope  Scope
	Offset int64
	Symbol symbol.Symbol
	Atomic bool
}

// SymbolTable tracks a module's statics and, while compiling one
// function body, that function's locals. There is no enclosing-scope
// chain: this grammar has no nested or closing-over functions, so a
// single flat local table per function is all BeginFunction needs to
// reset.
type SymbolTable struct {
	statics    map[string]*Variable
	locals     map[string]*Variable
	stackDepth int64
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{statics: map[string]*Variable{}}
}

// BeginFunction discards any locals from a previously compiled
// function and starts a fresh frame. Statics persist across calls.
func (t *SymbolTable) BeginFunction() {
	t.locals = map[string]*Variable{}
	t.stackDepth = 0
}

// DefineStatic registers a module-level static under a fresh global
// symbol, keyed by its source name so later references resolve to it.
func (t *SymbolTable) DefineStatic(name string, typ Type, atomic bool) *Variable {
	v := &Variable{
		Name:   name,
		Type:   typ,
		Scope:  ScopeStatic,
		Symbol: symbol.Global(staticSymbolName(name)),
		Atomic: atomic,
	}
	t.statics[name] = v
	return v
}

// DefineLocal allocates a new stack slot in the current function
// frame. Reassigning an existing name resolves to its existing slot
// instead (see Resolve / compileAssignment) — DefineLocal only runs
// the first time a name is assigned.
func (t *SymbolTable) DefineLocal(name string, typ Type) *Variable {
	v := &Variable{
		Name:   name,
		Type:   typ,
		Scope:  ScopeLocal,
		Offset: t.stackDepth * 8,
	}
	t.locals[name] = v
	t.stackDepth++
	return v
}

// StackSlots reports how many 8-byte local slots the current function
// frame needs, for sizing its prologue's stack reservation.
func (t *SymbolTable) StackSlots() int64 {
	return t.stackDepth
}

// Resolve looks up name, preferring a local over a static of the same
// name (locals shadow statics).
func (t *SymbolTable) Resolve(name string) (*Variable, bool) {
	if v, ok := t.locals[name]; ok {
		return v, true
	}
	if v, ok := t.statics[name]; ok {
		return v, true
	}
	return nil, false
}

func staticSymbolName(name string) string { return "rpnjit.static." + name }

// functionSymbolPrefix names every compiled function's linker symbol;
// exported as FunctionName below so a loader can recover the
// surface-language name a symbol was compiled from without duplicating
// this convention.
const functionSymbolPrefix = "rpnjit.fn."

func functionSymbolName(name string) string { return functionSymbolPrefix + name }

// FunctionName recovers the surface-language function name a compiled
// symbol was defined for, the inverse of the naming compileFunction
// applies. It reports false for a symbol that isn't a compiled
// function's entry point (a static, or a local loop/branch label).
func FunctionName(sym string) (string, bool) {
	if !strings.HasPrefix(sym, functionSymbolPrefix) {
		return "", false
	}
	return strings.TrimPrefix(sym, functionSymbolPrefix), true
}
