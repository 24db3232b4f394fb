// Package engine turns a stream of JSON tokens into Go values while applying
// input limits (duplicate keys, nesting depth) on the fly.
package engine

// Kind is the kind of a token.
type Kind int

const (
	KindBeginObject Kind = iota
	KindEndObject
	KindBeginArray
	KindEndArray
	KindKey
	KindString
	KindNumber
	KindBool
	KindNull
)

// Token is one lexical JSON token. Text holds the key, the string value or
// the literal number text.
type Token struct {
	Kind Kind
	Text string
	Bool bool
}

// opens reports whether t starts a container.
func (t Token) opens() bool { return t.Kind == KindBeginObject || t.Kind == KindBeginArray }

// closes reports whether t ends a container.
func (t Token) closes() bool { return t.Kind == KindEndObject || t.Kind == KindEndArray }

// Source yields tokens until io.EOF.
type Source interface {
	Next() (Token, error)
}
