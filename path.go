package oaskema

import (
	"strconv"
	"strings"
)

// Segment is one step of a Path: an object key or an array index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path locates a value from the validation root. Paths are immutable: Key and
// Index return extended copies.
type Path []Segment

// Key returns p extended by an object key.
func (p Path) Key(name string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Key: name})
}

// Index returns p extended by an array index.
func (p Path) Index(i int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Index: i, IsIndex: true})
}

// String renders keys joined by '.' and indexes as [i], e.g. baskets[0].name.
// The root renders as "#".
func (p Path) String() string {
	if len(p) == 0 {
		return "#"
	}
	b := &strings.Builder{}
	for i, s := range p {
		if s.IsIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteByte(']')
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.Key)
	}
	return b.String()
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// Pointer renders p as an RFC 6901 JSON Pointer. The root renders as "/".
func (p Path) Pointer() string {
	if len(p) == 0 {
		return "/"
	}
	b := &strings.Builder{}
	for _, s := range p {
		b.WriteByte('/')
		if s.IsIndex {
			b.WriteString(strconv.Itoa(s.Index))
			continue
		}
		b.WriteString(pointerEscaper.Replace(s.Key))
	}
	return b.String()
}
