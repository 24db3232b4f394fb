package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Issue codes raised by Guard.
const (
	CodeDuplicateKey = "duplicate_key"
	CodeParseError   = "parse_error"
)

// Limits are the input policies a Guard enforces. The zero value enforces
// nothing.
type Limits struct {
	RejectDuplicates bool
	MaxDepth         int
}

// Active reports whether any limit applies.
func (l Limits) Active() bool { return l.RejectDuplicates || l.MaxDepth > 0 }

// IssueError reports a limit violation at a JSON Pointer.
type IssueError struct {
	Code    string
	Path    string
	Message string
}

func (e *IssueError) Error() string { return e.Message + " at " + e.Path }

// level is one open container. Objects remember the keys read so far and the
// current key; arrays remember the index of the current element.
type level struct {
	object bool
	keys   map[string]struct{}
	key    string
	index  int
}

type guard struct {
	src    Source
	limits Limits
	stack  []level
}

// Guard wraps src so that Next fails with an *IssueError as soon as the
// stream violates limits.
func Guard(src Source, limits Limits) Source {
	return &guard{src: src, limits: limits}
}

func (g *guard) Next() (Token, error) {
	t, err := g.src.Next()
	if err != nil {
		return t, err
	}
	switch {
	case t.Kind == KindKey:
		if len(g.stack) == 0 {
			return t, nil
		}
		top := &g.stack[len(g.stack)-1]
		top.key = t.Text
		if !g.limits.RejectDuplicates {
			return t, nil
		}
		if _, dup := top.keys[t.Text]; dup {
			return Token{}, &IssueError{Code: CodeDuplicateKey, Path: pointer(g.stack), Message: fmt.Sprintf("key %q duplicated", t.Text)}
		}
		top.keys[t.Text] = struct{}{}
	case t.closes():
		if len(g.stack) > 0 {
			g.stack = g.stack[:len(g.stack)-1]
		}
	default:
		g.startValue()
		if !t.opens() {
			return t, nil
		}
		if g.limits.MaxDepth > 0 && len(g.stack) >= g.limits.MaxDepth {
			return Token{}, &IssueError{Code: CodeParseError, Path: pointer(g.stack), Message: "max depth exceeded"}
		}
		l := level{object: t.Kind == KindBeginObject, index: -1}
		if l.object && g.limits.RejectDuplicates {
			l.keys = make(map[string]struct{})
		}
		g.stack = append(g.stack, l)
	}
	return t, nil
}

// startValue advances the element index when a value begins inside an array.
func (g *guard) startValue() {
	if n := len(g.stack); n > 0 && !g.stack[n-1].object {
		g.stack[n-1].index++
	}
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// pointer renders the location of the current value inside the open
// containers.
func pointer(stack []level) string {
	if len(stack) == 0 {
		return "/"
	}
	b := &strings.Builder{}
	for _, l := range stack {
		b.WriteByte('/')
		if l.object {
			b.WriteString(pointerEscaper.Replace(l.key))
		} else {
			b.WriteString(strconv.Itoa(l.index))
		}
	}
	return b.String()
}
