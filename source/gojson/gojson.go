// Package gojson adapts the goccy/go-json streaming decoder to the engine
// token interface used for request body decoding.
package gojson

import (
	"bytes"
	"io"
	"strconv"

	j "github.com/goccy/go-json"

	eng "github.com/reoring/oaskema/internal/engine"
)

// level is one open container. go-json reports keys and string values alike,
// so objects track whether a key comes next.
type level struct {
	object  bool
	wantKey bool
}

type source struct {
	dec  *j.Decoder
	open []level
}

// NewReader returns an engine.Source reading r. Numbers keep their literal
// text.
func NewReader(r io.Reader) eng.Source {
	dec := j.NewDecoder(r)
	dec.UseNumber()
	return &source{dec: dec}
}

// NewBytes returns an engine.Source reading b.
func NewBytes(b []byte) eng.Source { return NewReader(bytes.NewReader(b)) }

func (s *source) Next() (eng.Token, error) {
	raw, err := s.dec.Token()
	if err != nil {
		return eng.Token{}, err
	}
	if d, ok := raw.(j.Delim); ok {
		return s.delim(d), nil
	}
	if str, ok := raw.(string); ok && s.wantKey() {
		s.open[len(s.open)-1].wantKey = false
		return eng.Token{Kind: eng.KindKey, Text: str}, nil
	}
	s.done()
	switch v := raw.(type) {
	case string:
		return eng.Token{Kind: eng.KindString, Text: v}, nil
	case bool:
		return eng.Token{Kind: eng.KindBool, Bool: v}, nil
	case j.Number:
		return eng.Token{Kind: eng.KindNumber, Text: string(v)}, nil
	case float64:
		return eng.Token{Kind: eng.KindNumber, Text: strconv.FormatFloat(v, 'g', -1, 64)}, nil
	}
	return eng.Token{Kind: eng.KindNull}, nil
}

func (s *source) delim(d j.Delim) eng.Token {
	switch d {
	case '{':
		s.open = append(s.open, level{object: true, wantKey: true})
		return eng.Token{Kind: eng.KindBeginObject}
	case '[':
		s.open = append(s.open, level{})
		return eng.Token{Kind: eng.KindBeginArray}
	}
	if n := len(s.open); n > 0 {
		s.open = s.open[:n-1]
	}
	s.done()
	if d == '}' {
		return eng.Token{Kind: eng.KindEndObject}
	}
	return eng.Token{Kind: eng.KindEndArray}
}

func (s *source) wantKey() bool {
	n := len(s.open)
	return n > 0 && s.open[n-1].wantKey
}

// done marks a complete value. Inside an object the next string is a key
// again.
func (s *source) done() {
	if n := len(s.open); n > 0 && s.open[n-1].object {
		s.open[n-1].wantKey = true
	}
}
