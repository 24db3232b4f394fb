package engine

import (
	"encoding/json"
	"errors"
	"io"
)

// ErrTrailingData is returned when input continues after the first value.
var ErrTrailingData = errors.New("engine: trailing data after top-level value")

var errUnbalanced = errors.New("engine: unbalanced token stream")

// Decode reads exactly one value from src. Objects become map[string]any,
// arrays []any and numbers json.Number.
func Decode(src Source) (any, error) {
	d := decoder{src: src}
	first, err := d.next()
	if err != nil {
		return nil, err
	}
	v, err := d.value(first)
	if err != nil {
		return nil, err
	}
	switch _, err := src.Next(); {
	case err == io.EOF:
		return v, nil
	case err != nil:
		return nil, err
	}
	return nil, ErrTrailingData
}

type decoder struct {
	src Source
}

// next reads a token that must exist; EOF here means truncated input.
func (d decoder) next() (Token, error) {
	t, err := d.src.Next()
	if err == io.EOF {
		return Token{}, io.ErrUnexpectedEOF
	}
	return t, err
}

func (d decoder) value(t Token) (any, error) {
	switch t.Kind {
	case KindBeginObject:
		return d.object()
	case KindBeginArray:
		return d.array()
	case KindString:
		return t.Text, nil
	case KindNumber:
		return json.Number(t.Text), nil
	case KindBool:
		return t.Bool, nil
	case KindNull:
		return nil, nil
	}
	return nil, errUnbalanced
}

func (d decoder) object() (map[string]any, error) {
	out := map[string]any{}
	for {
		k, err := d.next()
		if err != nil {
			return nil, err
		}
		if k.Kind == KindEndObject {
			return out, nil
		}
		if k.Kind != KindKey {
			return nil, errUnbalanced
		}
		t, err := d.next()
		if err != nil {
			return nil, err
		}
		if out[k.Text], err = d.value(t); err != nil {
			return nil, err
		}
	}
}

func (d decoder) array() ([]any, error) {
	out := []any{}
	for {
		t, err := d.next()
		if err != nil {
			return nil, err
		}
		if t.Kind == KindEndArray {
			return out, nil
		}
		v, err := d.value(t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}
