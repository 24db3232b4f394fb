package oaskema_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/reoring/oaskema"
	"github.com/reoring/oaskema/schema"
)

func TestDecodeJSON_NumbersAndShapes(t *testing.T) {
	v, err := oaskema.DecodeJSON(strings.NewReader(`{"a":1,"b":[true,null,"x"],"c":{"d":2.5}}`), oaskema.DecodeOptions{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("want object, got %T", v)
	}
	if n, ok := m["a"].(json.Number); !ok || n.String() != "1" {
		t.Fatalf("a: %#v", m["a"])
	}
	arr, ok := m["b"].([]any)
	if !ok || len(arr) != 3 || arr[0] != true || arr[1] != nil || arr[2] != "x" {
		t.Fatalf("b: %#v", m["b"])
	}
	if n := m["c"].(map[string]any)["d"].(json.Number); n.String() != "2.5" {
		t.Fatalf("c.d: %v", n)
	}
}

func TestDecodeJSON_DuplicateKeys(t *testing.T) {
	in := `{"baskets":[{"name":"a","name":"b"}]}`
	_, err := oaskema.DecodeJSON(strings.NewReader(in), oaskema.DecodeOptions{RejectDuplicateKeys: true})
	var de *oaskema.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("want DecodeError, got %T: %v", err, err)
	}
	if de.Code != "duplicate_key" || de.Pointer != "/baskets/0/name" {
		t.Fatalf("got code=%s pointer=%s", de.Code, de.Pointer)
	}

	v, err := oaskema.DecodeJSON(strings.NewReader(in), oaskema.DecodeOptions{})
	if err != nil {
		t.Fatalf("duplicates are allowed by default: %v", err)
	}
	if got := v.(map[string]any)["baskets"].([]any)[0].(map[string]any)["name"]; got != "b" {
		t.Fatalf("last duplicate should win, got %v", got)
	}
}

func TestDecodeJSON_MaxDepth(t *testing.T) {
	_, err := oaskema.DecodeJSON(strings.NewReader(`[[[1]]]`), oaskema.DecodeOptions{MaxDepth: 2})
	var de *oaskema.DecodeError
	if !errors.As(err, &de) || de.Code != "parse_error" {
		t.Fatalf("want parse_error DecodeError, got %v", err)
	}
	if _, err := oaskema.DecodeJSON(strings.NewReader(`[[1]]`), oaskema.DecodeOptions{MaxDepth: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecodeJSON_DefaultDepthLimit(t *testing.T) {
	const levels = 100000
	in := strings.Repeat("[", levels) + strings.Repeat("]", levels)
	_, err := oaskema.DecodeJSON(strings.NewReader(in), oaskema.DecodeOptions{})
	var de *oaskema.DecodeError
	if !errors.As(err, &de) || de.Code != "parse_error" {
		t.Fatalf("want parse_error DecodeError, got %v", err)
	}

	nested := strings.Repeat("[", oaskema.DefaultMaxDepth) + strings.Repeat("]", oaskema.DefaultMaxDepth)
	if _, err := oaskema.DecodeJSON(strings.NewReader(nested), oaskema.DecodeOptions{}); err != nil {
		t.Fatalf("nesting at the default limit should decode: %v", err)
	}
	deeper := "[" + nested + "]"
	if _, err := oaskema.DecodeJSON(strings.NewReader(deeper), oaskema.DecodeOptions{MaxDepth: -1}); err != nil {
		t.Fatalf("negative MaxDepth disables the check: %v", err)
	}
}

func TestDecodeJSON_MaxBytes(t *testing.T) {
	_, err := oaskema.DecodeJSON(strings.NewReader(`{"a":"0123456789"}`), oaskema.DecodeOptions{MaxBytes: 8})
	if !errors.Is(err, oaskema.ErrBodyTooLarge) {
		t.Fatalf("want ErrBodyTooLarge, got %v", err)
	}
	if _, err := oaskema.DecodeJSON(strings.NewReader(`{"a":1}`), oaskema.DecodeOptions{MaxBytes: 7}); err != nil {
		t.Fatalf("body at the limit should decode: %v", err)
	}
}

func TestDecodeJSON_Malformed(t *testing.T) {
	for _, in := range []string{``, `{"a":`, `{} {}`} {
		if _, err := oaskema.DecodeJSON(strings.NewReader(in), oaskema.DecodeOptions{}); err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}

func TestDecodeBody_MediaTypes(t *testing.T) {
	v, err := oaskema.DecodeBody("application/json; charset=utf-8", []byte(`{"a":1}`), oaskema.DecodeOptions{})
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if _, ok := v.(map[string]any); !ok {
		t.Fatalf("json: got %T", v)
	}

	if _, err := oaskema.DecodeBody("application/problem+json", []byte(`{}`), oaskema.DecodeOptions{}); err != nil {
		t.Fatalf("+json: %v", err)
	}

	v, err = oaskema.DecodeBody("application/yaml", []byte("a: 1\nb:\n  - x\n1: one\n"), oaskema.DecodeOptions{})
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	m := v.(map[string]any)
	if m["a"] != 1 || m["1"] != "one" {
		t.Fatalf("yaml: %#v", m)
	}
	if b, ok := m["b"].([]any); !ok || b[0] != "x" {
		t.Fatalf("yaml b: %#v", m["b"])
	}

	_, err = oaskema.DecodeBody("text/plain", []byte("hi"), oaskema.DecodeOptions{})
	if !errors.Is(err, oaskema.ErrUnsupportedMediaType) {
		t.Fatalf("want ErrUnsupportedMediaType, got %v", err)
	}
}

func TestDecodeThenValidate(t *testing.T) {
	g, root := dragon(t, schema.Additional{})
	v, err := oaskema.DecodeBody("application/json", []byte(`{"name":"smaug","mass":900,"fire_range":30.0}`), oaskema.DecodeOptions{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := oaskema.Validate(g, root, v); err != nil {
		t.Fatalf("integral JSON numbers are integers: %v", err)
	}
}
