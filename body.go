package oaskema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"gopkg.in/yaml.v3"

	eng "github.com/reoring/oaskema/internal/engine"
	"github.com/reoring/oaskema/source/gojson"
)

// ErrUnsupportedMediaType is returned by DecodeBody for media types that are
// neither JSON nor YAML.
var ErrUnsupportedMediaType = errors.New("oaskema: unsupported media type")

// ErrBodyTooLarge is returned when input exceeds DecodeOptions.MaxBytes.
var ErrBodyTooLarge = errors.New("oaskema: body exceeds size limit")

// DecodeOptions bounds body decoding.
type DecodeOptions struct {
	RejectDuplicateKeys bool
	MaxDepth            int   // 0 means DefaultMaxDepth, negative disables the nesting check
	MaxBytes            int64 // 0 disables the size check
}

func (o DecodeOptions) maxDepth() int {
	switch {
	case o.MaxDepth < 0:
		return 0
	case o.MaxDepth == 0:
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// DecodeError reports malformed or policy-violating input at a JSON Pointer.
type DecodeError struct {
	Code    string // duplicate_key or parse_error
	Pointer string
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("oaskema: %s at %s", e.Message, e.Pointer)
}

// DecodeJSON reads one JSON value. Objects decode to map[string]any, arrays to
// []any and numbers to json.Number.
func DecodeJSON(r io.Reader, opt DecodeOptions) (any, error) {
	data, err := readLimited(r, opt.MaxBytes)
	if err != nil {
		return nil, err
	}
	src := gojson.NewBytes(data)
	if limits := (eng.Limits{RejectDuplicates: opt.RejectDuplicateKeys, MaxDepth: opt.maxDepth()}); limits.Active() {
		src = eng.Guard(src, limits)
	}
	v, err := eng.Decode(src)
	if err != nil {
		var ie *eng.IssueError
		if errors.As(err, &ie) {
			return nil, &DecodeError{Code: ie.Code, Pointer: ie.Path, Message: ie.Message}
		}
		return nil, fmt.Errorf("oaskema: decode json: %w", err)
	}
	return v, nil
}

// DecodeYAML reads one YAML document into JSON-compatible values.
func DecodeYAML(r io.Reader, opt DecodeOptions) (any, error) {
	data, err := readLimited(r, opt.MaxBytes)
	if err != nil {
		return nil, err
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("oaskema: decode yaml: %w", err)
	}
	return yamlNormalizeValue(v), nil
}

// DecodeBody decodes data according to contentType. JSON covers
// application/json and any +json suffix; YAML covers application/yaml,
// application/x-yaml and text/yaml.
func DecodeBody(contentType string, data []byte, opt DecodeOptions) (any, error) {
	switch mediaKind(contentType) {
	case mediaJSON:
		return DecodeJSON(bytes.NewReader(data), opt)
	case mediaYAML:
		return DecodeYAML(bytes.NewReader(data), opt)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, contentType)
}

type mediaClass int

const (
	mediaOther mediaClass = iota
	mediaJSON
	mediaYAML
)

func mediaKind(contentType string) mediaClass {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch {
	case mt == "application/json", strings.HasSuffix(mt, "+json"):
		return mediaJSON
	case mt == "application/yaml", mt == "application/x-yaml", mt == "text/yaml", strings.HasSuffix(mt, "+yaml"):
		return mediaYAML
	}
	return mediaOther
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}

// yamlNormalizeValue converts YAML-decoded values (which may contain
// map[any]any) into JSON-like values recursively.
func yamlNormalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = yamlNormalizeValue(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[fmt.Sprint(k)] = yamlNormalizeValue(vv)
		}
		return out
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = yamlNormalizeValue(t[i])
		}
		return arr
	default:
		return v
	}
}
