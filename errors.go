package oaskema

import (
	"errors"
	"strings"
)

// Kind classifies a validation failure.
type Kind int

const (
	// NotExistRequiredKey: an object value lacks one or more required properties.
	NotExistRequiredKey Kind = iota + 1
	// NotExistPropertyDefinition: an object value carries keys that no schema
	// declares while additionalProperties does not permit them.
	NotExistPropertyDefinition
	// InvalidType: the value's runtime shape does not match the node.
	InvalidType
	// CompositionMismatch: oneOf/anyOf matched the wrong number of members.
	CompositionMismatch
	// NotExistDiscriminatorProperty: the discriminator property is absent or not a string.
	NotExistDiscriminatorProperty
	// NotExistDiscriminatorMapping: the discriminator value selects no member.
	NotExistDiscriminatorMapping
	// DepthExceeded: schema recursion went past Options.MaxDepth.
	DepthExceeded
)

// Codes are stable machine-readable names for kinds, used in payloads and
// metrics labels.
const (
	CodeRequired             = "required"
	CodeUnknownKey           = "unknown_key"
	CodeInvalidType          = "invalid_type"
	CodeCompositionMismatch  = "composition_mismatch"
	CodeDiscriminatorMissing = "discriminator_missing"
	CodeDiscriminatorUnknown = "discriminator_unknown"
	CodeDepthExceeded        = "depth_exceeded"
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case NotExistRequiredKey:
		return "NotExistRequiredKey"
	case NotExistPropertyDefinition:
		return "NotExistPropertyDefinition"
	case InvalidType:
		return "InvalidType"
	case CompositionMismatch:
		return "CompositionMismatch"
	case NotExistDiscriminatorProperty:
		return "NotExistDiscriminatorProperty"
	case NotExistDiscriminatorMapping:
		return "NotExistDiscriminatorMapping"
	case DepthExceeded:
		return "DepthExceeded"
	}
	return "Unknown"
}

// Code returns the machine-readable code of the kind.
func (k Kind) Code() string {
	switch k {
	case NotExistRequiredKey:
		return CodeRequired
	case NotExistPropertyDefinition:
		return CodeUnknownKey
	case InvalidType:
		return CodeInvalidType
	case CompositionMismatch:
		return CodeCompositionMismatch
	case NotExistDiscriminatorProperty:
		return CodeDiscriminatorMissing
	case NotExistDiscriminatorMapping:
		return CodeDiscriminatorUnknown
	case DepthExceeded:
		return CodeDepthExceeded
	}
	return "unknown"
}

// ValidationError is the single failure reported by a validation call.
type ValidationError struct {
	Kind    Kind
	Path    Path   // Location of the offending value from the root.
	Message string // Human-readable, already includes the rendered path.
	// Names lists the offending property names for NotExistRequiredKey and
	// NotExistPropertyDefinition, in message order.
	Names []string
}

func (e *ValidationError) Error() string { return e.Message }

// Is matches another *ValidationError of the same kind, so callers can write
// errors.Is(err, &oaskema.ValidationError{Kind: oaskema.InvalidType}).
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// ValidationErrors is returned instead of a single error when
// Options.CollectAll is set.
type ValidationErrors []*ValidationError

// Error summarizes the first few errors.
func (es ValidationErrors) Error() string {
	if len(es) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	for i, e := range es {
		if i == maxShown {
			b.WriteString("; ...")
			break
		}
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Message)
	}
	return b.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (es ValidationErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// AsValidationError extracts the first *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	if err == nil {
		return nil, false
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
