package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/reoring/oaskema"
	"github.com/reoring/oaskema/i18n"
	"github.com/reoring/oaskema/openapi"
)

// Codes for failures that are not validation errors.
const (
	CodeRequestBodyRequired  = "request_body_required"
	CodeUnsupportedMediaType = "unsupported_media_type"
	CodeBodyTooLarge         = "body_too_large"
	CodeParseError           = "parse_error"
	CodeOperationNotFound    = "operation_not_found"
	CodeDocumentUnavailable  = "document_unavailable"
)

// ErrorPayload is the JSON body of a rejected request.
type ErrorPayload struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes one failure. Errors is set when the validator collected
// several failures; the outer fields then describe the first.
type ErrorBody struct {
	Kind    string      `json:"kind,omitempty"`
	Code    string      `json:"code"`
	Title   string      `json:"title"`
	Path    string      `json:"path,omitempty"`
	Pointer string      `json:"pointer,omitempty"`
	Message string      `json:"message"`
	Names   []string    `json:"names,omitempty"`
	Errors  []ErrorBody `json:"errors,omitempty"`
}

// NewErrorPayload maps err to an HTTP status and payload.
func NewErrorPayload(err error) (int, ErrorPayload) {
	var ves oaskema.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		body := validationBody(ves[0])
		for _, ve := range ves {
			body.Errors = append(body.Errors, validationBody(ve))
		}
		return http.StatusBadRequest, ErrorPayload{Error: body}
	}
	if ve, ok := oaskema.AsValidationError(err); ok {
		return http.StatusBadRequest, ErrorPayload{Error: validationBody(ve)}
	}

	var de *oaskema.DecodeError
	switch {
	case errors.As(err, &de):
		return http.StatusBadRequest, simple(de.Code, de.Pointer, err)
	case errors.Is(err, openapi.ErrRequestBodyRequired):
		return http.StatusBadRequest, simple(CodeRequestBodyRequired, "", err)
	case errors.Is(err, openapi.ErrContentTypeNotFound), errors.Is(err, oaskema.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, simple(CodeUnsupportedMediaType, "", err)
	case errors.Is(err, oaskema.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, simple(CodeBodyTooLarge, "", err)
	case errors.Is(err, openapi.ErrOperationNotFound):
		return http.StatusNotFound, simple(CodeOperationNotFound, "", err)
	}
	return http.StatusBadRequest, simple(CodeParseError, "", err)
}

func validationBody(ve *oaskema.ValidationError) ErrorBody {
	code := ve.Kind.Code()
	return ErrorBody{
		Kind:    ve.Kind.String(),
		Code:    code,
		Title:   i18n.T(code, map[string]string{"names": strings.Join(ve.Names, ", ")}),
		Path:    ve.Path.String(),
		Pointer: ve.Path.Pointer(),
		Message: ve.Message,
		Names:   ve.Names,
	}
}

func simple(code, pointer string, err error) ErrorPayload {
	return ErrorPayload{Error: ErrorBody{
		Code:    code,
		Title:   i18n.T(code, nil),
		Pointer: pointer,
		Message: err.Error(),
	}}
}
