package openapi

import (
	"fmt"

	"github.com/reoring/oaskema"
)

// Options controls document loading and the validators built for it.
type Options struct {
	// AllowExternalRefs lets the loader follow $refs into other files.
	AllowExternalRefs bool
	// SkipDocumentValidation skips kin-openapi's structural check of the
	// document itself.
	SkipDocumentValidation bool
	// Validation configures every validation call on the loaded document.
	Validation oaskema.Options
	// Decode bounds body decoding in the *Bytes helpers.
	Decode oaskema.DecodeOptions
}

// Diag carries non-fatal warnings produced during compilation.
type Diag interface {
	HasWarnings() bool
	Warnings() []string
}

type simpleDiag struct{ ws []string }

func (d *simpleDiag) HasWarnings() bool        { return len(d.ws) > 0 }
func (d *simpleDiag) Warnings() []string       { return append([]string(nil), d.ws...) }
func (d *simpleDiag) warnf(f string, a ...any) { d.ws = append(d.ws, fmt.Sprintf(f, a...)) }
