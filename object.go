package oaskema

import (
	"fmt"
	"sort"

	"github.com/reoring/oaskema/schema"
)

// validateObject runs the per-frame object checks in fixed order: required
// keys, then unknown keys, then each declared property in declaration order.
func (r *run) validateObject(e *effective, m map[string]any, path Path, depth int) bool {
	valid := true
	if !r.checkRequired(e.required, m, path) {
		valid = false
		if r.stopping() {
			return false
		}
	}

	if unknown := unknownKeys(e, m); len(unknown) > 0 {
		switch {
		case !e.additional.Permissive():
			r.report(&ValidationError{
				Kind:    NotExistPropertyDefinition,
				Path:    path,
				Names:   unknown,
				Message: fmt.Sprintf("properties %s are not defined in %s", joinNames(unknown), path),
			})
			valid = false
			if r.stopping() {
				return false
			}
		case e.additional.Mode == schema.AdditionalTyped && r.opts.ValidateAdditionalProperties:
			for _, k := range unknown {
				if !r.validate(e.additional.Schema, m[k], path.Key(k), depth+1, false) {
					valid = false
					if r.stopping() {
						return false
					}
				}
			}
		}
	}

	for _, p := range e.props {
		v, ok := m[p.name]
		if !ok {
			continue
		}
		for _, id := range p.nodes {
			if !r.validate(id, v, path.Key(p.name), depth+1, false) {
				valid = false
				if r.stopping() {
					return false
				}
				break
			}
		}
	}
	return valid
}

// checkRequired reports every missing required name in one error.
func (r *run) checkRequired(required []string, m map[string]any, path Path) bool {
	var missing []string
	for _, k := range required {
		if _, ok := m[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return true
	}
	r.report(&ValidationError{
		Kind:    NotExistRequiredKey,
		Path:    path,
		Names:   missing,
		Message: fmt.Sprintf("required parameters %s not exist at %s", joinNames(missing), path),
	})
	return false
}

// unknownKeys returns the keys of m no merged member declares, sorted.
func unknownKeys(e *effective, m map[string]any) []string {
	var out []string
	for k := range m {
		if _, ok := e.propIdx[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
