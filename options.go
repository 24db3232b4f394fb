package oaskema

// DefaultMaxDepth bounds schema recursion when Options.MaxDepth is zero.
const DefaultMaxDepth = 512

// Options configures a Validator.
type Options struct {
	// MaxDepth caps nested validation frames (value nesting plus composition
	// indirection). Zero means DefaultMaxDepth.
	MaxDepth int
	// CollectAll keeps validating after the first failure and returns
	// ValidationErrors. The default is fail-fast with a single *ValidationError.
	CollectAll bool
	// ValidateAdditionalProperties applies a typed additionalProperties schema
	// to undeclared keys. Off by default: such values are accepted unchecked.
	ValidateAdditionalProperties bool
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}
