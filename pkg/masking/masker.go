package masking

// Masker is the interface for code-based maskers that need structural
// awareness beyond regex pattern matching, such as masking a JSON value by
// its key.
type Masker interface {
	// Name returns the unique identifier for this masker.
	// Must match an entry in config.GetBuiltinMasking().CodeMaskers.
	Name() string

	// AppliesTo performs a lightweight check on whether this masker
	// should process the data. Should be fast (string contains, not parsing).
	AppliesTo(data string) bool

	// Mask applies masking logic and returns the masked result. Data the
	// masker cannot parse is returned unchanged.
	Mask(data string) string
}
