package scanner

// Action is what the pipeline does with one source file.
type Action int

const (
	// ActionCopy copies the file verbatim, when copying is enabled.
	ActionCopy Action = iota
	// ActionConvert decodes and re-encodes the file.
	ActionConvert
)

// String returns the string representation of an Action.
func (a Action) String() string {
	switch a {
	case ActionConvert:
		return "convert"
	case ActionCopy:
		return "copy"
	default:
		return "unknown"
	}
}

// FormatSet reports whether a path has a decodable extension.
type FormatSet interface {
	Supports(path string) bool
}

// Classifier maps relative paths to actions by extension.
type Classifier struct {
	formats FormatSet
}

// NewClassifier creates a classifier backed by formats, typically the audio decoder registry.
func NewClassifier(formats FormatSet) *Classifier {
	return &Classifier{formats: formats}
}

// Classify returns ActionConvert for a recognized audio extension (case-insensitive)
// and ActionCopy for everything else.
func (c *Classifier) Classify(rel string) Action {
	if c.formats.Supports(rel) {
		return ActionConvert
	}
	return ActionCopy
}
