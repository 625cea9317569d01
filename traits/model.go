package traits

// AsyncComplexity classifies a function's async lowering difficulty for the
// (external) emitter: trivial functions inline; complex ones need a spawned
// task. See spec.md 4.2 for the thresholds.
type AsyncComplexity int

const (
	Trivial AsyncComplexity = iota
	Simple
	Moderate
	Complex
)

func (c AsyncComplexity) String() string {
	switch c {
	case Trivial:
		return "trivial"
	case Simple:
		return "simple"
	case Moderate:
		return "moderate"
	case Complex:
		return "complex"
	default:
		return "unknown"
	}
}

// FunctionTraits is the whole-program analysis record for a single function.
type FunctionTraits struct {
	Ref FunctionRef `yaml:"ref"`

	HasAwait         bool `yaml:"hasAwait"`
	HasIO            bool `yaml:"hasIO"`
	CanError         bool `yaml:"canError"`
	NeedsAllocator   bool `yaml:"needsAllocator"`
	UsesAllocatorArg bool `yaml:"usesAllocatorArg"`
	IsPure           bool `yaml:"isPure"`
	IsTailRecursive  bool `yaml:"isTailRecursive"`
	IsGenerator      bool `yaml:"isGenerator"`
	ModifiesGlobals  bool `yaml:"modifiesGlobals"`
	ReadsGlobals     bool `yaml:"readsGlobals"`
	IsCalled         bool `yaml:"isCalled"`

	MutatesParams   []bool `yaml:"mutatesParams"`
	EscapingParams  []bool `yaml:"escapingParams"`
	EscapingLocals  []string `yaml:"escapingLocals,omitempty"`
	ReturnAliasesParam *int `yaml:"returnAliasesParam,omitempty"`

	CapturedVars []string      `yaml:"capturedVars,omitempty"`
	Calls        []FunctionRef `yaml:"calls,omitempty"`

	AsyncComplexity AsyncComplexity `yaml:"asyncComplexity"`
	ReturnTypeHint  string          `yaml:"returnTypeHint,omitempty"`

	// Notes records ambiguous decisions made conservatively rather than
	// guessed, per spec.md's Open Questions (e.g. the json/text-method I/O
	// ambiguity).
	Notes []string `yaml:"notes,omitempty"`

	// internal bookkeeping used while building the record; not exported in
	// the public invariant surface.
	opCount   int
	awaitCount int
	hasLoop   bool
}

// newFunctionTraits creates a record with the given arity, defaulting to the
// "most optimistic" state (is_pure=true etc.); inference clears flags as it
// observes disqualifying constructs.
func newFunctionTraits(ref FunctionRef, arity int) *FunctionTraits {
	return &FunctionTraits{
		Ref:             ref,
		IsPure:          true,
		MutatesParams:   make([]bool, arity),
		EscapingParams:  make([]bool, arity),
		AsyncComplexity: Trivial,
	}
}

// clearPurity enforces the invariant is_pure => !has_io && !modifies_globals
// && no mutated params, by clearing is_pure whenever any of those is set.
func (t *FunctionTraits) clearPurity() {
	t.IsPure = false
}
