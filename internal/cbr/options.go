package cbr

// CallOption overrides the identifiers and result shaping of a single call.
type CallOption func(*callConfig)

type callConfig struct {
	concept   string
	casebase  string
	function  string
	k         int
	kSet      bool
	precision int
}

// InConcept runs the call against concept id instead of the active concept.
func InConcept(id string) CallOption {
	return func(c *callConfig) { c.concept = id }
}

// InCasebase runs the call against casebase id instead of the active casebase.
func InCasebase(id string) CallOption {
	return func(c *callConfig) { c.casebase = id }
}

// UsingFunction runs the call with amalgamation function id instead of the active one.
func UsingFunction(id string) CallOption {
	return func(c *callConfig) { c.function = id }
}

// TopK limits the result to the k most similar cases. AllCases (-1) returns every case.
func TopK(k int) CallOption {
	return func(c *callConfig) { c.k, c.kSet = k, true }
}

// Precision rounds similarity values to digits decimal places.
// A negative value returns the server's values unrounded.
func Precision(digits int) CallOption {
	return func(c *callConfig) { c.precision = digits }
}

// resolve applies opts and fills unspecified identifiers from d.
func resolve(d *Defaults, opts []CallOption) callConfig {
	cfg := callConfig{k: AllCases, precision: DefaultPrecision}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.concept == "" {
		cfg.concept = d.Concept()
	}
	if cfg.casebase == "" {
		cfg.casebase = d.Casebase()
	}
	if cfg.function == "" {
		cfg.function = d.Function()
	}
	return cfg
}

// kOr returns the requested k, or fallback when the caller did not set one.
func (c callConfig) kOr(fallback int) int {
	if c.kSet {
		return c.k
	}
	return fallback
}

func (c callConfig) logAttrs() []any {
	return []any{"concept", c.concept, "casebase", c.casebase, "function", c.function}
}
