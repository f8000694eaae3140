package formula

// Env resolves identifiers during evaluation.
type Env interface {
	Lookup(name string) (float64, bool)
	// Strict reports whether an unbound identifier is an error (true) or resolves to 0.
	Strict() bool
}

// MapEnv is an Env backed by a plain map.
type MapEnv struct {
	Values     map[string]float64
	StrictMode bool
}

func (m MapEnv) Lookup(name string) (float64, bool) {
	v, ok := m.Values[name]
	return v, ok
}

func (m MapEnv) Strict() bool { return m.StrictMode }
