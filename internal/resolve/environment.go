package resolve

// Environment records the names bound so far, in first-declaration order.
//
// Re-declaring a name is allowed: the latest declaration wins and the name
// keeps its original position in Names().
type Environment struct {
	index   map[string]int
	order   []string
	rebinds int
}

// NewEnvironment returns an empty Environment.
func NewEnvironment() *Environment {
	return &Environment{index: make(map[string]int)}
}

// Declare binds name to the call at position callIndex.
// It reports whether name was already bound.
func (e *Environment) Declare(name string, callIndex int) bool {
	if _, ok := e.index[name]; ok {
		e.index[name] = callIndex
		e.rebinds++
		return true
	}
	e.index[name] = callIndex
	e.order = append(e.order, name)
	return false
}

// Declared reports whether name has been bound.
func (e *Environment) Declared(name string) bool {
	_, ok := e.index[name]
	return ok
}

// Binding returns the index of the call that currently binds name.
func (e *Environment) Binding(name string) (int, bool) {
	i, ok := e.index[name]
	return i, ok
}

// Names returns bound names in first-declaration order.
func (e *Environment) Names() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Len returns the number of distinct bound names.
func (e *Environment) Len() int { return len(e.order) }

// Rebinds returns how many declarations replaced an existing binding.
func (e *Environment) Rebinds() int { return e.rebinds }
