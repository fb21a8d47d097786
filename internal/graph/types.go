package graph

// FunctionCall binds Name to the result of invoking Function with
// Parameters. Parameter keys carry no meaning beyond providing a stable
// rendering order.
type FunctionCall struct {
	Name       string            `json:"name"`
	Function   string            `json:"function"`
	Parameters map[string]string `json:"parameters"`
}

// Graph is the ordered sequence of calls parsed from one document. It lives
// for a single compile job.
type Graph struct {
	Calls []FunctionCall
}

// Len returns the number of calls.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Calls)
}

// Last returns the final call of the graph, if any.
func (g *Graph) Last() (FunctionCall, bool) {
	if g.Len() == 0 {
		return FunctionCall{}, false
	}
	return g.Calls[len(g.Calls)-1], true
}
