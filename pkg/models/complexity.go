package models

// Complexity is the routing class of an incoming request.
type Complexity string

const (
	// ComplexitySimple requests get a direct answer without decomposition.
	ComplexitySimple Complexity = "simple"
	// ComplexityComplex requests are decomposed into a task list.
	ComplexityComplex Complexity = "complex"
)

// Valid returns true if the complexity is a known value.
func (c Complexity) Valid() bool {
	return c == ComplexitySimple || c == ComplexityComplex
}
