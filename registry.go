package fstroke

// functionRegistry is the declared-function registry: a mapping from
// function name to the byte-offset of its entry JUMPDEST, filled in as each
// func is emitted (Declared.function_addresses in the original). It is
// scoped to one Generator rather than held as a process-wide global, so two
// Generators can compile independently in the same process.
type functionRegistry struct {
	entryOffset map[string]int
}

func newFunctionRegistry() *functionRegistry {
	return &functionRegistry{entryOffset: make(map[string]int)}
}

func (r *functionRegistry) declare(name string, offset int) {
	r.entryOffset[name] = offset
}

func (r *functionRegistry) lookup(name string) (offset int, ok bool) {
	offset, ok = r.entryOffset[name]
	return
}
