package compiler

// ---------------------------------------------------------------------------
// Symbol table: compile-time mirror of the run-time environment chain
// ---------------------------------------------------------------------------

// SymbolTable is one node of the scope chain. Names map to slots in the
// frame the node stands for; lookup counts the hops outward as depth.
type SymbolTable struct {
	parent *SymbolTable
	slots  map[string]int
	names  []string // slot order
}

// NewSymbolTable creates a scope whose enclosing scope is parent.
func NewSymbolTable(parent *SymbolTable) *SymbolTable {
	return &SymbolTable{parent: parent, slots: make(map[string]int)}
}

// Parent returns the enclosing scope, or nil for the outermost one.
func (s *SymbolTable) Parent() *SymbolTable {
	return s.parent
}

// Add binds name in this scope and returns its slot. Redefining a name
// already bound here reuses its slot.
func (s *SymbolTable) Add(name string) int {
	if slot, ok := s.slots[name]; ok {
		return slot
	}
	slot := len(s.names)
	s.slots[name] = slot
	s.names = append(s.names, name)
	return slot
}

// Lookup resolves name to (slot, depth), walking outward from this scope.
func (s *SymbolTable) Lookup(name string) (slot, depth int, ok bool) {
	for t := s; t != nil; t = t.parent {
		if slot, ok := t.slots[name]; ok {
			return slot, depth, true
		}
		depth++
	}
	return 0, 0, false
}

// Defines reports whether name is bound in this scope itself.
func (s *SymbolTable) Defines(name string) bool {
	_, ok := s.slots[name]
	return ok
}

// Len returns the number of slots in this scope.
func (s *SymbolTable) Len() int {
	return len(s.names)
}

// Names returns the bound names in slot order.
func (s *SymbolTable) Names() []string {
	return append([]string(nil), s.names...)
}

// Truncate drops every binding with slot >= n.
func (s *SymbolTable) Truncate(n int) {
	for _, name := range s.names[n:] {
		delete(s.slots, name)
	}
	s.names = s.names[:n]
}
