package value

import "fmt"

type binding struct {
	value   Value
	mutable bool
}

// Scope is an insertion-ordered name→binding map with a parent link. A
// child scope is pushed for each block, for-iteration, match arm, and
// function call; for function calls the parent is the function's closure
// scope, not the caller's current scope.
type Scope struct {
	parent   *Scope
	bindings map[string]*binding
	order    []string
}

func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, bindings: map[string]*binding{}}
}

// Declare introduces name in this scope. Redeclaration in the same scope is
// rejected; shadowing an outer scope's binding is allowed.
func (s *Scope) Declare(name string, v Value, mutable bool) error {
	if _, exists := s.bindings[name]; exists {
		return fmt.Errorf("redeclaration of %q in the same scope", name)
	}
	s.bindings[name] = &binding{value: v, mutable: mutable}
	s.order = append(s.order, name)
	return nil
}

// Lookup climbs the parent chain looking for name.
func (s *Scope) Lookup(name string) (Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.bindings[name]; ok {
			return b.value, true
		}
	}
	return Value{}, false
}

// Assign climbs the parent chain and updates the first binding found for
// name. It fails if the binding does not exist or is immutable.
func (s *Scope) Assign(name string, v Value) error {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.bindings[name]; ok {
			if !b.mutable {
				return fmt.Errorf("cannot assign to immutable binding %q", name)
			}
			b.value = v
			return nil
		}
	}
	return fmt.Errorf("undefined variable %q", name)
}

// Names returns the names declared directly in this scope, in declaration
// order (not including parents).
func (s *Scope) Names() []string {
	return append([]string(nil), s.order...)
}
