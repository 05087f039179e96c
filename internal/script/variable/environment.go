package variable

import "fmt"

// Kind tags what a variable slot holds.
type Kind int

const (
	KindObject Kind = iota
	KindString
	KindBuffer
	KindPipe
	KindList
	KindOpenFile
	KindThread
)

var kindNames = map[Kind]string{
	KindObject:   "object",
	KindString:   "string",
	KindBuffer:   "buffer",
	KindPipe:     "pipe",
	KindList:     "list",
	KindOpenFile: "openfile",
	KindThread:   "thread",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Variable is one named slot of an Environment. Value is shared by reference
// when the slot is copied into another environment; buffers therefore act as
// cells whose content is visible to every holder.
type Variable struct {
	Name  string
	Kind  Kind
	Value interface{}
	Const bool
}

// Environment is one scope of variables with an optional parent. Lookups walk
// the parent chain; writes always go to the receiver, so a child scope can
// shadow or add names without affecting its parent. An Environment is owned
// by a single goroutine; Snapshot produces an independent copy for another.
type Environment struct {
	vars   map[string]*Variable
	order  []string
	parent *Environment
}

// NewEnvironment creates an empty scope below parent (which may be nil).
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{
		vars:   make(map[string]*Variable),
		parent: parent,
	}
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// Lookup finds the visible slot called name, walking up the scope chain.
func (e *Environment) Lookup(name string) (*Variable, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Get returns the value of the visible variable called name.
func (e *Environment) Get(name string) (interface{}, bool) {
	v, ok := e.Lookup(name)
	if !ok {
		return nil, false
	}
	return v.Value, true
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// Define creates or replaces the binding called name in this scope. Defining
// the same name again in the same scope is allowed (loop bodies re-execute
// their definitions) unless the existing binding is constant.
func (e *Environment) Define(name string, kind Kind, value interface{}) error {
	return e.define(name, kind, value, false)
}

// DefineConst creates a binding that cannot be reassigned or shadowed by Set.
func (e *Environment) DefineConst(name string, kind Kind, value interface{}) error {
	return e.define(name, kind, value, true)
}

func (e *Environment) define(name string, kind Kind, value interface{}, isConst bool) error {
	if old, ok := e.vars[name]; ok {
		if old.Const {
			return fmt.Errorf("cannot redefine constant %q", name)
		}
	} else {
		e.order = append(e.order, name)
	}
	e.vars[name] = &Variable{Name: name, Kind: kind, Value: value, Const: isConst}
	return nil
}

// Set creates or replaces the binding called name in this scope, keeping the
// kind of a visible binding of the same name. It fails if the visible binding
// is constant.
func (e *Environment) Set(name string, value interface{}) error {
	kind := KindObject
	if v, ok := e.Lookup(name); ok {
		if v.Const {
			return fmt.Errorf("cannot assign to constant %q", name)
		}
		kind = v.Kind
	}
	return e.define(name, kind, value, false)
}

// SetOrAppendInPlace stores value under name. If the visible binding holds a
// Buffer, the buffer content is replaced (or appended to, with appendMode) in
// place so every scope sharing the buffer observes the change. Otherwise a
// binding is created or replaced in this scope. With appendMode a list gets
// value as a new element and text gets the text of value; other kinds cannot
// be appended to. An unbound name is simply set.
func (e *Environment) SetOrAppendInPlace(name string, value interface{}, appendMode bool) error {
	v, ok := e.Lookup(name)
	if !ok {
		return e.Set(name, value)
	}
	if buf, isBuf := v.Value.(*Buffer); isBuf {
		buf.Put(ToString(value), appendMode)
		return nil
	}
	if appendMode {
		switch old := v.Value.(type) {
		case []interface{}:
			value = append(old, value)
		case string:
			value = old + ToString(value)
		default:
			return fmt.Errorf("type %s not supported for append", TypeName(v.Value))
		}
	}
	return e.Set(name, value)
}

// ---------------------------------------------------------------------------
// Copies
// ---------------------------------------------------------------------------

// Snapshot flattens every visible binding into a new root scope. Slots are
// copied, values are shared: later rebinding in either environment is not
// seen by the other, mutation of a shared Buffer is.
func (e *Environment) Snapshot() *Environment {
	var chain []*Environment
	for s := e; s != nil; s = s.parent {
		chain = append(chain, s)
	}
	snap := NewEnvironment(nil)
	for i := len(chain) - 1; i >= 0; i-- {
		for _, name := range chain[i].order {
			cp := *chain[i].vars[name]
			if _, seen := snap.vars[name]; !seen {
				snap.order = append(snap.order, name)
			}
			snap.vars[name] = &cp
		}
	}
	return snap
}
