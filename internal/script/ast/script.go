package ast

import (
	"fmt"
	"strings"

	"github.com/JzHartmut/jzcmd/internal/script/token"
)

// FormalArg is one declared subroutine argument.
type FormalArg struct {
	Name     string
	Kind     VarKind
	Default  Expression // may be nil, then the argument is required
	Position token.Position
}

// Subroutine is a named, callable statement list.
type Subroutine struct {
	Name     string
	Args     []*FormalArg
	Body     *StatementList
	Class    *Class // owning namespace
	Position token.Position
}

func (s *Subroutine) Pos() token.Position { return s.Position }

// Formal returns the formal argument called name, or nil.
func (s *Subroutine) Formal(name string) *FormalArg {
	for _, a := range s.Args {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// QualifiedName returns the dotted name including enclosing classes.
func (s *Subroutine) QualifiedName() string {
	if s.Class == nil || s.Class.parent == nil {
		return s.Name
	}
	return s.Class.QualifiedName() + "." + s.Name
}

// Class is a namespace of subroutines and nested classes. The root class of
// a Script is the flat global namespace.
type Class struct {
	Name        string
	Subroutines []*Subroutine
	Classes     []*Class
	Position    token.Position

	parent  *Class
	subs    map[string]*Subroutine
	classes map[string]*Class
}

// NewClass creates an empty namespace.
func NewClass(name string) *Class {
	return &Class{
		Name:    name,
		subs:    make(map[string]*Subroutine),
		classes: make(map[string]*Class),
	}
}

// QualifiedName returns the dotted class path below the root.
func (c *Class) QualifiedName() string {
	if c.parent == nil || c.parent.parent == nil {
		return c.Name
	}
	return c.parent.QualifiedName() + "." + c.Name
}

// AddSubroutine registers s. Names are unique within a class.
func (c *Class) AddSubroutine(s *Subroutine) error {
	if _, dup := c.subs[s.Name]; dup {
		return fmt.Errorf("subroutine %q already defined", s.Name)
	}
	s.Class = c
	c.subs[s.Name] = s
	c.Subroutines = append(c.Subroutines, s)
	return nil
}

// AddClass registers a nested class.
func (c *Class) AddClass(sub *Class) error {
	if _, dup := c.classes[sub.Name]; dup {
		return fmt.Errorf("class %q already defined", sub.Name)
	}
	sub.parent = c
	c.classes[sub.Name] = sub
	c.Classes = append(c.Classes, sub)
	return nil
}

// Subroutine returns the subroutine of this class called name.
func (c *Class) Subroutine(name string) (*Subroutine, bool) {
	s, ok := c.subs[name]
	return s, ok
}

// Class returns the nested class called name.
func (c *Class) Class(name string) (*Class, bool) {
	sub, ok := c.classes[name]
	return sub, ok
}

// Script is the root of an executable tree.
type Script struct {
	File string
	Root *Class         // global namespace
	Vars []*VarDef      // script variables, initialized in order
	Main *StatementList // may be nil for a pure library
}

// NewScript creates an empty script.
func NewScript(file string) *Script {
	return &Script{
		File: file,
		Root: NewClass(""),
		Main: &StatementList{},
	}
}

// AddVar appends a script variable initializer.
func (s *Script) AddVar(v *VarDef) {
	s.Vars = append(s.Vars, v)
}

// Lookup resolves a possibly dotted subroutine name ("gen", "java.genClass")
// against the class tree.
func (s *Script) Lookup(name string) (*Subroutine, bool) {
	parts := strings.Split(name, ".")
	c := s.Root
	for _, p := range parts[:len(parts)-1] {
		next, ok := c.Class(p)
		if !ok {
			return nil, false
		}
		c = next
	}
	return c.Subroutine(parts[len(parts)-1])
}

// Walk visits every subroutine of the script, depth first in declaration
// order.
func (s *Script) Walk(fn func(*Subroutine)) {
	var walk func(c *Class)
	walk = func(c *Class) {
		for _, sub := range c.Subroutines {
			fn(sub)
		}
		for _, nested := range c.Classes {
			walk(nested)
		}
	}
	walk(s.Root)
}
