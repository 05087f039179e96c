// Package datapath resolves and stores values addressed by dotted paths.
//
// A path starts with a variable name looked up in a Scope; every following
// segment steps into the current value as a map key, struct field, list index
// or method call. Method and field names match exactly or with the first
// letter upper-cased, so script paths can use lowerCamel names for exported
// Go members.
package datapath

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JzHartmut/jzcmd/internal/script/scripterr"
	"github.com/JzHartmut/jzcmd/internal/script/variable"
)

// Segment is one evaluated path element. Args hold already evaluated call
// arguments.
type Segment struct {
	Name string
	Call bool
	Args []interface{}
}

func (s Segment) String() string {
	if s.Call {
		return s.Name + "()"
	}
	return s.Name
}

// Scope is the variable namespace the first segment is looked up in.
type Scope interface {
	Get(name string) (interface{}, bool)
}

// Setter is a Scope that can bind a name.
type Setter interface {
	Scope
	Set(name string, value interface{}) error
}

// Resolve looks up segs[0] in scope and walks the remaining segments.
func Resolve(scope Scope, segs []Segment, allowPrivate, wantContainer bool) (interface{}, error) {
	if len(segs) == 0 {
		return nil, scripterr.Internal("empty data path")
	}
	root, ok := scope.Get(segs[0].Name)
	if !ok {
		return nil, scripterr.NotFound("variable %q not found", segs[0].Name)
	}
	if segs[0].Call {
		return nil, scripterr.Internal("%s: a path cannot start with a call", segs[0].Name)
	}
	return Walk(root, segs[0].Name, segs[1:], allowPrivate, wantContainer)
}

// Walk steps from root through segs. name is used in error messages for the
// root value.
func Walk(root interface{}, name string, segs []Segment, allowPrivate, wantContainer bool) (interface{}, error) {
	cur := root
	path := name
	for _, seg := range segs {
		next, err := step(cur, seg, allowPrivate)
		if err != nil {
			return nil, annotate(err, path)
		}
		cur = next
		path += "." + seg.String()
	}
	if wantContainer && !variable.IsContainer(cur) {
		return nil, scripterr.Internal("%s is not a container but %s", path, variable.TypeName(cur))
	}
	return cur, nil
}

// Store binds value at the path. A single segment path is bound in scope;
// otherwise the parent is resolved and the last segment set as map key,
// struct field or list index. With createIfAbsent false the target must
// already exist.
func Store(scope Setter, segs []Segment, value interface{}, createIfAbsent bool) error {
	if len(segs) == 0 {
		return scripterr.Internal("empty data path")
	}
	last := segs[len(segs)-1]
	if last.Call {
		return scripterr.Internal("cannot assign to method call %s", last)
	}
	if len(segs) == 1 {
		if _, ok := scope.Get(last.Name); !ok && !createIfAbsent {
			return scripterr.NotFound("variable %q not found", last.Name)
		}
		return scope.Set(last.Name, value)
	}
	parent, err := Resolve(scope, segs[:len(segs)-1], false, false)
	if err != nil {
		return err
	}
	return storeInto(parent, last.Name, value, createIfAbsent)
}

func annotate(err error, path string) error {
	if se, ok := err.(*scripterr.Error); ok {
		return &scripterr.Error{Kind: se.Kind, Msg: path + ": " + se.Msg, Level: se.Level, Err: se.Err}
	}
	return fmt.Errorf("%s: %w", path, err)
}

// ---------------------------------------------------------------------------
// Stepping
// ---------------------------------------------------------------------------

func step(cur interface{}, seg Segment, allowPrivate bool) (interface{}, error) {
	if cur == nil {
		return nil, scripterr.NotFound("%s on null", seg)
	}
	if seg.Call {
		return call(cur, seg)
	}

	switch c := cur.(type) {
	case map[string]interface{}:
		if v, ok := c[seg.Name]; ok {
			return v, nil
		}
		return nil, scripterr.NotFound("key %q not found", seg.Name)
	case *variable.OrderedMap:
		if v, ok := c.Get(seg.Name); ok {
			return v, nil
		}
		return nil, scripterr.NotFound("key %q not found", seg.Name)
	case *variable.Environment:
		if v, ok := c.Get(seg.Name); ok {
			return v, nil
		}
		return nil, scripterr.NotFound("variable %q not found", seg.Name)
	}

	rv := reflect.ValueOf(cur)
	base := rv
	for base.Kind() == reflect.Ptr || base.Kind() == reflect.Interface {
		if base.IsNil() {
			return nil, scripterr.NotFound("%s on nil %s", seg, rv.Type())
		}
		base = base.Elem()
	}

	switch base.Kind() {
	case reflect.Map:
		if base.Type().Key().Kind() == reflect.String {
			v := base.MapIndex(reflect.ValueOf(seg.Name).Convert(base.Type().Key()))
			if v.IsValid() {
				return v.Interface(), nil
			}
			return nil, scripterr.NotFound("key %q not found", seg.Name)
		}
	case reflect.Slice, reflect.Array:
		if i, err := strconv.Atoi(seg.Name); err == nil {
			if i < 0 || i >= base.Len() {
				return nil, scripterr.NotFound("index %d out of range [0,%d)", i, base.Len())
			}
			return base.Index(i).Interface(), nil
		}
	case reflect.Struct:
		if v, ok := field(base, seg.Name, allowPrivate); ok {
			return v, nil
		}
	}

	// A plain name may address a getter method without arguments.
	if m, ok := method(rv, seg.Name); ok && m.Type().NumIn() == 0 {
		return invoke(m, seg)
	}
	return nil, scripterr.NotFound("%q not found in %s", seg.Name, variable.TypeName(cur))
}

// candidates returns the names tried for a member: the name itself and the
// name with an upper-case first letter.
func candidates(name string) []string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return []string{name}
	}
	return []string{name, string(unicode.ToUpper(r)) + name[size:]}
}

func field(sv reflect.Value, name string, allowPrivate bool) (interface{}, bool) {
	for _, n := range candidates(name) {
		sf, ok := sv.Type().FieldByName(n)
		if !ok {
			continue
		}
		fv := sv.FieldByIndex(sf.Index)
		if fv.CanInterface() {
			return fv.Interface(), true
		}
		if allowPrivate {
			if v, ok := readUnexported(fv); ok {
				return v, true
			}
		}
	}
	return nil, false
}

// readUnexported reads basic-kind values reflect allows without Interface.
func readUnexported(fv reflect.Value) (interface{}, bool) {
	switch fv.Kind() {
	case reflect.Bool:
		return fv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(fv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return fv.Float(), true
	case reflect.String:
		return fv.String(), true
	}
	return nil, false
}

func method(rv reflect.Value, name string) (reflect.Value, bool) {
	for _, n := range candidates(name) {
		if m := rv.MethodByName(n); m.IsValid() {
			return m, true
		}
	}
	return reflect.Value{}, false
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func call(cur interface{}, seg Segment) (interface{}, error) {
	rv := reflect.ValueOf(cur)
	if m, ok := method(rv, seg.Name); ok {
		return invoke(m, seg)
	}
	if v, ok := builtin(rv, seg); ok {
		return v, nil
	}
	return nil, scripterr.NotFound("method %s not found in %s", seg, variable.TypeName(cur))
}

// builtin serves size() and length() on lists, maps and text, which have no
// Go methods.
func builtin(rv reflect.Value, seg Segment) (interface{}, bool) {
	if len(seg.Args) != 0 {
		return nil, false
	}
	switch strings.ToLower(seg.Name) {
	case "size", "length", "len":
	default:
		return nil, false
	}
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return int64(rv.Len()), true
	}
	return nil, false
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func invoke(m reflect.Value, seg Segment) (interface{}, error) {
	mt := m.Type()
	if mt.IsVariadic() {
		if len(seg.Args) < mt.NumIn()-1 {
			return nil, scripterr.Internal("%s: want at least %d arguments, got %d", seg.Name, mt.NumIn()-1, len(seg.Args))
		}
	} else if len(seg.Args) != mt.NumIn() {
		return nil, scripterr.Internal("%s: want %d arguments, got %d", seg.Name, mt.NumIn(), len(seg.Args))
	}

	in := make([]reflect.Value, len(seg.Args))
	for i, a := range seg.Args {
		var pt reflect.Type
		if mt.IsVariadic() && i >= mt.NumIn()-1 {
			pt = mt.In(mt.NumIn() - 1).Elem()
		} else {
			pt = mt.In(i)
		}
		v, err := convertArg(a, pt)
		if err != nil {
			return nil, scripterr.Internal("%s argument %d: %v", seg.Name, i+1, err)
		}
		in[i] = v
	}

	out := m.Call(in)
	if n := len(out); n > 0 && mt.Out(n-1) == errorType {
		if errV := out[n-1]; !errV.IsNil() {
			return nil, errV.Interface().(error)
		}
		out = out[:n-1]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

// convertArg adapts a script value to the parameter type t.
func convertArg(a interface{}, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch t.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("null not allowed for %s", t)
	}
	av := reflect.ValueOf(a)
	if av.Type().AssignableTo(t) {
		return av, nil
	}
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(variable.ToString(a)).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := variable.ToInt(a)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(i).Convert(t), nil
	case reflect.Float32, reflect.Float64:
		f, err := variable.ToFloat(a)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(f).Convert(t), nil
	case reflect.Bool:
		return reflect.ValueOf(variable.ToBool(a)), nil
	}
	if av.Type().ConvertibleTo(t) {
		return av.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", variable.TypeName(a), t)
}

// ---------------------------------------------------------------------------
// Storing
// ---------------------------------------------------------------------------

func storeInto(parent interface{}, name string, value interface{}, createIfAbsent bool) error {
	switch c := parent.(type) {
	case nil:
		return scripterr.NotFound("cannot store %q into null", name)
	case map[string]interface{}:
		if _, ok := c[name]; !ok && !createIfAbsent {
			return scripterr.NotFound("key %q not found", name)
		}
		c[name] = value
		return nil
	case *variable.OrderedMap:
		if _, ok := c.Get(name); !ok && !createIfAbsent {
			return scripterr.NotFound("key %q not found", name)
		}
		c.Put(name, value)
		return nil
	}

	rv := reflect.ValueOf(parent)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return scripterr.NotFound("cannot store %q into nil", name)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		key := reflect.ValueOf(name).Convert(rv.Type().Key())
		if !rv.MapIndex(key).IsValid() && !createIfAbsent {
			return scripterr.NotFound("key %q not found", name)
		}
		v, err := convertArg(value, rv.Type().Elem())
		if err != nil {
			return scripterr.Internal("store %s: %v", name, err)
		}
		rv.SetMapIndex(key, v)
		return nil
	case reflect.Slice:
		i, err := strconv.Atoi(name)
		if err != nil {
			break
		}
		if i < 0 || i >= rv.Len() {
			return scripterr.NotFound("index %d out of range [0,%d)", i, rv.Len())
		}
		v, err := convertArg(value, rv.Type().Elem())
		if err != nil {
			return scripterr.Internal("store %s: %v", name, err)
		}
		rv.Index(i).Set(v)
		return nil
	case reflect.Struct:
		for _, n := range candidates(name) {
			fv := rv.FieldByName(n)
			if !fv.IsValid() {
				continue
			}
			if !fv.CanSet() {
				return scripterr.Internal("field %q is not settable", name)
			}
			v, err := convertArg(value, fv.Type())
			if err != nil {
				return scripterr.Internal("store %s: %v", name, err)
			}
			fv.Set(v)
			return nil
		}
		return scripterr.NotFound("field %q not found in %s", name, rv.Type())
	}
	return scripterr.Internal("type %s not supported for assignment", variable.TypeName(parent))
}
