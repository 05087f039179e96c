package variable

import (
	"fmt"
	"reflect"
	"sort"
)

// Entry is one element visited by Iterate. Key is the map key, or empty for
// ordered containers.
type Entry struct {
	Key   string
	Value interface{}
}

// IsContainer reports whether v can be iterated by a for statement.
func IsContainer(v interface{}) bool {
	switch v.(type) {
	case []interface{}, map[string]interface{}, *OrderedMap:
		return true
	case nil, string:
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

// Iterate returns the elements of a container in visiting order: slices in
// index order, OrderedMap in insertion order, other maps sorted by key.
// For maps the entry Value is the map value.
func Iterate(v interface{}) ([]Entry, error) {
	switch c := v.(type) {
	case []interface{}:
		out := make([]Entry, len(c))
		for i, el := range c {
			out[i] = Entry{Value: el}
		}
		return out, nil
	case *OrderedMap:
		out := make([]Entry, 0, c.Size())
		for _, k := range c.keys {
			out = append(out, Entry{Key: k, Value: c.m[k]})
		}
		return out, nil
	case map[string]interface{}:
		keys := SortedKeys(c)
		out := make([]Entry, len(keys))
		for i, k := range keys {
			out[i] = Entry{Key: k, Value: c[k]}
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("cannot iterate null")
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]Entry, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Entry{Value: rv.Index(i).Interface()}
		}
		return out, nil
	case reflect.Map:
		keys := rv.MapKeys()
		out := make([]Entry, 0, len(keys))
		for _, k := range keys {
			out = append(out, Entry{Key: fmt.Sprint(k.Interface()), Value: rv.MapIndex(k).Interface()})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		return out, nil
	}
	return nil, fmt.Errorf("%s is not a container", TypeName(v))
}
