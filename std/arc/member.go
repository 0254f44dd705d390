package arc

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unsafe"
)

// RefKind is the kind of a reference stored in a payload.
type RefKind uint8

const (
	RefStrong RefKind = iota + 1
	RefWeak
	RefUnowned
)

func (k RefKind) String() string {
	switch k {
	case RefStrong:
		return "strong"
	case RefWeak:
		return "weak"
	case RefUnowned:
		return "unowned"
	default:
		return "none"
	}
}

// member is implemented by every handle type that may live inside a payload.
type member interface {
	dropMember()
	// memberRefs reports every reference the member holds.
	memberRefs(yield func(kind RefKind, to ID))
}

var memberType = reflect.TypeOf((*member)(nil)).Elem()

// memberTypes caches whether a type can contain members.
var memberTypes sync.Map // reflect.Type -> bool

func isMember(t reflect.Type) bool {
	return reflect.PointerTo(t).Implements(memberType) ||
		(t.Kind() == reflect.Pointer && t.Implements(memberType))
}

func hasMembers(t reflect.Type) bool {
	if v, ok := memberTypes.Load(t); ok {
		return v.(bool)
	}
	has := scanType(t, map[reflect.Type]bool{})
	memberTypes.Store(t, has)
	return has
}

func scanType(t reflect.Type, seen map[reflect.Type]bool) bool {
	if isMember(t) {
		return true
	}
	if seen[t] {
		return false
	}
	seen[t] = true

	switch t.Kind() {
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if scanType(t.Field(i).Type, seen) {
				return true
			}
		}
	case reflect.Array, reflect.Slice, reflect.Pointer, reflect.Map:
		return scanType(t.Elem(), seen)
	}
	return false
}

// walker visits the members of one payload. Every value it is handed is
// addressable.
type walker struct {
	withPath bool
	// drop writes map values back after visiting them
	drop bool
	fn   func(path string, m member)
	// targets of the pointers already followed
	seen map[unsafe.Pointer]bool
}

// walkMembers visits every member stored in the payload p (a *T), in
// declaration order. It descends into struct fields, arrays, slices,
// map values (ordered by key) and pointers, following each pointer
// once. Interfaces and channels are not followed. path is only built
// when withPath is set.
func walkMembers(p any, withPath bool, fn func(path string, m member)) {
	newWalker(withPath, false, fn).root(p)
}

// dropMembers unbinds every handle stored in a torn down payload.
func dropMembers(p any) {
	newWalker(false, true, func(_ string, m member) {
		m.dropMember()
	}).root(p)
}

func newWalker(withPath, drop bool, fn func(string, member)) *walker {
	return &walker{withPath: withPath, drop: drop, fn: fn}
}

func (w *walker) root(p any) {
	v := reflect.ValueOf(p)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	if !hasMembers(v.Type().Elem()) {
		return
	}
	w.seen = map[unsafe.Pointer]bool{v.UnsafePointer(): true}
	w.walk(v.Elem(), "")
}

func (w *walker) walk(v reflect.Value, path string) {
	t := v.Type()
	// drop the read-only flag of unexported fields
	v = reflect.NewAt(t, unsafe.Pointer(v.UnsafeAddr())).Elem()

	if t.Kind() == reflect.Pointer && t.Implements(memberType) {
		if !v.IsNil() {
			w.fn(path, v.Interface().(member))
		}
		return
	}
	if reflect.PointerTo(t).Implements(memberType) {
		w.fn(path, v.Addr().Interface().(member))
		return
	}
	if !hasMembers(t) {
		return
	}

	switch t.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			w.walk(v.Field(i), w.join(path, t.Field(i).Name))
		}
	case reflect.Array, reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			w.walk(v.Index(i), w.index(path, strconv.Itoa(i)))
		}
	case reflect.Pointer:
		if v.IsNil() || w.seen[v.UnsafePointer()] {
			return
		}
		w.seen[v.UnsafePointer()] = true
		w.walk(v.Elem(), path)
	case reflect.Map:
		w.walkMap(v, path)
	}
}

// walkMap visits copies of the map values. When dropping, the emptied
// copies are stored back.
func (w *walker) walkMap(v reflect.Value, path string) {
	keys := v.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	})

	elem := v.Type().Elem()
	for _, k := range keys {
		val := reflect.New(elem).Elem()
		val.Set(v.MapIndex(k))
		w.walk(val, w.index(path, fmt.Sprint(k)))
		if w.drop && elem.Kind() != reflect.Pointer {
			v.SetMapIndex(k, val)
		}
	}
}

func (w *walker) join(path, field string) string {
	if !w.withPath {
		return ""
	}
	if path == "" {
		return field
	}
	return path + "." + field
}

func (w *walker) index(path, key string) string {
	if !w.withPath {
		return ""
	}
	return path + "[" + key + "]"
}
