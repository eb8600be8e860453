// Package typetag maps interface types to registered concrete decoders so
// that interface-valued payloads survive serialization. A value's tag is a
// stable string (Tagged.TypeTag, defaulting to the Go type name); decoding
// looks the tag up under the target interface type and runs the stored
// constructor. The registry is append-only: duplicate registration is
// rejected, never silently replaced.
package typetag

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Tagged supplies a value's wire tag. Every concrete type serialized behind
// an interface must implement it.
type Tagged interface {
	TypeTag() string
}

// Registry errors
var (
	ErrUnknownTag       = errors.New("unknown type tag")
	ErrDuplicateTag     = errors.New("type tag already registered")
	ErrNotInterface     = errors.New("target type is not an interface")
	ErrNotImplementer   = errors.New("registered type does not implement the target interface")
	ErrNoAnyParser      = errors.New("no any-value parser registered for the target interface")
	ErrDuplicateParser  = errors.New("any-value parser already registered")
	ErrNotTagged        = errors.New("value does not implement Tagged")
	ErrUntaggedMismatch = errors.New("parsed value does not implement the target interface")
)

type tagKey struct {
	iface reflect.Type
	tag   string
}

// Registry stores decode constructors keyed by (interface type, tag), plus
// per-interface fallback parsers for untagged self-describing payloads.
type Registry struct {
	mu       sync.RWMutex
	decoders map[tagKey]func(unmarshal func(any) error) (any, error)
	parsers  map[reflect.Type]func(v any) (any, error)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[tagKey]func(unmarshal func(any) error) (any, error)),
		parsers:  make(map[reflect.Type]func(v any) (any, error)),
	}
}

// IfaceType returns the reflect.Type of interface type I.
func IfaceType[I any]() reflect.Type {
	return reflect.TypeOf((*I)(nil)).Elem()
}

// DefaultTag derives a tag from T's type name.
func DefaultTag[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().Name()
}

// Register adds a decoder producing T values for interface I under the given
// tag. T must implement I through its value or pointer method set; the
// decoded result uses whichever of the two satisfies I.
func Register[I any, T any](r *Registry, tag string) error {
	iface := IfaceType[I]()
	if iface.Kind() != reflect.Interface {
		return fmt.Errorf("register %q: %s: %w", tag, iface, ErrNotInterface)
	}
	ptr := reflect.TypeOf((*T)(nil))
	if !ptr.Implements(iface) {
		return fmt.Errorf("register %q: %s: %w", tag, ptr.Elem(), ErrNotImplementer)
	}
	asValue := ptr.Elem().Implements(iface)

	fn := func(unmarshal func(any) error) (any, error) {
		v := new(T)
		if err := unmarshal(v); err != nil {
			return nil, err
		}
		if asValue {
			return *v, nil
		}
		return v, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := tagKey{iface: iface, tag: tag}
	if _, exists := r.decoders[key]; exists {
		return fmt.Errorf("register %q for %s: %w", tag, iface, ErrDuplicateTag)
	}
	r.decoders[key] = fn
	return nil
}

// RegisterAny adds the fallback parser used for untagged payloads of
// interface I. The parser receives the payload as untyped Go values (maps,
// slices, scalars) and builds the concrete value itself. One parser per
// interface type.
func RegisterAny[I any](r *Registry, parse func(v any) (I, error)) error {
	iface := IfaceType[I]()
	if iface.Kind() != reflect.Interface {
		return fmt.Errorf("register any-parser: %s: %w", iface, ErrNotInterface)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.parsers[iface]; exists {
		return fmt.Errorf("register any-parser for %s: %w", iface, ErrDuplicateParser)
	}
	r.parsers[iface] = func(v any) (any, error) {
		out, err := parse(v)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil
}

// Decode runs the constructor registered for (iface, tag), driving it with
// the caller's unmarshal function.
func (r *Registry) Decode(iface reflect.Type, tag string, unmarshal func(any) error) (any, error) {
	r.mu.RLock()
	fn := r.decoders[tagKey{iface: iface, tag: tag}]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("decode tag %q for %s: %w", tag, iface, ErrUnknownTag)
	}
	return fn(unmarshal)
}

// DecodeAny runs the fallback parser registered for iface against an
// untyped payload.
func (r *Registry) DecodeAny(iface reflect.Type, v any) (any, error) {
	r.mu.RLock()
	fn := r.parsers[iface]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("decode untagged value for %s: %w", iface, ErrNoAnyParser)
	}
	out, err := fn(v)
	if err != nil {
		return nil, err
	}
	if out == nil || !reflect.TypeOf(out).Implements(iface) {
		return nil, fmt.Errorf("decode untagged value for %s: got %T: %w", iface, out, ErrUntaggedMismatch)
	}
	return out, nil
}

// TagOf extracts a value's wire tag.
func TagOf(v any) (string, error) {
	tagged, ok := v.(Tagged)
	if !ok {
		return "", fmt.Errorf("tag of %T: %w", v, ErrNotTagged)
	}
	return tagged.TypeTag(), nil
}

// Tags lists the registered tags for iface, sorted.
func (r *Registry) Tags(iface reflect.Type) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for key := range r.decoders {
		if key.iface == iface {
			out = append(out, key.tag)
		}
	}
	sort.Strings(out)
	return out
}
