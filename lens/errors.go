package lens

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zeusync/worldlens/ecs"
)

// Scope errors
var (
	ErrNoActiveWorld = errors.New("no active world scope")
)

// Binding errors
var (
	ErrNotABinding      = errors.New("binding type must be a struct")
	ErrUnexportedField  = errors.New("binding fields must be exported")
	ErrMissingComponent = errors.New("required component is missing")
	ErrMissingField     = errors.New("required field is absent from the input")
	ErrMissingResource  = errors.New("resource is missing")
)

// Reference errors
var (
	ErrUnresolvedReference = errors.New("unresolved entity reference")
	ErrTokenReused         = errors.New("entity reference token defined twice")
)

// Type-tag errors
var (
	ErrUnknownTypeTag    = errors.New("unknown type tag")
	ErrUnsupportedFormat = errors.New("format cannot decode untagged values")
)

// Batch errors
var (
	ErrUnknownBatchKey   = errors.New("unknown batch key")
	ErrMissingBatchKey   = errors.New("missing batch key")
	ErrDuplicateBatchKey = errors.New("duplicate batch key")
)

// Projection errors
var (
	ErrNoMatchingChild   = errors.New("no child matches the binding")
	ErrMultipleChildren  = errors.New("multiple children match the binding")
	ErrDuplicateChildKey = errors.New("duplicate child map key")
	ErrPathlessHandle    = errors.New("asset handle has no path")
	ErrAssetMissing      = errors.New("asset is not loaded")
)

// Error wraps one of the sentinel kinds above with the context needed to
// locate the failure: the entity, the binding field, the wire tag, or the
// batch key involved. errors.Is matches against the sentinel.
type Error struct {
	Err    error
	Entity ecs.EntityID
	Field  string
	Tag    string
	Key    string
	Detail string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if e.Entity != 0 {
		fmt.Fprintf(&b, " (entity %d)", e.Entity)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %q)", e.Field)
	}
	if e.Tag != "" {
		fmt.Fprintf(&b, " (tag %q)", e.Tag)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " (key %q)", e.Key)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// fieldErr attaches entity and field context to an error surfacing from one
// binding field, without clobbering context set deeper in the call.
func fieldErr(id ecs.EntityID, field string, err error) error {
	var le *Error
	if errors.As(err, &le) {
		if le.Entity == 0 {
			le.Entity = id
		}
		if le.Field == "" {
			le.Field = field
		}
		return err
	}
	return fmt.Errorf("entity %d field %q: %w", id, field, err)
}

// keyErr attaches batch key context the same way.
func keyErr(key string, err error) error {
	var le *Error
	if errors.As(err, &le) {
		if le.Key == "" {
			le.Key = key
		}
		return err
	}
	return fmt.Errorf("batch key %q: %w", key, err)
}
