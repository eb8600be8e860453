package lens

import (
	"reflect"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/zeusync/worldlens/ecs"
)

// Filterer lets a binding replace the entity filter derived from its fields.
// The derived filter requires every plain component field; a custom filter
// can add exclusions or drop requirements.
type Filterer interface {
	BindingFilter() ecs.Filter
}

type fieldKind uint8

const (
	fieldComponent fieldKind = iota
	fieldProjection
)

// fieldPlan is one compiled binding field: where it lives in the struct,
// what it is called on the wire, and how save and load treat it.
type fieldPlan struct {
	name     string
	wireJSON string
	wireYAML string
	index    int
	kind     fieldKind
	typ      reflect.Type
	skip     bool
}

// plan is the compiled form of a binding struct: its fields plus the entity
// filter that selects which entities the binding covers.
type plan struct {
	typ    reflect.Type
	fields []fieldPlan
	filter ecs.Filter
}

var (
	planCache sync.Map // reflect.Type -> *plan
	planGroup singleflight.Group
)

// planFor returns the compiled plan for binding type t, compiling it once
// per process. Compilation of the same type from concurrent callers is
// collapsed into a single run.
func planFor(t reflect.Type) (*plan, error) {
	if cached, ok := planCache.Load(t); ok {
		return cached.(*plan), nil
	}
	key := t.PkgPath() + "/" + t.String()
	v, err, _ := planGroup.Do(key, func() (any, error) {
		if cached, ok := planCache.Load(t); ok {
			return cached, nil
		}
		p, err := compile(t)
		if err != nil {
			return nil, err
		}
		planCache.Store(t, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*plan), nil
}

var projectionType = reflect.TypeOf((*projection)(nil)).Elem()

func compile(t reflect.Type) (*plan, error) {
	if t.Kind() != reflect.Struct {
		return nil, &Error{Err: ErrNotABinding, Detail: t.String()}
	}
	p := &plan{typ: t}
	var required []reflect.Type
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			return nil, &Error{Err: ErrUnexportedField, Field: f.Name, Detail: t.String()}
		}
		fp := fieldPlan{
			name:     f.Name,
			wireJSON: wireName(f.Tag.Get("json"), f.Name),
			wireYAML: wireName(f.Tag.Get("yaml"), strings.ToLower(f.Name)),
			index:    i,
		}
		if fp.wireJSON == "-" || fp.wireYAML == "-" {
			fp.skip = true
			p.fields = append(p.fields, fp)
			continue
		}
		if reflect.PointerTo(f.Type).Implements(projectionType) {
			fp.kind = fieldProjection
		} else {
			fp.kind = fieldComponent
			fp.typ = f.Type
			required = append(required, f.Type)
		}
		p.fields = append(p.fields, fp)
	}
	p.filter = ecs.NewFilter(required...)
	if custom, ok := reflect.New(t).Interface().(Filterer); ok {
		p.filter = custom.BindingFilter()
	}
	return p, nil
}

// wireName resolves a struct tag to the wire key, falling back to fallback
// when the tag sets no name. yaml.v3 lowercases untagged field names, so
// the yaml fallback is the lowercased Go name.
func wireName(tag, fallback string) string {
	if tag == "" {
		return fallback
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return fallback
	}
	return name
}
