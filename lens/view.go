package lens

import (
	"encoding/json"
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/worldlens/codec"
	"github.com/zeusync/worldlens/ecs"
)

// View drives serialization for binding B. The zero value resolves the
// world through the ambient scope, so it only works inside WithWorld, Save,
// or Load. A view from ViewOf carries its world along and installs the
// scope itself, which makes it safe to hand straight to an encoder.
//
// Marshaling a view writes every entity matching B's filter as an array of
// binding objects, in world spawn order. Unmarshaling spawns one fresh
// entity per input element and inserts the decoded components.
type View[B any] struct {
	world *ecs.World
}

// ViewOf returns a view over w. The view self-installs a scope during
// marshal and unmarshal calls, so it can be passed directly to json.Marshal
// or yaml.Unmarshal without an enclosing WithWorld.
func ViewOf[B any](w *ecs.World) View[B] {
	return View[B]{world: w}
}

func (v View[B]) run(fn func(sc *scope) error) error {
	if v.world != nil {
		return scopedCall(v.world, nil, func() error { return fn(active) })
	}
	sc, err := requireScope()
	if err != nil {
		return err
	}
	return fn(sc)
}

func (v View[B]) MarshalJSON() ([]byte, error) {
	var out []byte
	err := v.run(func(sc *scope) error {
		views, err := collectViews[B](sc)
		if err != nil {
			return err
		}
		out, err = json.Marshal(views)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (v *View[B]) UnmarshalJSON(data []byte) error {
	return v.run(func(sc *scope) error { return loadViewsJSON[B](sc, data) })
}

// MarshalYAML encodes the matching entities into a yaml node while the
// scope is still installed. Returning the node keeps nested projections,
// which need the scope themselves, inside it.
func (v View[B]) MarshalYAML() (any, error) {
	var out any
	err := v.run(func(sc *scope) error {
		views, err := collectViews[B](sc)
		if err != nil {
			return err
		}
		node := new(yaml.Node)
		if err := node.Encode(views); err != nil {
			return err
		}
		out = node
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (v *View[B]) UnmarshalYAML(node *yaml.Node) error {
	return v.run(func(sc *scope) error { return loadViewsYAML[B](sc, node) })
}

// Save serializes every entity in w matching binding B through c.
func Save[B any](w *ecs.World, c codec.Codec) ([]byte, error) {
	var out []byte
	err := scopedCall(w, c, func() error {
		data, err := c.Marshal(View[B]{})
		if err != nil {
			return err
		}
		out = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Load decodes data through c, spawning one entity per serialized element
// and populating it. Entity references resolve once the whole payload has
// been decoded. On failure the world keeps whatever was applied before the
// error; callers wanting isolation load into a scratch world first.
func Load[B any](w *ecs.World, c codec.Codec, data []byte) error {
	return scopedCall(w, c, func() error {
		var v View[B]
		return c.Unmarshal(data, &v)
	})
}

// Despawn removes every entity currently matching binding B's filter,
// including each one's descendants, and reports how many matched. The
// filter is evaluated at call time against live world state.
func Despawn[B any](w *ecs.World) (int, error) {
	p, err := planFor(reflect.TypeFor[B]())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range p.filter.Entities(w) {
		if !w.Alive(id) {
			continue
		}
		if err := w.Despawn(id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// collectViews fills one binding value per entity matching B's filter, in
// world spawn order.
func collectViews[B any](sc *scope) ([]*B, error) {
	p, err := planFor(reflect.TypeFor[B]())
	if err != nil {
		return nil, err
	}
	ids := p.filter.Entities(sc.world)
	views := make([]*B, 0, len(ids))
	for _, id := range ids {
		bv, err := fillLens(sc, p, id)
		if err != nil {
			return nil, err
		}
		views = append(views, bv.Interface().(*B))
	}
	return views, nil
}

// fillLens builds one binding value for entity id: component fields copy
// the entity's component values, projection fields compute their own state
// from the world.
func fillLens(sc *scope, p *plan, id ecs.EntityID) (reflect.Value, error) {
	bp := reflect.New(p.typ)
	bv := bp.Elem()
	for _, f := range p.fields {
		if f.skip {
			continue
		}
		fv := bv.Field(f.index)
		switch f.kind {
		case fieldComponent:
			ptr, ok := sc.world.GetRaw(id, f.typ)
			if !ok {
				return reflect.Value{}, &Error{Err: ErrMissingComponent, Entity: id, Field: f.name}
			}
			fv.Set(reflect.ValueOf(ptr).Elem())
		case fieldProjection:
			if err := fv.Addr().Interface().(projection).fillFrom(sc, id); err != nil {
				return reflect.Value{}, fieldErr(id, f.name, err)
			}
		}
	}
	return bp, nil
}

func loadViewsJSON[B any](sc *scope, data []byte) error {
	p, err := planFor(reflect.TypeFor[B]())
	if err != nil {
		return err
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return fmt.Errorf("failed to decode binding array: %w", err)
	}
	for _, raw := range elems {
		if err := loadEntityJSON(sc, p, sc.world.Spawn(), raw); err != nil {
			return err
		}
	}
	return nil
}

func loadViewsYAML[B any](sc *scope, node *yaml.Node) error {
	p, err := planFor(reflect.TypeFor[B]())
	if err != nil {
		return err
	}
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("failed to decode binding array: expected sequence, got %s", yamlKind(node))
	}
	for _, item := range node.Content {
		if err := loadEntityYAML(sc, p, sc.world.Spawn(), item); err != nil {
			return err
		}
	}
	return nil
}

// loadEntityJSON decodes one binding element onto entity id. Every plain
// component field must be present in the input; projection fields tolerate
// absence. Component memory is inserted by interior pointer so that entity
// reference slots recorded during decoding stay valid after the world
// takes ownership.
func loadEntityJSON(sc *scope, p *plan, id ecs.EntityID, raw json.RawMessage) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return fmt.Errorf("failed to decode binding element: %w", err)
	}
	for _, f := range p.fields {
		if f.skip || f.kind != fieldComponent {
			continue
		}
		if _, ok := keys[f.wireJSON]; !ok {
			return &Error{Err: ErrMissingField, Entity: id, Field: f.wireJSON}
		}
	}
	bp := reflect.New(p.typ)
	if err := json.Unmarshal(raw, bp.Interface()); err != nil {
		return fmt.Errorf("failed to decode binding element: %w", err)
	}
	return applyLens(sc, p, id, bp.Elem())
}

func loadEntityYAML(sc *scope, p *plan, id ecs.EntityID, node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("failed to decode binding element: expected mapping, got %s", yamlKind(node))
	}
	present := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		present[node.Content[i].Value] = true
	}
	for _, f := range p.fields {
		if f.skip || f.kind != fieldComponent {
			continue
		}
		if !present[f.wireYAML] {
			return &Error{Err: ErrMissingField, Entity: id, Field: f.wireYAML}
		}
	}
	bp := reflect.New(p.typ)
	if err := node.Decode(bp.Interface()); err != nil {
		return fmt.Errorf("failed to decode binding element: %w", err)
	}
	return applyLens(sc, p, id, bp.Elem())
}

// applyLens moves a decoded binding value onto entity id: component fields
// are inserted into the world by pointer, projection fields apply their own
// side effects (spawning children, binding tokens, loading assets).
func applyLens(sc *scope, p *plan, id ecs.EntityID, bv reflect.Value) error {
	for _, f := range p.fields {
		if f.skip {
			continue
		}
		fv := bv.Field(f.index)
		switch f.kind {
		case fieldComponent:
			if err := sc.world.InsertRaw(id, f.typ, fv.Addr().Interface()); err != nil {
				return fieldErr(id, f.name, err)
			}
		case fieldProjection:
			if err := fv.Addr().Interface().(projection).applyTo(sc, id); err != nil {
				return fieldErr(id, f.name, err)
			}
		}
	}
	return nil
}

func yamlKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
