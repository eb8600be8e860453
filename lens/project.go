package lens

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/worldlens/ecs"
)

// projection is the contract binding fields other than plain components
// satisfy. fillFrom computes the field's wire state from the world during a
// save; applyTo pushes the decoded state back into the world during a load.
// Both run inside an installed scope.
type projection interface {
	fillFrom(sc *scope, id ecs.EntityID) error
	applyTo(sc *scope, id ecs.EntityID) error
}

// Maybe projects an optional component. A present component serializes as
// its value and null marks absence; loading null simply skips the insert.
type Maybe[T any] struct {
	Value *T
}

func (m *Maybe[T]) fillFrom(sc *scope, id ecs.EntityID) error {
	if ptr, ok := ecs.Get[T](sc.world, id); ok {
		v := *ptr
		m.Value = &v
	}
	return nil
}

func (m *Maybe[T]) applyTo(sc *scope, id ecs.EntityID) error {
	if m.Value == nil {
		return nil
	}
	return sc.world.InsertRaw(id, ecs.CompType[T](), m.Value)
}

func (m Maybe[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Value)
}

func (m *Maybe[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		m.Value = nil
		return nil
	}
	m.Value = new(T)
	return json.Unmarshal(data, m.Value)
}

func (m Maybe[T]) MarshalYAML() (any, error) {
	if m.Value == nil {
		return nil, nil
	}
	return m.Value, nil
}

func (m *Maybe[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		m.Value = nil
		return nil
	}
	m.Value = new(T)
	return node.Decode(m.Value)
}

// ChildVec projects the entity's children that match child binding C, in
// attachment order. Loading spawns one child per element and attaches it
// to the enclosing entity.
type ChildVec[C any] struct {
	Items []C

	rawJSON []json.RawMessage
	rawYAML []*yaml.Node
}

func (cv *ChildVec[C]) fillFrom(sc *scope, id ecs.EntityID) error {
	p, err := planFor(reflect.TypeFor[C]())
	if err != nil {
		return err
	}
	for _, child := range matchingChildren(sc, id, p) {
		bv, err := fillLens(sc, p, child)
		if err != nil {
			return err
		}
		cv.Items = append(cv.Items, *bv.Interface().(*C))
	}
	return nil
}

func (cv *ChildVec[C]) applyTo(sc *scope, id ecs.EntityID) error {
	p, err := planFor(reflect.TypeFor[C]())
	if err != nil {
		return err
	}
	for _, raw := range cv.rawJSON {
		if _, err := spawnChildJSON(sc, p, id, raw); err != nil {
			return err
		}
	}
	for _, node := range cv.rawYAML {
		if _, err := spawnChildYAML(sc, p, id, node); err != nil {
			return err
		}
	}
	return nil
}

func (cv ChildVec[C]) MarshalJSON() ([]byte, error) {
	if cv.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(cv.Items)
}

func (cv *ChildVec[C]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &cv.rawJSON)
}

func (cv ChildVec[C]) MarshalYAML() (any, error) {
	if cv.Items == nil {
		return []C{}, nil
	}
	return cv.Items, nil
}

func (cv *ChildVec[C]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("failed to decode children: expected sequence, got %s", yamlKind(node))
	}
	cv.rawYAML = node.Content
	return nil
}

// Child projects exactly one matching child entity. Saving fails when zero
// or several children match; loading requires the element to be present and
// spawns the one child.
type Child[C any] struct {
	Item C

	gotJSON json.RawMessage
	gotYAML *yaml.Node
}

func (c *Child[C]) fillFrom(sc *scope, id ecs.EntityID) error {
	p, err := planFor(reflect.TypeFor[C]())
	if err != nil {
		return err
	}
	matches := matchingChildren(sc, id, p)
	switch len(matches) {
	case 0:
		return &Error{Err: ErrNoMatchingChild, Entity: id}
	case 1:
	default:
		return &Error{Err: ErrMultipleChildren, Entity: id, Detail: fmt.Sprintf("%d matches", len(matches))}
	}
	bv, err := fillLens(sc, p, matches[0])
	if err != nil {
		return err
	}
	c.Item = *bv.Interface().(*C)
	return nil
}

func (c *Child[C]) applyTo(sc *scope, id ecs.EntityID) error {
	p, err := planFor(reflect.TypeFor[C]())
	if err != nil {
		return err
	}
	switch {
	case c.gotJSON != nil:
		_, err = spawnChildJSON(sc, p, id, c.gotJSON)
	case c.gotYAML != nil:
		_, err = spawnChildYAML(sc, p, id, c.gotYAML)
	default:
		err = &Error{Err: ErrMissingField, Entity: id}
	}
	return err
}

func (c Child[C]) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Item)
}

func (c *Child[C]) UnmarshalJSON(data []byte) error {
	c.gotJSON = append(json.RawMessage(nil), data...)
	return nil
}

func (c Child[C]) MarshalYAML() (any, error) {
	return c.Item, nil
}

func (c *Child[C]) UnmarshalYAML(node *yaml.Node) error {
	c.gotYAML = node
	return nil
}

// ChildMap projects matching children keyed by a component of string kind
// each child carries. Keys serialize in sorted order; loading spawns one
// child per entry, inserts the key component, and attaches the child.
type ChildMap[K ~string, C any] struct {
	Items map[K]C

	rawJSON map[string]json.RawMessage
	rawYAML map[string]*yaml.Node
	order   []string
}

func (cm *ChildMap[K, C]) fillFrom(sc *scope, id ecs.EntityID) error {
	p, err := planFor(reflect.TypeFor[C]())
	if err != nil {
		return err
	}
	cm.Items = make(map[K]C)
	for _, child := range matchingChildren(sc, id, p) {
		key, ok := ecs.Get[K](sc.world, child)
		if !ok {
			return &Error{Err: ErrMissingComponent, Entity: child, Detail: "child map key component"}
		}
		if _, dup := cm.Items[*key]; dup {
			return &Error{Err: ErrDuplicateChildKey, Entity: child, Key: string(*key)}
		}
		bv, err := fillLens(sc, p, child)
		if err != nil {
			return err
		}
		cm.Items[*key] = *bv.Interface().(*C)
	}
	return nil
}

func (cm *ChildMap[K, C]) applyTo(sc *scope, id ecs.EntityID) error {
	p, err := planFor(reflect.TypeFor[C]())
	if err != nil {
		return err
	}
	for _, key := range cm.order {
		var child ecs.EntityID
		if raw, ok := cm.rawJSON[key]; ok {
			child, err = spawnChildJSON(sc, p, id, raw)
		} else {
			child, err = spawnChildYAML(sc, p, id, cm.rawYAML[key])
		}
		if err != nil {
			return err
		}
		if err := ecs.Insert(sc.world, child, K(key)); err != nil {
			return err
		}
	}
	return nil
}

func (cm ChildMap[K, C]) MarshalJSON() ([]byte, error) {
	if cm.Items == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(cm.Items)
}

func (cm *ChildMap[K, C]) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &cm.rawJSON); err != nil {
		return err
	}
	cm.order = make([]string, 0, len(cm.rawJSON))
	for key := range cm.rawJSON {
		cm.order = append(cm.order, key)
	}
	sort.Strings(cm.order)
	return nil
}

func (cm ChildMap[K, C]) MarshalYAML() (any, error) {
	if cm.Items == nil {
		return map[K]C{}, nil
	}
	return cm.Items, nil
}

func (cm *ChildMap[K, C]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("failed to decode child map: expected mapping, got %s", yamlKind(node))
	}
	cm.rawYAML = make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if _, dup := cm.rawYAML[key]; dup {
			return &Error{Err: ErrDuplicateChildKey, Key: key}
		}
		cm.rawYAML[key] = node.Content[i+1]
		cm.order = append(cm.order, key)
	}
	sort.Strings(cm.order)
	return nil
}

// EntityID projects the entity's reference token. Including it in a binding
// defines the token other entities may point at through EntityRef fields;
// tokens are stable within one session, not across sessions.
type EntityID struct {
	Token uint64

	set bool
}

func (e *EntityID) fillFrom(sc *scope, id ecs.EntityID) error {
	e.Token = sc.refs.tokenFor(id)
	e.set = true
	return nil
}

func (e *EntityID) applyTo(sc *scope, id ecs.EntityID) error {
	if !e.set {
		return nil
	}
	return sc.refs.bind(e.Token, id)
}

func (e EntityID) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Token)
}

func (e *EntityID) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &e.Token); err != nil {
		return err
	}
	e.set = true
	return nil
}

func (e EntityID) MarshalYAML() (any, error) {
	return e.Token, nil
}

func (e *EntityID) UnmarshalYAML(node *yaml.Node) error {
	if err := node.Decode(&e.Token); err != nil {
		return err
	}
	e.set = true
	return nil
}

// EntityRef serializes a pointer to another entity as that entity's session
// token. It works as a component field type anywhere inside component data,
// or as a component in its own right. The referenced entity must define its
// token through an EntityID field somewhere in the same save, and loading
// patches the real entity in after the whole payload has been decoded.
type EntityRef struct {
	Entity ecs.EntityID
}

func (r EntityRef) MarshalJSON() ([]byte, error) {
	sc, err := requireScope()
	if err != nil {
		return nil, err
	}
	return json.Marshal(sc.refs.tokenFor(r.Entity))
}

func (r *EntityRef) UnmarshalJSON(data []byte) error {
	sc, err := requireScope()
	if err != nil {
		return err
	}
	var tok uint64
	if err := json.Unmarshal(data, &tok); err != nil {
		return err
	}
	sc.refs.deferPatch(&r.Entity, tok)
	return nil
}

func (r EntityRef) MarshalYAML() (any, error) {
	sc, err := requireScope()
	if err != nil {
		return nil, err
	}
	return sc.refs.tokenFor(r.Entity), nil
}

func (r *EntityRef) UnmarshalYAML(node *yaml.Node) error {
	sc, err := requireScope()
	if err != nil {
		return err
	}
	var tok uint64
	if err := node.Decode(&tok); err != nil {
		return err
	}
	sc.refs.deferPatch(&r.Entity, tok)
	return nil
}

// PathHandle serializes an asset handle as its path string. The asset
// payload itself stays out of the save; loading reconstructs the handle
// without touching the asset store.
type PathHandle[A any] struct {
	Handle ecs.Handle[A]
}

func (h PathHandle[A]) MarshalJSON() ([]byte, error) {
	if h.Handle.Path == "" {
		return nil, &Error{Err: ErrPathlessHandle}
	}
	return json.Marshal(h.Handle.Path)
}

func (h *PathHandle[A]) UnmarshalJSON(data []byte) error {
	sc, err := requireScope()
	if err != nil {
		return err
	}
	var path string
	if err := json.Unmarshal(data, &path); err != nil {
		return err
	}
	h.Handle = ecs.AcquireHandle[A](sc.world, path)
	return nil
}

func (h PathHandle[A]) MarshalYAML() (any, error) {
	if h.Handle.Path == "" {
		return nil, &Error{Err: ErrPathlessHandle}
	}
	return h.Handle.Path, nil
}

func (h *PathHandle[A]) UnmarshalYAML(node *yaml.Node) error {
	sc, err := requireScope()
	if err != nil {
		return err
	}
	var path string
	if err := node.Decode(&path); err != nil {
		return err
	}
	h.Handle = ecs.AcquireHandle[A](sc.world, path)
	return nil
}

// ContentHandle inlines the asset the handle points at. Saving writes the
// asset payload instead of the path; loading stores the payload under a
// fresh generated path and hands back a handle to it.
type ContentHandle[A any] struct {
	Handle ecs.Handle[A]
}

func (h ContentHandle[A]) MarshalJSON() ([]byte, error) {
	asset, err := h.asset()
	if err != nil {
		return nil, err
	}
	return json.Marshal(asset)
}

func (h *ContentHandle[A]) UnmarshalJSON(data []byte) error {
	var asset A
	if err := json.Unmarshal(data, &asset); err != nil {
		return err
	}
	return h.store(asset)
}

func (h ContentHandle[A]) MarshalYAML() (any, error) {
	return h.asset()
}

func (h *ContentHandle[A]) UnmarshalYAML(node *yaml.Node) error {
	var asset A
	if err := node.Decode(&asset); err != nil {
		return err
	}
	return h.store(asset)
}

func (h ContentHandle[A]) asset() (*A, error) {
	sc, err := requireScope()
	if err != nil {
		return nil, err
	}
	if h.Handle.Path == "" {
		return nil, &Error{Err: ErrPathlessHandle}
	}
	asset, ok := ecs.AssetOf(sc.world, h.Handle)
	if !ok {
		return nil, &Error{Err: ErrAssetMissing, Detail: h.Handle.Path}
	}
	return asset, nil
}

func (h *ContentHandle[A]) store(asset A) error {
	sc, err := requireScope()
	if err != nil {
		return err
	}
	path := "inline/" + uuid.NewString()
	h.Handle = ecs.AddAsset(sc.world, path, asset)
	return nil
}

func matchingChildren(sc *scope, parent ecs.EntityID, p *plan) []ecs.EntityID {
	var out []ecs.EntityID
	for _, child := range sc.world.Children(parent) {
		if p.filter.Match(sc.world, child) {
			out = append(out, child)
		}
	}
	return out
}

func spawnChildJSON(sc *scope, p *plan, parent ecs.EntityID, raw json.RawMessage) (ecs.EntityID, error) {
	child := sc.world.Spawn()
	if err := loadEntityJSON(sc, p, child, raw); err != nil {
		return 0, err
	}
	if err := sc.world.SetParent(child, parent); err != nil {
		return 0, err
	}
	return child, nil
}

func spawnChildYAML(sc *scope, p *plan, parent ecs.EntityID, node *yaml.Node) (ecs.EntityID, error) {
	child := sc.world.Spawn()
	if err := loadEntityYAML(sc, p, child, node); err != nil {
		return 0, err
	}
	if err := sc.world.SetParent(child, parent); err != nil {
		return 0, err
	}
	return child, nil
}

var (
	_ projection = (*Maybe[int])(nil)
	_ projection = (*ChildVec[struct{}])(nil)
	_ projection = (*Child[struct{}])(nil)
	_ projection = (*ChildMap[string, struct{}])(nil)
	_ projection = (*EntityID)(nil)
)
