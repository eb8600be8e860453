package lens

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/worldlens/codec"
	"github.com/zeusync/worldlens/ecs"
	"github.com/zeusync/worldlens/pkg/generic"
)

var bufPool = generic.NewBufferPool()

// Batch composes several bindings and resources into one save. The payload
// is a single map whose keys appear in declaration order; each binding
// member holds its entity array, each resource member its value. Loading
// rejects keys the batch does not declare and requires every declared key
// unless it was marked Optional.
type Batch struct {
	members []*member
	byKey   map[string]*member
}

type member struct {
	key      string
	optional bool
	saveJSON func(sc *scope) (json.RawMessage, error)
	loadJSON func(sc *scope, raw json.RawMessage) error
	saveYAML func(sc *scope) (any, error)
	loadYAML func(sc *scope, node *yaml.Node) error
	despawn  func(w *ecs.World) (int, error)
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{byKey: make(map[string]*member)}
}

// Add registers binding B as a batch member under key. An empty key derives
// one from the binding type's name, lowercased.
func Add[B any](b *Batch, key string) error {
	key, err := memberKey(key, reflect.TypeFor[B]())
	if err != nil {
		return err
	}
	return b.add(&member{
		key: key,
		saveJSON: func(sc *scope) (json.RawMessage, error) {
			views, err := collectViews[B](sc)
			if err != nil {
				return nil, err
			}
			return json.Marshal(views)
		},
		loadJSON: func(sc *scope, raw json.RawMessage) error {
			return loadViewsJSON[B](sc, raw)
		},
		saveYAML: func(sc *scope) (any, error) {
			return collectViews[B](sc)
		},
		loadYAML: func(sc *scope, node *yaml.Node) error {
			return loadViewsYAML[B](sc, node)
		},
		despawn: func(w *ecs.World) (int, error) {
			return Despawn[B](w)
		},
	})
}

// AddResource registers world resource R as a batch member under key. The
// resource serializes as a single value rather than an entity array.
func AddResource[R any](b *Batch, key string) error {
	key, err := memberKey(key, reflect.TypeFor[R]())
	if err != nil {
		return err
	}
	return b.add(&member{
		key: key,
		saveJSON: func(sc *scope) (json.RawMessage, error) {
			res, err := resourceOf[R](sc)
			if err != nil {
				return nil, err
			}
			return json.Marshal(res)
		},
		loadJSON: func(sc *scope, raw json.RawMessage) error {
			res := new(R)
			if err := json.Unmarshal(raw, res); err != nil {
				return err
			}
			return sc.world.SetResourceRaw(ecs.CompType[R](), res)
		},
		saveYAML: func(sc *scope) (any, error) {
			return resourceOf[R](sc)
		},
		loadYAML: func(sc *scope, node *yaml.Node) error {
			res := new(R)
			if err := node.Decode(res); err != nil {
				return err
			}
			return sc.world.SetResourceRaw(ecs.CompType[R](), res)
		},
	})
}

// Optional marks the member under key as tolerating absence on load.
func (b *Batch) Optional(key string) error {
	m, ok := b.byKey[key]
	if !ok {
		return &Error{Err: ErrUnknownBatchKey, Key: key}
	}
	m.optional = true
	return nil
}

// Keys returns the member keys in declaration order.
func (b *Batch) Keys() []string {
	out := make([]string, len(b.members))
	for i, m := range b.members {
		out[i] = m.key
	}
	return out
}

// Save serializes the whole batch from w through c.
func (b *Batch) Save(w *ecs.World, c codec.Codec) ([]byte, error) {
	var out []byte
	err := scopedCall(w, c, func() error {
		data, err := c.Marshal(b)
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

// Load decodes a batch payload into w through c. Members load in
// declaration order regardless of the order keys appear in the input.
func (b *Batch) Load(w *ecs.World, c codec.Codec, data []byte) error {
	return scopedCall(w, c, func() error {
		return c.Unmarshal(data, b)
	})
}

// Despawn removes every entity matching any binding member's filter and
// reports how many matched. Resource members are untouched.
func (b *Batch) Despawn(w *ecs.World) (int, error) {
	total := 0
	for _, m := range b.members {
		if m.despawn == nil {
			continue
		}
		n, err := m.despawn(w)
		total += n
		if err != nil {
			return total, keyErr(m.key, err)
		}
	}
	return total, nil
}

// MarshalJSON writes members in declaration order. Assembled by hand
// because encoding/json orders map keys alphabetically.
func (b *Batch) MarshalJSON() ([]byte, error) {
	sc, err := requireScope()
	if err != nil {
		return nil, err
	}
	buf := bufPool.Get()
	buf.Reset()
	defer bufPool.Put(buf)
	buf.WriteByte('{')
	for i, m := range b.members {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		raw, err := m.saveJSON(sc)
		if err != nil {
			return nil, keyErr(m.key, err)
		}
		buf.Write(raw)
	}
	buf.WriteByte('}')
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func (b *Batch) UnmarshalJSON(data []byte) error {
	sc, err := requireScope()
	if err != nil {
		return err
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to decode batch map: %w", err)
	}
	present := make([]string, 0, len(entries))
	for key := range entries {
		present = append(present, key)
	}
	sort.Strings(present)
	for _, key := range present {
		if _, ok := b.byKey[key]; !ok {
			return &Error{Err: ErrUnknownBatchKey, Key: key}
		}
	}
	for _, m := range b.members {
		raw, ok := entries[m.key]
		if !ok {
			if m.optional {
				continue
			}
			return &Error{Err: ErrMissingBatchKey, Key: m.key}
		}
		if err := m.loadJSON(sc, raw); err != nil {
			return keyErr(m.key, err)
		}
	}
	return nil
}

// MarshalYAML builds the document as an explicit mapping node so member
// order survives; values are encoded while the scope is still installed.
func (b *Batch) MarshalYAML() (any, error) {
	sc, err := requireScope()
	if err != nil {
		return nil, err
	}
	doc := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, m := range b.members {
		v, err := m.saveYAML(sc)
		if err != nil {
			return nil, keyErr(m.key, err)
		}
		valNode := new(yaml.Node)
		if err := valNode.Encode(v); err != nil {
			return nil, keyErr(m.key, err)
		}
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: m.key}
		doc.Content = append(doc.Content, keyNode, valNode)
	}
	return doc, nil
}

func (b *Batch) UnmarshalYAML(node *yaml.Node) error {
	sc, err := requireScope()
	if err != nil {
		return err
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("failed to decode batch map: expected mapping, got %s", yamlKind(node))
	}
	entries := make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if _, ok := b.byKey[key]; !ok {
			return &Error{Err: ErrUnknownBatchKey, Key: key}
		}
		if _, dup := entries[key]; dup {
			return &Error{Err: ErrDuplicateBatchKey, Key: key}
		}
		entries[key] = node.Content[i+1]
	}
	for _, m := range b.members {
		val, ok := entries[m.key]
		if !ok {
			if m.optional {
				continue
			}
			return &Error{Err: ErrMissingBatchKey, Key: m.key}
		}
		if err := m.loadYAML(sc, val); err != nil {
			return keyErr(m.key, err)
		}
	}
	return nil
}

func (b *Batch) add(m *member) error {
	if _, dup := b.byKey[m.key]; dup {
		return &Error{Err: ErrDuplicateBatchKey, Key: m.key}
	}
	b.members = append(b.members, m)
	b.byKey[m.key] = m
	return nil
}

func memberKey(key string, t reflect.Type) (string, error) {
	if key != "" {
		return key, nil
	}
	name := strings.ToLower(t.Name())
	if name == "" {
		return "", fmt.Errorf("cannot derive a batch key for %s", t)
	}
	return name, nil
}

func resourceOf[R any](sc *scope) (*R, error) {
	res, ok := ecs.Resource[R](sc.world)
	if !ok {
		return nil, &Error{Err: ErrMissingResource, Detail: ecs.CompType[R]().String()}
	}
	return res, nil
}
