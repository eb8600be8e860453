package lens

import (
	"encoding/json"
	"errors"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/worldlens/codec"
	"github.com/zeusync/worldlens/ecs"
	"github.com/zeusync/worldlens/typetag"
)

// registryRes holds the world's type-tag registry as an ECS resource.
type registryRes struct {
	reg *typetag.Registry
}

// RegistryOf returns w's type-tag registry, creating it on first use.
// Registrations are scoped to the world they were made against; two worlds
// never share tags.
func RegistryOf(w *ecs.World) *typetag.Registry {
	if res, ok := ecs.Resource[registryRes](w); ok {
		return res.reg
	}
	reg := typetag.NewRegistry()
	ecs.SetResource(w, registryRes{reg: reg})
	return reg
}

// RegisterTag registers concrete type T as an implementation of interface I
// under tag in w's registry.
func RegisterTag[I, T any](w *ecs.World, tag string) error {
	return typetag.Register[I, T](RegistryOf(w), tag)
}

// RegisterAny registers a parser that rebuilds I values from untagged
// generic data in w's registry, enabling AnyTagged fields for I.
func RegisterAny[I any](w *ecs.World, parse func(v any) (I, error)) error {
	return typetag.RegisterAny[I](RegistryOf(w), parse)
}

// TypeTagged serializes an interface-valued payload as a {tag, value} pair.
// The dynamic type must implement typetag.Tagged to save; loading looks the
// tag up in the world's registry and decodes the value through the factory
// registered for it.
type TypeTagged[I any] struct {
	Value I
}

type tagEnvelope struct {
	Tag   string          `json:"tag"`
	Value json.RawMessage `json:"value"`
}

func (t TypeTagged[I]) MarshalJSON() ([]byte, error) {
	tag, err := typetag.TagOf(t.Value)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(t.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tagEnvelope{Tag: tag, Value: payload})
}

func (t *TypeTagged[I]) UnmarshalJSON(data []byte) error {
	sc, err := requireScope()
	if err != nil {
		return err
	}
	var env tagEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	out, err := RegistryOf(sc.world).Decode(typetag.IfaceType[I](), env.Tag, func(v any) error {
		return json.Unmarshal(env.Value, v)
	})
	if err != nil {
		return tagErr(env.Tag, err)
	}
	t.Value = out.(I)
	return nil
}

func (t TypeTagged[I]) MarshalYAML() (any, error) {
	tag, err := typetag.TagOf(t.Value)
	if err != nil {
		return nil, err
	}
	return struct {
		Tag   string `yaml:"tag"`
		Value any    `yaml:"value"`
	}{Tag: tag, Value: t.Value}, nil
}

func (t *TypeTagged[I]) UnmarshalYAML(node *yaml.Node) error {
	sc, err := requireScope()
	if err != nil {
		return err
	}
	var env struct {
		Tag   string    `yaml:"tag"`
		Value yaml.Node `yaml:"value"`
	}
	if err := node.Decode(&env); err != nil {
		return err
	}
	out, err := RegistryOf(sc.world).Decode(typetag.IfaceType[I](), env.Tag, func(v any) error {
		return env.Value.Decode(v)
	})
	if err != nil {
		return tagErr(env.Tag, err)
	}
	t.Value = out.(I)
	return nil
}

// AnyTagged serializes the payload bare, with no tag envelope. Loading
// needs two things: a self-describing session codec (one implementing
// codec.AnyDecoder, or an encoder driving the decode directly) and an
// any-parser registered for I in the world's registry.
type AnyTagged[I any] struct {
	Value I
}

func (t AnyTagged[I]) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Value)
}

func (t *AnyTagged[I]) UnmarshalJSON(data []byte) error {
	sc, err := requireScope()
	if err != nil {
		return err
	}
	if err := requireSelfDescribing(sc); err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	out, err := RegistryOf(sc.world).DecodeAny(typetag.IfaceType[I](), v)
	if err != nil {
		return err
	}
	t.Value = out.(I)
	return nil
}

func (t AnyTagged[I]) MarshalYAML() (any, error) {
	return t.Value, nil
}

func (t *AnyTagged[I]) UnmarshalYAML(node *yaml.Node) error {
	sc, err := requireScope()
	if err != nil {
		return err
	}
	if err := requireSelfDescribing(sc); err != nil {
		return err
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	out, err := RegistryOf(sc.world).DecodeAny(typetag.IfaceType[I](), v)
	if err != nil {
		return err
	}
	t.Value = out.(I)
	return nil
}

// requireSelfDescribing gates untagged decoding on the session codec being
// able to produce generic values. A nil codec means an encoder is driving
// the decode directly, which is self-describing by construction.
func requireSelfDescribing(sc *scope) error {
	if sc.codec == nil {
		return nil
	}
	if _, ok := sc.codec.(codec.AnyDecoder); !ok {
		return &Error{Err: ErrUnsupportedFormat, Detail: sc.codec.Name()}
	}
	return nil
}

func tagErr(tag string, err error) error {
	if errors.Is(err, typetag.ErrUnknownTag) {
		return &Error{Err: ErrUnknownTypeTag, Tag: tag}
	}
	return err
}
