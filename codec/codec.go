// Package codec defines the byte-level serialization contract the lens layer
// delegates to. A codec owns the wire format and nothing else: it receives
// fully shaped Go values and returns bytes, or the reverse. The shipped
// codecs are JSON and YAML; any implementation that honors the marshal
// contracts of encoding/json or yaml.v3 can drive the lens types.
package codec

// Codec translates between Go values and bytes in one named format.
type Codec interface {
	// Name identifies the format, e.g. "json". Stored save slots record it
	// so a payload is never decoded with the wrong codec.
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// AnyDecoder is implemented by self-describing codecs: formats able to
// present a payload as untyped Go values without knowing its shape in
// advance. Decoding an untagged polymorphic value requires this capability.
type AnyDecoder interface {
	DecodeAny(data []byte) (any, error)
}
