package codec

import "encoding/json"

// JSON encodes via encoding/json. The zero value emits compact output; set
// Indent for readable saves.
type JSON struct {
	Indent string
}

func (JSON) Name() string { return "json" }

func (c JSON) Marshal(v any) ([]byte, error) {
	if c.Indent != "" {
		return json.MarshalIndent(v, "", c.Indent)
	}
	return json.Marshal(v)
}

func (JSON) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSON) DecodeAny(data []byte) (any, error) {
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
