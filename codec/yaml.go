package codec

import "gopkg.in/yaml.v3"

// YAML encodes via yaml.v3.
type YAML struct{}

func (YAML) Name() string { return "yaml" }

func (YAML) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (YAML) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}

func (YAML) DecodeAny(data []byte) (any, error) {
	var out any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
