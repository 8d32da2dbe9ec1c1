package serializer

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAML is the alternative codec. ISO 8601 timestamps decode back into
// time.Time values when loading into untyped maps.
type YAML struct{}

func (YAML) Dump(v any) ([]byte, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yaml dump: %w", err)
	}
	return data, nil
}

func (YAML) Load(data []byte, out any) error {
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("yaml load: %w", err)
	}
	return nil
}
