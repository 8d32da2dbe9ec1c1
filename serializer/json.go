package serializer

import (
	"encoding/json"
	"fmt"
)

// JSON is the default codec. Time values marshal as RFC 3339 with
// nanosecond precision, so sub-second precision survives the round trip.
type JSON struct{}

func (JSON) Dump(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json dump: %w", err)
	}
	return data, nil
}

func (JSON) Load(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("json load: %w", err)
	}
	return nil
}
