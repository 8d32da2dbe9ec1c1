// Package serializer provides the pluggable codec used to store attribute
// snapshots and changesets. Codecs must round-trip attribute maps and
// changesets including nil, booleans, numbers, strings and UTC instants;
// whole-second timestamp precision must survive, sub-second precision is
// preserved where the codec allows.
package serializer

import "fmt"

// Serializer encodes and decodes values to and from their storable form.
type Serializer interface {
	Dump(v any) ([]byte, error)
	Load(data []byte, out any) error
}

// ByName resolves a codec from a configuration string.
func ByName(name string) (Serializer, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "yaml":
		return YAML{}, nil
	default:
		return nil, fmt.Errorf("unknown serializer %q", name)
	}
}
