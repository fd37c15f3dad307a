package store

import (
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Encode converts a typed value into a Record using its json tags.
func Encode(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Decode fills out from rec. Text fields (statuses, timestamps) go through
// their UnmarshalText methods and loosely typed numbers are accepted.
func Decode(rec Record, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(rec); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// normalize roundtrips rec through JSON so that every backend hands out the
// same value shapes (float64 numbers, []any slices, nested maps).
func normalize(rec Record) (Record, error) {
	if rec == nil {
		return Record{}, nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var out Record
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Normalize is exported for backends outside this package.
func Normalize(rec Record) (Record, error) { return normalize(rec) }

// Patch applies fields onto base: nil removes a key, anything else replaces it.
func Patch(base, fields Record) Record {
	if base == nil {
		base = Record{}
	}
	for k, v := range fields {
		if v == nil {
			delete(base, k)
			continue
		}
		base[k] = v
	}
	return base
}
