package memory

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Buckets lists the snapshot partitions persisted by durable backends, one
// row per bucket.
var Buckets = []string{"tables", "columns", "pools", "permissions"}

// EncodeBuckets serialises every bucket of the snapshot.
func (s Snapshot) EncodeBuckets() (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		var (
			data []byte
			err  error
		)
		switch bucket {
		case "tables":
			data, err = json.Marshal(s.Tables)
		case "columns":
			data, err = json.Marshal(s.Columns)
		case "pools":
			data, err = json.Marshal(s.Pools)
		case "permissions":
			data, err = json.Marshal(s.Permissions)
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBucket loads one bucket payload into the snapshot. Unknown buckets
// written by other versions are ignored.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case "tables":
		target = &s.Tables
	case "columns":
		target = &s.Columns
	case "pools":
		target = &s.Pools
	case "permissions":
		target = &s.Permissions
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
