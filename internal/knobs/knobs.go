// Package knobs parses the server's transport-knob configuration blob: a
// JSON object mapping stringified knob IDs to a per-knob value. Most knobs
// carry a plain integer or boolean, normalized to a u64; a handful of
// well-known knobs carry a bespoke string format that this package knows
// how to decode.
package knobs

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/francoispqt/gojay"
)

// ID identifies a single knob. The numeric values below are the server's
// stable wire IDs, not an enumeration of every possible knob — unknown IDs
// are accepted and their value normalized generically.
type ID uint64

const (
	CCAlgorithm        ID = 1
	StartupRTTFactor   ID = 2
	AutoBackgroundMode ID = 3
)

// Pair is one decoded (id, value) entry.
type Pair struct {
	ID    ID
	Value uint64
}

// backgroundModeMultiplier packs a priority/percent pair the same way
// StartupRTTFactor packs num/den: priority*multiplier + percent.
const backgroundModeMultiplier = 100

// ccAlgorithmIDs maps a lowercased congestion-control algorithm name to its
// wire enum value, mirroring mvfst's CongestionControlType ordering.
var ccAlgorithmIDs = map[string]uint64{
	"cubic":   0,
	"newreno": 1,
	"bbr":     2,
	"bbr2":    3,
	"copa":    4,
	"none":    5,
}

// Parse decodes a transport-knob JSON blob into a deterministically
// ordered list of (id, value) pairs, sorted primarily by ID then by value.
// The root value must be a JSON object whose keys are base-10 unsigned
// integers; any malformed key, any unrecognized string-typed knob value,
// or any out-of-range bespoke value fails the whole parse.
func Parse(data []byte) ([]Pair, error) {
	var pairs []Pair

	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("knobs: root value must be a JSON object")
	}

	dec := gojay.NewDecoder(bytes.NewReader(data))
	err := dec.DecodeObject(gojay.DecodeObjectFunc(func(d *gojay.Decoder, key string) error {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return fmt.Errorf("knobs: invalid knob id %q: %w", key, err)
		}

		var raw interface{}
		if err := d.Interface(&raw); err != nil {
			return fmt.Errorf("knobs: invalid value for knob %d: %w", id, err)
		}

		value, err := normalize(ID(id), raw)
		if err != nil {
			return err
		}
		pairs = append(pairs, Pair{ID: ID(id), Value: value})
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("knobs: %w", err)
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].ID != pairs[j].ID {
			return pairs[i].ID < pairs[j].ID
		}
		return pairs[i].Value < pairs[j].Value
	})
	return pairs, nil
}

func normalize(id ID, raw interface{}) (uint64, error) {
	switch v := raw.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case float64:
		// gojay's generic decode represents every JSON number as float64.
		if v < 0 {
			return 0, fmt.Errorf("knobs: knob %d has a negative value", id)
		}
		return uint64(v), nil
	case string:
		return parseStringKnob(id, v)
	default:
		return 0, fmt.Errorf("knobs: knob %d has an unsupported value type %T", id, raw)
	}
}

func parseStringKnob(id ID, s string) (uint64, error) {
	switch id {
	case CCAlgorithm:
		enum, ok := ccAlgorithmIDs[strings.ToLower(s)]
		if !ok {
			return 0, fmt.Errorf("knobs: unknown congestion-control algorithm %q", s)
		}
		return enum, nil
	case StartupRTTFactor:
		num, den, err := parseFraction(s)
		if err != nil {
			return 0, fmt.Errorf("knobs: startup RTT factor %q: %w", s, err)
		}
		return num*100 + den, nil
	case AutoBackgroundMode:
		priority, percent, err := parsePriorityPercent(s)
		if err != nil {
			return 0, fmt.Errorf("knobs: auto background mode %q: %w", s, err)
		}
		return priority*backgroundModeMultiplier + percent, nil
	default:
		return 0, fmt.Errorf("knobs: knob %d does not accept a string value %q", id, s)
	}
}

// parseFraction parses "num/den" with 0 < num, den < 100.
func parseFraction(s string) (num, den uint64, err error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected num/den")
	}
	num, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	den, err = strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	if num == 0 || num >= 100 || den == 0 || den >= 100 {
		return 0, 0, fmt.Errorf("num and den must be in (0, 100)")
	}
	return num, den, nil
}

// parsePriorityPercent parses "priority,percent" with priority in [0,7]
// and percent in [25,100].
func parsePriorityPercent(s string) (priority, percent uint64, err error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected priority,percent")
	}
	priority, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	percent, err = strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	if priority > 7 {
		return 0, 0, fmt.Errorf("priority must be in [0, 7]")
	}
	if percent < 25 || percent > 100 {
		return 0, 0, fmt.Errorf("percent must be in [25, 100]")
	}
	return priority, percent, nil
}
