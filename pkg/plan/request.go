package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Param is a request field exactly as the client sent it. Any JSON type is accepted;
// validation is a plain existence check, not a type or range check.
type Param struct {
	raw json.RawMessage
}

// NewParam builds a Param from a Go value. Used by the CLI and tests.
func NewParam(v any) Param {
	raw, err := json.Marshal(v)
	if err != nil {
		return Param{}
	}
	return Param{raw: raw}
}

// UnmarshalJSON stores the raw value, including an explicit null.
func (p *Param) UnmarshalJSON(data []byte) error {
	p.raw = append(p.raw[:0], data...)
	return nil
}

// MarshalJSON writes the value back unchanged. An unset Param encodes as null.
func (p Param) MarshalJSON() ([]byte, error) {
	if len(p.raw) == 0 {
		return []byte("null"), nil
	}
	return p.raw, nil
}

// Truthy reports whether the value counts as present: absent, null, "", 0 and false do not.
func (p Param) Truthy() bool {
	raw := bytes.TrimSpace(p.raw)
	if len(raw) == 0 {
		return false
	}
	switch raw[0] {
	case 'n':
		return false
	case 'f':
		return false
	case 't':
		return true
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		return s != ""
	case '{', '[':
		return true
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return false
		}
		return f != 0
	}
}

// String is the text substituted into the prompt. Strings appear verbatim, numbers in
// shortest decimal form, anything else as compact JSON.
func (p Param) String() string {
	raw := bytes.TrimSpace(p.raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			return buf.String()
		}
	case 'n', 't', 'f':
	default:
		if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return string(raw)
}

// PlanRequest is the body of POST /generate-plan.
type PlanRequest struct {
	Age       Param `json:"age"`
	Sessions  Param `json:"sessions"`
	Objective Param `json:"objective"`
}

// Validate returns ErrInvalidRequest naming every field that is missing.
func (r *PlanRequest) Validate() error {
	var missing []string
	if !r.Age.Truthy() {
		missing = append(missing, "age")
	}
	if !r.Sessions.Truthy() {
		missing = append(missing, "sessions")
	}
	if !r.Objective.Truthy() {
		missing = append(missing, "objective")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}
