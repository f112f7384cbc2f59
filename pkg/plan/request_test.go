package plan

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamTruthy(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`null`, false},
		{`""`, false},
		{`0`, false},
		{`0.0`, false},
		{`-0`, false},
		{`false`, false},
		{`true`, true},
		{`6`, true},
		{`"6"`, true},
		{`"0"`, true},
		{`" "`, true},
		{`[]`, true},
		{`{}`, true},
		{`-1`, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var p Param
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &p))
			assert.Equal(t, tt.want, p.Truthy())
		})
	}

	assert.False(t, Param{}.Truthy(), "absent field")
}

func TestParamString(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`6`, "6"},
		{`6.5`, "6.5"},
		{`1e2`, "100"},
		{`"seis"`, "seis"},
		{`"conciencia \"fonológica\""`, `conciencia "fonológica"`},
		{`"<b>&</b>"`, "<b>&</b>"},
		{`true`, "true"},
		{`[1, 2]`, "[1,2]"},
		{`{"a": 1}`, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var p Param
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &p))
			assert.Equal(t, tt.want, p.String())
		})
	}
}

func TestNewParam(t *testing.T) {
	assert.Equal(t, "4", NewParam(4).String())
	assert.Equal(t, "rimas", NewParam("rimas").String())
	assert.False(t, NewParam("").Truthy())
}

func TestPlanRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		missing string
	}{
		{"complete", `{"age":6,"sessions":4,"objective":"rimas"}`, ""},
		{"string numbers", `{"age":"6","sessions":"4","objective":"rimas"}`, ""},
		{"absent age", `{"sessions":4,"objective":"rimas"}`, "age"},
		{"null sessions", `{"age":6,"sessions":null,"objective":"rimas"}`, "sessions"},
		{"empty objective", `{"age":6,"sessions":4,"objective":""}`, "objective"},
		{"zero age", `{"age":0,"sessions":4,"objective":"rimas"}`, "age"},
		{"empty body", `{}`, "age, sessions, objective"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req PlanRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			err := req.Validate()
			if tt.missing == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
			assert.Contains(t, err.Error(), "missing "+tt.missing)
		})
	}
}
