package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, raw string) Payload {
	t.Helper()
	p, err := Decode([]byte(raw))
	require.NoError(t, err)
	return p
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"object", `{"event":"USER_CREATED"}`, false},
		{"empty object", `{}`, false},
		{"array", `[1,2]`, true},
		{"string", `"hello"`, true},
		{"null", `null`, true},
		{"invalid", `{"event":`, true},
		{"trailing data", `{"a":1} {"b":2}`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDecode_NotObject(t *testing.T) {
	_, err := Decode([]byte(`[]`))
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestDecode_KeepsNumberText(t *testing.T) {
	p := mustDecode(t, `{"user_id": 12345678901234567890}`)
	s, ok := p.String("user_id")
	require.True(t, ok)
	assert.Equal(t, "12345678901234567890", s)
}

func TestLookup_Truthiness(t *testing.T) {
	p := mustDecode(t, `{
		"empty": "",
		"null": null,
		"zero": 0,
		"false": false,
		"list": [],
		"obj": {},
		"name": "Ana",
		"flag": true,
		"amount": 50,
		"ip_info": {"city": "São Paulo", "ip": ""}
	}`)

	absent := [][]string{
		{"missing"}, {"empty"}, {"null"}, {"zero"}, {"false"}, {"list"}, {"obj"},
		{"ip_info", "ip"}, {"ip_info", "missing"}, {"name", "nested"}, {},
	}
	for _, path := range absent {
		_, ok := p.Lookup(path...)
		assert.False(t, ok, "expected %v to be absent", path)
	}

	present := [][]string{{"name"}, {"flag"}, {"amount"}, {"ip_info"}, {"ip_info", "city"}}
	for _, path := range present {
		_, ok := p.Lookup(path...)
		assert.True(t, ok, "expected %v to be present", path)
	}
}

func TestString(t *testing.T) {
	p := Payload{
		"s":     "text",
		"num":   json.Number("42"),
		"float": 1.5,
		"bool":  true,
		"obj":   map[string]any{"a": "b"},
	}

	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{"s", "text", true},
		{"num", "42", true},
		{"float", "1.5", true},
		{"bool", "true", true},
		{"obj", "", false},
		{"missing", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := p.String(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFirstString(t *testing.T) {
	p := mustDecode(t, `{"user_email": "b@c.com", "email": "", "ip_info": {"city_normalized": "saopaulo"}}`)

	got, ok := p.FirstString(P("email"), P("user_email"))
	require.True(t, ok)
	assert.Equal(t, "b@c.com", got)

	got, ok = p.FirstString(P("city"), P("ip_info", "city_normalized"), P("ip_info", "city"))
	require.True(t, ok)
	assert.Equal(t, "saopaulo", got)

	_, ok = p.FirstString(P("phone"), P("user_phone"))
	assert.False(t, ok)
}

func TestFirst(t *testing.T) {
	p := mustDecode(t, `{"logged_at": 1700000000}`)

	v, ok := p.First(P("created_at"), P("logged_at"))
	require.True(t, ok)
	assert.Equal(t, json.Number("1700000000"), v)
}

func TestFloat(t *testing.T) {
	p := mustDecode(t, `{"amount": 50, "str": "12.5", "bad": "abc", "list": [1]}`)

	f, ok, err := p.Float("amount")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 50.0, f)

	f, ok, err = p.Float("str")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 12.5, f)

	_, ok, err = p.Float("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = p.Float("bad")
	assert.Error(t, err)

	_, _, err = p.Float("list")
	assert.Error(t, err)
}

func TestPathString(t *testing.T) {
	assert.Equal(t, "ip_info.city", P("ip_info", "city").String())
}
