package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyPath(t *testing.T) {
	tests := []struct {
		input   string
		want    KeyPath
		wantErr bool
	}{
		{input: "server", want: KeyPath{"server"}},
		{input: "twilio.fromNumber", want: KeyPath{"twilio", "fromNumber"}},
		{input: "notify.irc.use_tls", want: KeyPath{"notify", "irc", "use_tls"}},
		{input: "llm.fall-backs", want: KeyPath{"llm", "fall-backs"}},
		{input: "", wantErr: true},
		{input: "  ", wantErr: true},
		{input: "server..port", wantErr: true},
		{input: ".server", wantErr: true},
		{input: "server.", wantErr: true},
		{input: "server.po rt", wantErr: true},
		{input: "a.$b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKeyPath(tt.input)
			if tt.wantErr {
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestKeyPathGet(t *testing.T) {
	root := map[string]any{
		"server": map[string]any{
			"port":   5000,
			"twilio": map[string]any{"authToken": "tok"},
		},
		"simple": "value",
	}
	tests := []struct {
		name string
		key  KeyPath
		want any
		ok   bool
	}{
		{"nested", KeyPath{"server", "port"}, 5000, true},
		{"deep", KeyPath{"server", "twilio", "authToken"}, "tok", true},
		{"top level", KeyPath{"simple"}, "value", true},
		{"missing", KeyPath{"nope"}, nil, false},
		{"missing nested", KeyPath{"server", "nope"}, nil, false},
		{"through a scalar", KeyPath{"simple", "sub"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := tt.key.Get(root)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestKeyPathSet(t *testing.T) {
	root := map[string]any{
		"server": map[string]any{"port": 5000},
		"scalar": "x",
	}

	KeyPath{"server", "port"}.Set(root, 9999)
	KeyPath{"a", "b", "c"}.Set(root, "deep")
	KeyPath{"scalar", "port"}.Set(root, 8080)
	KeyPath{"version"}.Set(root, "1.0.0")
	KeyPath{}.Set(root, "ignored")

	for key, want := range map[string]any{
		"server.port": 9999,
		"a.b.c":       "deep",
		"scalar.port": 8080,
		"version":     "1.0.0",
	} {
		k, err := ParseKeyPath(key)
		require.NoError(t, err)
		v, ok := k.Get(root)
		assert.True(t, ok, key)
		assert.Equal(t, want, v, key)
	}
}

func TestKeyPathUnset(t *testing.T) {
	root := map[string]any{
		"server": map[string]any{"port": 5000, "authToken": "lan"},
		"scalar": "x",
	}

	assert.True(t, KeyPath{"server", "port"}.Unset(root))
	_, found := KeyPath{"server", "port"}.Get(root)
	assert.False(t, found)
	v, found := KeyPath{"server", "authToken"}.Get(root)
	assert.True(t, found)
	assert.Equal(t, "lan", v)

	assert.False(t, KeyPath{"server", "port"}.Unset(root), "already gone")
	assert.False(t, KeyPath{"a", "b"}.Unset(root))
	assert.False(t, KeyPath{"scalar", "port"}.Unset(root))
	assert.False(t, KeyPath{}.Unset(root))
}
