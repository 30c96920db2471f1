package intent

import (
	"testing"

	"github.com/soyeahso/meetbot/internal/domain"
	"github.com/stretchr/testify/assert"
)

func turns(pairs ...string) []domain.Turn {
	var out []domain.Turn
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.Turn{Role: domain.Role(pairs[i]), Text: pairs[i+1]})
	}
	return out
}

func TestExtractName(t *testing.T) {
	tests := []struct {
		name    string
		history []domain.Turn
		want    string
		ok      bool
	}{
		{
			name:    "my name is",
			history: turns("system", "prompt", "assistant", "Hi there", "user", "Hi, my name is Dana Levi."),
			want:    "Dana Levi",
			ok:      true,
		},
		{
			name:    "case insensitive phrase",
			history: turns("user", "MY NAME IS Dana and I run sales"),
			want:    "Dana",
			ok:      true,
		},
		{
			name:    "i am",
			history: turns("user", "i am Noa from Acme"),
			want:    "Noa",
			ok:      true,
		},
		{
			name:    "contraction",
			history: turns("user", "I'm Eli"),
			want:    "Eli",
			ok:      true,
		},
		{
			name:    "hebrew",
			history: turns("user", "שלום, שמי דנה"),
			want:    "דנה",
			ok:      true,
		},
		{
			name:    "hebrew phrase",
			history: turns("user", "קוראים לי Yossi"),
			want:    "Yossi",
			ok:      true,
		},
		{
			name:    "most recent wins",
			history: turns("user", "my name is Dana", "assistant", "Nice to meet you", "user", "Sorry, my name is Eve"),
			want:    "Eve",
			ok:      true,
		},
		{
			name:    "lowercase words are not names",
			history: turns("user", "I am fine thanks"),
			ok:      false,
		},
		{
			name:    "assistant turns ignored",
			history: turns("assistant", "My name is Alice", "user", "okay"),
			ok:      false,
		},
		{
			name: "outside window",
			history: turns(
				"user", "my name is Dana",
				"assistant", "a", "user", "b", "assistant", "c", "user", "d",
				"assistant", "e", "user", "f", "assistant", "g", "user", "h",
			),
			ok: false,
		},
		{
			name:    "empty",
			history: nil,
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractName(tt.history)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
