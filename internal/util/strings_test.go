package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "empty", token: "", want: ""},
		{name: "generated token", token: "Q2hhbmdlIHRoaXMgdG9rZW4gdmFsdWUgcGxlYXNl", want: "Q2hhbmdl..."},
		{name: "short value hidden", token: "tok-1", want: "[redacted]"},
		{name: "boundary hidden", token: "0123456789abcdef", want: "[redacted]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedactToken(tt.token))
		})
	}
}
