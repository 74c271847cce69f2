package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeDirectiveArgs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "plain words",
			raw:  "my_shader arg1 arg2",
			want: []string{"my_shader", "arg1", "arg2"},
		},
		{
			name: "collapses repeated whitespace",
			raw:  "  a \t b\t\tc  ",
			want: []string{"a", "b", "c"},
		},
		{
			name: "empty input",
			raw:  "",
			want: nil,
		},
		{
			name: "whitespace only",
			raw:  " \t ",
			want: nil,
		},
		{
			name: "quoted segment keeps whitespace",
			raw:  `--light_dir "normalize(vec3(0.1, 0.2, 0.3))"`,
			want: []string{"--light_dir", "normalize(vec3(0.1, 0.2, 0.3))"},
		},
		{
			name: "quoted segment fuses with adjacent characters",
			raw:  `pre"mid dle"post`,
			want: []string{`premid dlepost`},
		},
		{
			name: "empty quoted pair produces empty token",
			raw:  `a "" b`,
			want: []string{"a", "", "b"},
		},
		{
			name: "escaped quote",
			raw:  `"she said \"hi\""`,
			want: []string{`she said "hi"`},
		},
		{
			name: "escaped newline and tab",
			raw:  `"a\nb\tc"`,
			want: []string{"a\nb\tc"},
		},
		{
			name: "escaped backslash",
			raw:  `"a\\b"`,
			want: []string{`a\b`},
		},
		{
			name: "unknown escape kept literally",
			raw:  `"a\qb"`,
			want: []string{`a\qb`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tokenizeDirectiveArgs(tt.raw, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenizeDirectiveArgsUnterminatedQuote(t *testing.T) {
	_, err := tokenizeDirectiveArgs(`--value "no closing quote`, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedDirective)
	assert.Contains(t, err.Error(), "line 7")
}

func TestTokenizeDirectiveArgsIsPure(t *testing.T) {
	raw := `one "two three" four`
	first, err := tokenizeDirectiveArgs(raw, 1)
	require.NoError(t, err)
	second, err := tokenizeDirectiveArgs(raw, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
