package viewxprotocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandParser(t *testing.T) {
	parser := NewCommandParser()

	tests := []struct {
		input    string
		expected string
	}{
		{"ET_CAL 9", "ET_CAL 9"},
		{"et_cal 9 2", "ET_CAL 9 2"},
		{"  ET_ACC  ", "ET_ACC"},
		{"ET_CPA 1", "ET_CPA 1"},
		{"ET_CPA 1 0", "ET_CPA 1 0"},
		{"ET_CSZ 1280 1024", "ET_CSZ 1280 1024"},
		{"ET_LEV 2", "ET_LEV 2"},
		{"ET_PNT 3 100 200", "ET_PNT 3 100 200"},
		{"ET_VLX 640\t512", "ET_VLX 640 512"},
		{`ET_FRM "%TS %SX %SY"`, `ET_FRM "%TS %SX %SY"`},
		{"ET_FRM %TS %SX", `ET_FRM "%TS %SX"`},
		{"ET_STR", "ET_STR"},
		{"ET_STR 50", "ET_STR 50"},
		{"ET_EST", "ET_EST"},
		{"ET_SRT", "ET_SRT"},
		{"ET_RES", "ET_RES"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, err := parser.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cmd.Format())
		})
	}
}

func TestCommandParserErrors(t *testing.T) {
	parser := NewCommandParser()

	tests := []struct {
		input string
		kind  ValidationErrorKind
	}{
		{"", ErrKindEmptyKeyword},
		{"   ", ErrKindEmptyKeyword},
		{"ET_CAL", ErrKindArity},
		{"ET_CAL 7", ErrKindOutOfRange},
		{"ET_CAL nine", ErrKindInvalidValue},
		{"ET_ACC 1", ErrKindArity},
		{"ET_PNT 1 2", ErrKindArity},
		{"ET_FRM", ErrKindArity},
		{`ET_FRM "%TS`, ErrKindInvalidValue},
		{"ET_STR 1 2", ErrKindArity},
		{"ET_NOPE 1", ErrKindUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parser.Parse(tt.input)
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.kind, ve.Kind)
		})
	}
}

func TestCommandParserLineTooLong(t *testing.T) {
	_, err := NewCommandParser().Parse("ET_FRM " + strings.Repeat("x", MaxDatagramSize))
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestCommandParserAllowUnknown(t *testing.T) {
	parser := &CommandParser{AllowUnknown: true}

	cmd, err := parser.Parse(`et_xyz 1 -2 abc "d e"`)
	require.NoError(t, err)
	assert.Equal(t, "ET_XYZ", cmd.Keyword())
	assert.Equal(t, `ET_XYZ 1 -2 abc "d e"`, cmd.Format())

	args := cmd.Args()
	require.Len(t, args, 4)
	assert.Equal(t, ArgInt, args[1].Kind())
	assert.Equal(t, ArgString, args[2].Kind())
	assert.Equal(t, ArgQuoted, args[3].Kind())

	_, err = parser.Parse("ET-XYZ")
	assert.True(t, IsValidationError(err))
}

func TestTokenize(t *testing.T) {
	tokens, err := tokenize(`A "b c" d "" e`)
	require.NoError(t, err)
	require.Len(t, tokens, 5)
	assert.Equal(t, token{text: "A"}, tokens[0])
	assert.Equal(t, token{text: "b c", quoted: true}, tokens[1])
	assert.Equal(t, token{text: "d"}, tokens[2])
	assert.Equal(t, token{text: "", quoted: true}, tokens[3])
	assert.Equal(t, token{text: "e"}, tokens[4])
}
