package viewxprotocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ArgKind identifies how an argument is encoded on the wire.
type ArgKind int

const (
	// ArgInt is a signed decimal integer.
	ArgInt ArgKind = iota
	// ArgString is a string, quoted only when it contains Unicode whitespace or
	// is empty.
	ArgString
	// ArgQuoted is a string that is always wrapped in double quotes.
	ArgQuoted
)

// Arg is a single positional command argument.
type Arg struct {
	kind ArgKind
	num  int64
	str  string
}

// IntArg creates an integer argument.
func IntArg(v int64) Arg {
	return Arg{kind: ArgInt, num: v}
}

// StringArg creates a string argument.
func StringArg(s string) Arg {
	return Arg{kind: ArgString, str: s}
}

// Quoted creates a string argument that is always sent in double quotes.
func Quoted(s string) Arg {
	return Arg{kind: ArgQuoted, str: s}
}

// Kind returns the argument's encoding kind.
func (a Arg) Kind() ArgKind {
	return a.kind
}

// Value returns the argument as an int64 or a string.
func (a Arg) Value() any {
	if a.kind == ArgInt {
		return a.num
	}
	return a.str
}

// Format returns the argument as it appears on the wire.
func (a Arg) Format() string {
	switch a.kind {
	case ArgInt:
		return strconv.FormatInt(a.num, 10)
	case ArgQuoted:
		return `"` + a.str + `"`
	default:
		if a.str == "" || strings.ContainsFunc(a.str, unicode.IsSpace) {
			return `"` + a.str + `"`
		}
		return a.str
	}
}

func (a Arg) validate(keyword string) error {
	if a.kind == ArgInt {
		return nil
	}
	if strings.ContainsRune(a.str, '"') {
		return newInvalidValueError(keyword, "string argument cannot contain quotes", a.str)
	}
	// Tab is the only control character allowed; it is quoted like a space.
	if strings.ContainsFunc(a.str, func(r rune) bool { return r != '\t' && unicode.IsControl(r) }) {
		return newInvalidValueError(keyword, "string argument cannot contain control characters", a.str)
	}
	return nil
}

// Command is an immutable outbound command: a keyword plus positional
// arguments. Use NewCommand or the catalog constructors
// (NewStartCalibrationCommand, NewGetSampleRateCommand, etc.) to create one.
type Command struct {
	keyword string
	args    []Arg
}

// NewCommand builds and validates a command. Arguments may be any Go integer
// type, a string, or an Arg. Anything else is a validation error.
func NewCommand(keyword string, args ...any) (Command, error) {
	if err := validateKeyword(keyword); err != nil {
		return Command{}, err
	}

	converted := make([]Arg, 0, len(args))
	for _, raw := range args {
		arg, err := toArg(keyword, raw)
		if err != nil {
			return Command{}, err
		}
		if err := arg.validate(keyword); err != nil {
			return Command{}, err
		}
		converted = append(converted, arg)
	}

	return Command{keyword: keyword, args: converted}, nil
}

// MustCommand is like NewCommand but panics on invalid input.
// It is intended for package-level command values.
func MustCommand(keyword string, args ...any) Command {
	cmd, err := NewCommand(keyword, args...)
	if err != nil {
		panic(err)
	}
	return cmd
}

func toArg(keyword string, raw any) (Arg, error) {
	switch v := raw.(type) {
	case Arg:
		return v, nil
	case int:
		return IntArg(int64(v)), nil
	case int8:
		return IntArg(int64(v)), nil
	case int16:
		return IntArg(int64(v)), nil
	case int32:
		return IntArg(int64(v)), nil
	case int64:
		return IntArg(v), nil
	case uint:
		return uintArg(keyword, uint64(v))
	case uint8:
		return IntArg(int64(v)), nil
	case uint16:
		return IntArg(int64(v)), nil
	case uint32:
		return IntArg(int64(v)), nil
	case uint64:
		return uintArg(keyword, v)
	case string:
		return StringArg(v), nil
	default:
		return Arg{}, &ValidationError{Keyword: keyword, Kind: ErrKindUnsupportedArgument, Value: fmt.Sprintf("%T", raw)}
	}
}

func uintArg(keyword string, v uint64) (Arg, error) {
	if v > math.MaxInt64 {
		return Arg{}, newInvalidValueError(keyword, "integer overflows int64", strconv.FormatUint(v, 10))
	}
	return IntArg(int64(v)), nil
}

func validateKeyword(keyword string) error {
	if keyword == "" {
		return &ValidationError{Kind: ErrKindEmptyKeyword}
	}
	if len(keyword) > MaxKeywordLength {
		return &ValidationError{Kind: ErrKindInvalidKeyword, Value: keyword}
	}
	for i := 0; i < len(keyword); i++ {
		ch := keyword[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
		case i > 0 && (ch >= '0' && ch <= '9' || ch == '_'):
		default:
			return &ValidationError{Kind: ErrKindInvalidKeyword, Value: keyword}
		}
	}
	return nil
}

// Keyword returns the command keyword.
func (c Command) Keyword() string {
	return c.keyword
}

// Args returns a copy of the command arguments.
func (c Command) Args() []Arg {
	out := make([]Arg, len(c.args))
	copy(out, c.args)
	return out
}

// Validate reports whether the command can be transmitted. Commands built
// with NewCommand are always valid; the zero Command is not.
func (c Command) Validate() error {
	if err := validateKeyword(c.keyword); err != nil {
		return err
	}
	for _, a := range c.args {
		if err := a.validate(c.keyword); err != nil {
			return err
		}
	}
	return nil
}

// ExpectsReply reports whether the tracker answers this command.
func (c Command) ExpectsReply() bool {
	return ExpectsReply(c.keyword)
}

// Format returns the command formatted for transmission, without the line terminator.
func (c Command) Format() string {
	if len(c.args) == 0 {
		return c.keyword
	}
	var b strings.Builder
	b.WriteString(c.keyword)
	for _, a := range c.args {
		b.WriteByte(' ')
		b.WriteString(a.Format())
	}
	return b.String()
}

// FormatLine returns the command formatted as a complete protocol line with newline.
func (c Command) FormatLine() string {
	return c.Format() + LineTerminator
}

// Encode returns the datagram payload for the command.
func (c Command) Encode() []byte {
	return []byte(c.FormatLine())
}

// String implements fmt.Stringer.
func (c Command) String() string {
	return c.Format()
}
