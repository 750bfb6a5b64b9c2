package viewxprotocol

import (
	"strconv"
	"strings"
	"unicode"
)

// CommandParser parses wire-format command lines into validated Commands.
type CommandParser struct {
	// AllowUnknown accepts keywords missing from the catalog. Their
	// arguments are validated generically: integers stay integers, quoted
	// tokens are re-quoted, everything else is sent as a bare string.
	AllowUnknown bool
}

// NewCommandParser creates a parser that only accepts catalog commands.
func NewCommandParser() *CommandParser {
	return &CommandParser{}
}

// token is one whitespace-delimited piece of a command line.
type token struct {
	text   string
	quoted bool
}

// Parse parses a command line such as `ET_CAL 9` or `ET_FRM "%TS %SX"`.
// The keyword is case-insensitive.
func (p *CommandParser) Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if len(line) > MaxDatagramSize {
		return Command{}, ErrLineTooLong
	}

	tokens, err := tokenize(line)
	if err != nil {
		return Command{}, err
	}
	if len(tokens) == 0 {
		return Command{}, &ValidationError{Kind: ErrKindEmptyKeyword}
	}

	keyword := strings.ToUpper(tokens[0].text)
	args := tokens[1:]

	switch keyword {
	case KeywordCalibrate:
		n, err := intArgs(keyword, args, 1, 2)
		if err != nil {
			return Command{}, err
		}
		eye := 0
		if len(n) == 2 {
			eye = n[1]
		}
		return NewStartCalibrationCommand(n[0], eye)

	case KeywordCalibrationParam:
		n, err := intArgs(keyword, args, 1, 2)
		if err != nil {
			return Command{}, err
		}
		if len(n) == 1 {
			return NewGetCalibrationParamCommand(n[0])
		}
		return NewSetCalibrationParamCommand(n[0], n[1])

	case KeywordCalibrationArea:
		n, err := intArgs(keyword, args, 2, 2)
		if err != nil {
			return Command{}, err
		}
		return NewSetCalibrationAreaCommand(n[0], n[1])

	case KeywordCheckLevel:
		n, err := intArgs(keyword, args, 1, 1)
		if err != nil {
			return Command{}, err
		}
		return NewSetCalibrationCheckLevelCommand(n[0])

	case KeywordCalibrationPoint:
		n, err := intArgs(keyword, args, 3, 3)
		if err != nil {
			return Command{}, err
		}
		return NewSetCalibrationPointCommand(n[0], n[1], n[2])

	case KeywordValidatePoint:
		n, err := intArgs(keyword, args, 2, 2)
		if err != nil {
			return Command{}, err
		}
		return NewValidateCalibrationPointCommand(n[0], n[1])

	case KeywordDataFormat:
		if len(args) == 0 {
			return Command{}, newArityError(keyword, 0, "at least 1")
		}
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.text
		}
		return NewSetDataFormatCommand(strings.Join(parts, " "))

	case KeywordStartStreaming:
		n, err := intArgs(keyword, args, 0, 1)
		if err != nil {
			return Command{}, err
		}
		if len(n) == 0 {
			return NewStartStreamingCommand(0)
		}
		return NewStartStreamingCommand(n[0])

	case KeywordAcceptPoint, KeywordCancelCalibration, KeywordDefaultPoints,
		KeywordDriftCorrection, KeywordValidate, KeywordCalibrationResults,
		KeywordStopStreaming, KeywordSampleRate:
		if len(args) != 0 {
			return Command{}, newArityError(keyword, len(args), "0")
		}
		return NewCommand(keyword)
	}

	if !p.AllowUnknown {
		return Command{}, &ValidationError{Kind: ErrKindUnknownCommand, Value: tokens[0].text}
	}
	return genericCommand(keyword, args)
}

func genericCommand(keyword string, tokens []token) (Command, error) {
	args := make([]any, 0, len(tokens))
	for _, t := range tokens {
		switch {
		case t.quoted:
			args = append(args, Quoted(t.text))
		default:
			if v, err := strconv.ParseInt(t.text, 10, 64); err == nil {
				args = append(args, v)
			} else {
				args = append(args, t.text)
			}
		}
	}
	return NewCommand(keyword, args...)
}

func intArgs(keyword string, tokens []token, min, max int) ([]int, error) {
	if len(tokens) < min || len(tokens) > max {
		want := strconv.Itoa(min)
		if max != min {
			want += "-" + strconv.Itoa(max)
		}
		return nil, newArityError(keyword, len(tokens), want)
	}
	out := make([]int, len(tokens))
	for i, t := range tokens {
		v, err := strconv.Atoi(t.text)
		if err != nil {
			return nil, newInvalidValueError(keyword, "not a number", t.text)
		}
		out[i] = v
	}
	return out, nil
}

// tokenize splits line on whitespace, keeping double-quoted runs together.
func tokenize(line string) ([]token, error) {
	var (
		tokens  []token
		current strings.Builder
		inQuote bool
		quoted  bool
		started bool
	)

	flush := func() {
		if started {
			tokens = append(tokens, token{text: current.String(), quoted: quoted})
		}
		current.Reset()
		quoted = false
		started = false
	}

	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			quoted = true
			started = true
		case !inQuote && unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, newInvalidValueError("", "unterminated quote", line)
	}
	flush()
	return tokens, nil
}
