package viewxprotocol

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Reply is a datagram received from the tracker, split on whitespace.
// Keyword is token 0 and is the only part the correlation engine inspects;
// Fields are opaque, command specific payload tokens.
type Reply struct {
	Keyword string
	Fields  []string

	Raw        string    // The datagram as received, trailing whitespace removed
	Addr       net.Addr  // Sender address; nil for replies not read from a socket
	ReceivedAt time.Time // Zero for replies not read from a socket
}

// ParseReply splits a datagram into a Reply. It returns false when the
// datagram has no tokens (protocol noise).
func ParseReply(data []byte) (Reply, bool) {
	text := string(data)
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return Reply{}, false
	}
	return Reply{
		Keyword: tokens[0],
		Fields:  tokens[1:],
		Raw:     strings.TrimRight(text, " \t\r\n"),
	}, true
}

// Tokens returns the keyword followed by all payload fields, matching the
// datagram's whitespace-split form.
func (r Reply) Tokens() []string {
	if r.Keyword == "" {
		return nil
	}
	out := make([]string, 0, len(r.Fields)+1)
	out = append(out, r.Keyword)
	return append(out, r.Fields...)
}

// Field returns payload field i (0-based, keyword excluded).
func (r Reply) Field(i int) (string, bool) {
	if i < 0 || i >= len(r.Fields) {
		return "", false
	}
	return r.Fields[i], true
}

// Int parses payload field i as a decimal integer.
func (r Reply) Int(i int) (int, error) {
	f, ok := r.Field(i)
	if !ok {
		return 0, fmt.Errorf("%s: missing field %d", r.Keyword, i)
	}
	v, err := strconv.Atoi(f)
	if err != nil {
		return 0, fmt.Errorf("%s: field %d: %w", r.Keyword, i, err)
	}
	return v, nil
}

// Float parses payload field i as a floating point number.
func (r Reply) Float(i int) (float64, error) {
	f, ok := r.Field(i)
	if !ok {
		return 0, fmt.Errorf("%s: missing field %d", r.Keyword, i)
	}
	v, err := strconv.ParseFloat(f, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: field %d: %w", r.Keyword, i, err)
	}
	return v, nil
}

// String returns the reply tokens joined by single spaces.
func (r Reply) String() string {
	return strings.Join(r.Tokens(), " ")
}
