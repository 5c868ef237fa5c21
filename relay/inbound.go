package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	keyPeer    = "peer"
	keyRoom    = "room"
	keyMessage = "message"
)

var (
	ErrMalformedJSON = errors.New("malformed JSON body")
	ErrNullBody      = errors.New("JSON body is null")
)

// mappedIPv4 matches an IPv4-mapped IPv6 address such as "::ffff:10.0.0.9".
var mappedIPv4 = regexp.MustCompile(`(?i)^::ffff:([0-9.]+)\s*$`)

// InboundMessage is one relay request, after key normalization.
type InboundMessage struct {
	Peer    string
	Room    string
	Message string
}

// Body returns the text relayed to the room: "[peer] message".
func (m InboundMessage) Body() string {
	return "[" + m.Peer + "] " + m.Message
}

// NormalizePeer strips the "::ffff:" prefix from an IPv4-mapped IPv6
// address.  Any other address is returned unchanged.
func NormalizePeer(addr string) string {
	if match := mappedIPv4.FindStringSubmatch(addr); match != nil {
		return strings.TrimSpace(match[1])
	}
	return addr
}

// ParseInbound decodes a request body sent from peer.
//
// The body must be valid JSON.  The keys of a JSON object are lower-cased and
// applied in source order, so a later key overwrites an earlier one that
// differs only in case.  A "peer" key in the body overrides the network peer.
//
// The returned bool is false if the body does not carry both a room and a
// message.  That is not an error: such a request is acknowledged without
// being relayed.
func ParseInbound(body []byte, peer string) (InboundMessage, bool, error) {
	if !gjson.ValidBytes(body) {
		return InboundMessage{}, false, syntaxError(body)
	}
	doc := gjson.ParseBytes(body)
	if doc.Type == gjson.Null {
		return InboundMessage{}, false, ErrNullBody
	}

	fields := map[string]gjson.Result{}
	if doc.IsObject() {
		doc.ForEach(func(key, value gjson.Result) bool {
			fields[strings.ToLower(key.String())] = value
			return true
		})
	}

	room, hasRoom := fields[keyRoom]
	message, hasMessage := fields[keyMessage]
	if !hasRoom || !hasMessage || !truthy(room) || !truthy(message) {
		return InboundMessage{}, false, nil
	}

	msg := InboundMessage{
		Peer:    peer,
		Room:    text(room),
		Message: text(message),
	}
	if p, ok := fields[keyPeer]; ok {
		msg.Peer = text(p)
	}
	return msg, true, nil
}

// syntaxError describes why body is not valid JSON.  The error wraps
// ErrMalformedJSON.
func syntaxError(body []byte) error {
	var raw json.RawMessage
	err := json.Unmarshal(body, &raw)
	var serr *json.SyntaxError
	switch {
	case errors.As(err, &serr):
		return fmt.Errorf("%w: %v at offset %d", ErrMalformedJSON, serr, serr.Offset)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return ErrMalformedJSON
}

// truthy reports whether a JSON value counts as present: empty strings,
// zero, false, and null do not.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	case gjson.True, gjson.JSON:
		return true
	}
	return false
}

// text renders a JSON value the way it reads when concatenated into a
// string: numbers in shortest form, objects as "[object Object]", and arrays
// as their comma-joined elements.
func text(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	case gjson.Null:
		return "null"
	}
	if v.IsArray() {
		elems := v.Array()
		parts := make([]string, len(elems))
		for i, e := range elems {
			if e.Type != gjson.Null {
				parts[i] = text(e)
			}
		}
		return strings.Join(parts, ",")
	}
	return "[object Object]"
}
