/*
Package stanza renders the few XMPP stanzas the bridge writes to its session:
the available presence, the multi-user-chat join presence, the unavailable
presence sent on shutdown, and the groupchat message carrying relayed text.

All user-supplied text is XML-escaped.  The message body is rendered twice, as
a plain <body> and as an XHTML-IM <html><body>, both with identical content.

*/
package stanza

import (
	"encoding/xml"
	"errors"
)

const (
	// TypeGroupchat is the message type for messages addressed to a room.
	TypeGroupchat = "groupchat"

	// ShowChat announces that the account is available and willing to chat.
	ShowChat = "chat"

	// KeepAlive is the whitespace frame written to keep idle connections open.
	KeepAlive = " "
)

var ErrNoDestination = errors.New("stanza has no destination")

// Stanza is any unit of XMPP data that can be rendered for the wire.
type Stanza interface {
	Render() (string, error)
}

// Presence is a presence broadcast or directed presence.
type Presence struct {
	XMLName xml.Name `xml:"presence"`
	To      string   `xml:"to,attr,omitempty"`
	Type    string   `xml:"type,attr,omitempty"`
	Show    string   `xml:"show,omitempty"`
	MUC     *mucJoin `xml:",omitempty"`
}

type mucJoin struct {
	XMLName xml.Name    `xml:"http://jabber.org/protocol/muc x"`
	History *mucHistory `xml:"history,omitempty"`
}

// maxstanzas and seconds are not omitempty: a zero maxstanzas is meaningful.
type mucHistory struct {
	MaxStanzas int `xml:"maxstanzas,attr"`
	Seconds    int `xml:"seconds,attr"`
}

// Available returns the presence that announces the session as online.
func Available() Presence {
	return Presence{Show: ShowChat}
}

// Unavailable returns the presence that announces the session is going away.
func Unavailable() Presence {
	return Presence{Type: "unavailable"}
}

// JoinRoom returns the presence that joins the room at roomJID using nick as
// the occupant resource.  The history element asks the room to replay at most
// maxStanzas stanzas from the last seconds seconds.
func JoinRoom(roomJID, nick string, maxStanzas, seconds int) Presence {
	to := roomJID
	if nick != "" {
		to += "/" + nick
	}
	return Presence{
		To: to,
		MUC: &mucJoin{
			History: &mucHistory{MaxStanzas: maxStanzas, Seconds: seconds},
		},
	}
}

// Render renders the presence as XML.
func (p Presence) Render() (string, error) {
	return render(p)
}

// GroupChat is a message to every occupant of a room.
type GroupChat struct {
	To   string
	Body string
}

type message struct {
	XMLName xml.Name `xml:"message"`
	To      string   `xml:"to,attr"`
	Type    string   `xml:"type,attr"`
	Body    string   `xml:"body"`
	HTML    xhtmlIM  `xml:"http://jabber.org/protocol/xhtml-im html"`
}

type xhtmlIM struct {
	Body xhtmlBody `xml:"http://www.w3.org/1999/xhtml body"`
}

type xhtmlBody struct {
	Text string `xml:",chardata"`
}

// Render renders the message with both the plain and the XHTML-IM body.
func (m GroupChat) Render() (string, error) {
	if m.To == "" {
		return "", ErrNoDestination
	}
	return render(message{
		To:   m.To,
		Type: TypeGroupchat,
		Body: m.Body,
		HTML: xhtmlIM{Body: xhtmlBody{Text: m.Body}},
	})
}

func render(v interface{}) (string, error) {
	b, err := xml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
