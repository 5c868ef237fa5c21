package stanza

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type decodedMessage struct {
	XMLName xml.Name `xml:"message"`
	To      string   `xml:"to,attr"`
	Type    string   `xml:"type,attr"`
	Body    string   `xml:"body"`
	HTML    struct {
		XMLName xml.Name `xml:"http://jabber.org/protocol/xhtml-im html"`
		Body    struct {
			XMLName xml.Name `xml:"http://www.w3.org/1999/xhtml body"`
			Text    string   `xml:",chardata"`
		}
	}
}

func TestGroupChat(t *testing.T) {
	out, err := GroupChat{
		To:   "dev@conference.example.com",
		Body: "[10.0.0.9] deploy done",
	}.Render()
	require.NoError(t, err)

	var msg decodedMessage
	require.NoError(t, xml.Unmarshal([]byte(out), &msg))
	require.Equal(t, "dev@conference.example.com", msg.To)
	require.Equal(t, TypeGroupchat, msg.Type)
	require.Equal(t, "[10.0.0.9] deploy done", msg.Body)
	require.Equal(t, msg.Body, msg.HTML.Body.Text, "renderings differ")
}

func TestGroupChatEscapesMarkup(t *testing.T) {
	out, err := GroupChat{To: "dev@x", Body: "<b>bold</b> & </message>"}.Render()
	require.NoError(t, err)
	require.NotContains(t, out, "<b>")
	require.Equal(t, 1, strings.Count(out, "</message>"), "body broke out of stanza")

	var msg decodedMessage
	require.NoError(t, xml.Unmarshal([]byte(out), &msg))
	require.Equal(t, "<b>bold</b> & </message>", msg.Body)
	require.Equal(t, msg.Body, msg.HTML.Body.Text)
}

func TestGroupChatNoDestination(t *testing.T) {
	_, err := GroupChat{Body: "hi"}.Render()
	require.ErrorIs(t, err, ErrNoDestination)
}

func TestJoinRoom(t *testing.T) {
	out, err := JoinRoom("dev@conference.example.com", "http2xmpp", 0, 1).Render()
	require.NoError(t, err)
	require.Equal(t,
		`<presence to="dev@conference.example.com/http2xmpp">`+
			`<x xmlns="http://jabber.org/protocol/muc">`+
			`<history maxstanzas="0" seconds="1"></history></x></presence>`,
		out)
}

func TestJoinRoomNoNick(t *testing.T) {
	p := JoinRoom("dev@conference.example.com", "", 0, 1)
	require.Equal(t, "dev@conference.example.com", p.To)
}

func TestPresence(t *testing.T) {
	out, err := Available().Render()
	require.NoError(t, err)
	require.Equal(t, "<presence><show>chat</show></presence>", out)

	out, err = Unavailable().Render()
	require.NoError(t, err)
	require.Equal(t, `<presence type="unavailable"></presence>`, out)
}
