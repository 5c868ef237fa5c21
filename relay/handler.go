/*
Package relay translates HTTP relay requests into room messages.

A request body is a JSON object with a "room" and a "message" key, matched
without regard to case.  The message is relayed to room+suffix as
"[peer] message", where peer is the address the request came from.

*/
package relay

import (
	"io"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/gammazero/http2xmpp/stdlog"
)

// Sender delivers a message body to a fully qualified room address.
// *session.Session is a Sender.
type Sender interface {
	SendToRoom(to, body string) error
}

// Handler is an http.Handler that relays each request body to a room.
type Handler struct {
	sender     Sender
	roomSuffix string
	log        stdlog.StdLog
}

// NewHandler returns a handler that relays through sender, qualifying room
// names with roomSuffix.  If logger is nil, the handler logs to os.Stderr.
func NewHandler(sender Sender, roomSuffix string, logger stdlog.StdLog) *Handler {
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	return &Handler{
		sender:     sender,
		roomSuffix: roomSuffix,
		log:        logger,
	}
}

// ServeHTTP reads the whole body and relays it.  The response is 200 "OK"
// whether or not the body named a room and a message, and 500 if the body is
// not JSON or the send is rejected.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.fail(w, err)
		return
	}

	msg, ok, err := ParseInbound(body, remotePeer(r.RemoteAddr))
	if err != nil {
		h.fail(w, err)
		return
	}
	if ok {
		text := msg.Body()
		if err = h.sender.SendToRoom(msg.Room+h.roomSuffix, text); err != nil {
			h.fail(w, err)
			return
		}
		h.log.Println(text)
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.log.Println("Error:", err)
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusInternalServerError)
	io.WriteString(w, "Error:"+err.Error()+"\n")
}

// remotePeer returns the normalized host part of a request's remote address.
func remotePeer(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return NormalizePeer(host)
}
