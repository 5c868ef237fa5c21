package session

import (
	"time"

	"github.com/gammazero/http2xmpp/stdlog"
)

// Config configures a session with everything needed to log in to an XMPP
// server and join the bridged rooms.
type Config struct {
	// JID is the bare account JID, e.g. "bot@example.com".
	JID string

	// Password authenticates JID.
	Password string

	// Host is the "host:port" of the XMPP server.  If empty, the server is
	// found from the SRV record of the JID domain, falling back to the domain
	// itself on the standard client port.
	Host string

	// DirectTLS opens the connection with a TLS handshake, as on port 5223,
	// instead of upgrading a plain stream with STARTTLS.
	DirectTLS bool

	// InsecureSkipVerify disables server certificate verification.
	InsecureSkipVerify bool

	// Rooms lists the short names of the rooms to join once logged in.
	Rooms []string

	// RoomSuffix qualifies a short room name, e.g. "@conference.example.com".
	RoomSuffix string

	// Resource is the occupant nickname used when joining rooms.
	Resource string

	// KeepAlive is the interval between whitespace keep-alives while the
	// session is ready.  A value of 0 uses the default.
	KeepAlive time.Duration

	// Dial opens the connection.  If nil, DialXMPP is used.
	Dial DialFunc

	// Enable debug logging for session.
	Debug bool

	// Logger for session to use.  If not set, session logs to os.Stderr.
	Logger stdlog.StdLog
}
