package session

import (
	"crypto/tls"
	"net"
	"strings"

	xmpp "github.com/xmppo/go-xmpp"
)

// Conn is the part of an authenticated XMPP stream that a Session uses.  It is
// satisfied by *xmpp.Client.
//
// The Session writes stanzas and keep-alives only from its own goroutine, and
// calls Recv from a separate reader goroutine.  An *xmpp.Client also writes
// from within Recv, to answer server pings, so a Conn must tolerate a write
// from Recv concurrent with SendOrg.  Each xmpp.Client send is a single Write
// on the underlying net.Conn, which serializes them.
type Conn interface {
	// SendOrg writes a raw, already rendered, payload to the stream.
	SendOrg(org string) (int, error)

	// SendKeepAlive writes a whitespace keep-alive to the stream.
	SendKeepAlive() (int, error)

	// Recv blocks until the next stanza is read or the stream fails.
	Recv() (interface{}, error)

	// Close ends the stream and closes the underlying connection.
	Close() error
}

// DialFunc opens an authenticated stream for the account in cfg.  When it
// returns, the connection has completed TLS negotiation and authentication.
type DialFunc func(cfg Config) (Conn, error)

// DialXMPP connects to the XMPP server for cfg.JID and authenticates.
func DialXMPP(cfg Config) (Conn, error) {
	if cfg.JID == "" {
		return nil, ErrNoJID
	}
	opts := xmppOptions(cfg)
	client, err := opts.NewClient()
	if err != nil {
		return nil, err
	}
	return client, nil
}

// xmppOptions maps cfg to client options.  An empty Host is passed through so
// that the client locates the server from the JID domain's xmpp-client SRV
// record.  Unless DirectTLS is set, the stream starts in plain text and is
// upgraded with STARTTLS.
func xmppOptions(cfg Config) xmpp.Options {
	opts := xmpp.Options{
		Host:     cfg.Host,
		User:     cfg.JID,
		Password: cfg.Password,
		NoTLS:    !cfg.DirectTLS,
		StartTLS: !cfg.DirectTLS,
		Session:  true,
		Status:   "chat",
		Debug:    cfg.Debug,
	}
	if cfg.InsecureSkipVerify {
		opts.TLSConfig = &tls.Config{
			ServerName:         tlsServerName(cfg),
			InsecureSkipVerify: true,
		}
	}
	return opts
}

// tlsServerName is the name the server certificate is checked against.  A
// STARTTLS stream is addressed to the JID domain.  A direct TLS connection to
// a configured host is checked against that host.
func tlsServerName(cfg Config) string {
	if cfg.DirectTLS && cfg.Host != "" {
		if hostname, _, err := net.SplitHostPort(cfg.Host); err == nil {
			return hostname
		}
		return cfg.Host
	}
	return jidDomain(cfg.JID)
}

// jidDomain returns the domain part of a JID of the form
// "local@domain/resource".
func jidDomain(jid string) string {
	domain := jid
	if i := strings.LastIndexByte(domain, '@'); i >= 0 {
		domain = domain[i+1:]
	}
	if i := strings.IndexByte(domain, '/'); i >= 0 {
		domain = domain[:i]
	}
	return domain
}
