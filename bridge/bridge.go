/*
Package bridge wires the chat session, the relay handler, and the ingest
server together.

The ingest server does not listen until the session is ready, so no request
is ever accepted that the session could not send.  A session failure, before
or after that point, ends Run with the session's error.  There is no
reconnect: the caller is expected to exit and be restarted.

*/
package bridge

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"

	"github.com/gammazero/http2xmpp/relay"
	"github.com/gammazero/http2xmpp/server"
	"github.com/gammazero/http2xmpp/session"
	"github.com/gammazero/http2xmpp/stdlog"
	"golang.org/x/sync/errgroup"
)

// ListenFunc opens the ingest listener.  net.Listen is a ListenFunc.
type ListenFunc func(network, address string) (net.Listener, error)

// Bridge relays HTTP POST requests into XMPP rooms.
type Bridge struct {
	// Session configures the XMPP session.  Its Logger defaults to Logger.
	Session session.Config

	// Address is the HTTP listen address, e.g. ":8080".  An empty host
	// listens on all interfaces, IPv4 and IPv6.
	Address string

	// Listen opens the ingest listener.  If nil, net.Listen is used.
	Listen ListenFunc

	// Logger for bridge to use.  If not set, bridge logs to os.Stderr.
	Logger stdlog.StdLog
}

// Run connects the session, waits for it to be ready, and serves relay
// requests until ctx is canceled or the session fails.  It returns nil after
// a cancellation and the session error after a failure.
func (b *Bridge) Run(ctx context.Context) error {
	logger := b.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	listen := b.Listen
	if listen == nil {
		listen = net.Listen
	}
	cfg := b.Session
	if cfg.Logger == nil {
		cfg.Logger = logger
	}

	sess := session.Connect(cfg)
	select {
	case <-sess.Ready():
	case <-sess.Done():
		return fmt.Errorf("chat session failed: %w", sess.Err())
	case <-ctx.Done():
		sess.Close()
		return nil
	}

	l, err := listen("tcp", b.Address)
	if err != nil {
		sess.Close()
		return fmt.Errorf("listen %s: %w", b.Address, err)
	}
	srv := server.NewIngestServer(
		relay.NewHandler(sess, cfg.RoomSuffix, logger), logger)
	logger.Println("Listening for HTTP connections on", l.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(l)
	})
	g.Go(func() error {
		defer srv.Close()
		select {
		case <-sess.Done():
			if err := sess.Err(); err != nil {
				return fmt.Errorf("chat session failed: %w", err)
			}
			return nil
		case <-gctx.Done():
			sess.Close()
			return nil
		}
	})
	return g.Wait()
}
