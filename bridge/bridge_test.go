package bridge

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/gammazero/http2xmpp/relay"
	"github.com/gammazero/http2xmpp/server"
	"github.com/gammazero/http2xmpp/session"
	"github.com/gammazero/http2xmpp/stdlog"
	"github.com/stretchr/testify/require"
)

const testSuffix = "@conference.example.com"

var logger stdlog.StdLog

func init() {
	logger = log.New(os.Stdout, "", log.LstdFlags)
}

type fakeConn struct {
	mu        sync.Mutex
	sent      []string
	recvErr   chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		recvErr: make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) SendOrg(org string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, org)
	return len(org), nil
}

func (c *fakeConn) SendKeepAlive() (int, error) { return 1, nil }

func (c *fakeConn) Recv() (interface{}, error) {
	select {
	case err := <-c.recvErr:
		return nil, err
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// messages returns the groupchat messages written so far.
func (c *fakeConn) messages(t *testing.T) []groupchat {
	c.mu.Lock()
	defer c.mu.Unlock()
	var msgs []groupchat
	for _, s := range c.sent {
		if !strings.HasPrefix(s, "<message") {
			continue
		}
		var m groupchat
		require.NoError(t, xml.Unmarshal([]byte(s), &m))
		msgs = append(msgs, m)
	}
	return msgs
}

type groupchat struct {
	To   string `xml:"to,attr"`
	Type string `xml:"type,attr"`
	Body string `xml:"body"`
}

func newTestSessionConfig(conn session.Conn, dialErr error) session.Config {
	return session.Config{
		JID:        "bot@example.com",
		Password:   "secret",
		Rooms:      []string{"dev"},
		RoomSuffix: testSuffix,
		Resource:   "http2xmpp",
		Logger:     logger,
		Dial: func(session.Config) (session.Conn, error) {
			if dialErr != nil {
				return nil, dialErr
			}
			return conn, nil
		},
	}
}

// startBridge runs a bridge in the background and returns the address it
// listens on.
func startBridge(t *testing.T, ctx context.Context, conn *fakeConn) (string, <-chan error) {
	listening := make(chan net.Listener, 1)
	b := &Bridge{
		Session: newTestSessionConfig(conn, nil),
		Address: "127.0.0.1:0",
		Listen: func(network, address string) (net.Listener, error) {
			l, err := net.Listen(network, address)
			if err == nil {
				listening <- l
			}
			return l, err
		},
		Logger: logger,
	}
	errChan := make(chan error, 1)
	go func() { errChan <- b.Run(ctx) }()

	select {
	case l := <-listening:
		return l.Addr().String(), errChan
	case err := <-errChan:
		t.Fatal("bridge exited early:", err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for bridge to listen")
	}
	return "", nil
}

func waitRun(t *testing.T, errChan <-chan error) error {
	select {
	case err := <-errChan:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bridge to exit")
	}
	return nil
}

func TestEndToEnd(t *testing.T) {
	conn := newFakeConn()
	sess := session.Connect(newTestSessionConfig(conn, nil))
	defer sess.Close()
	select {
	case <-sess.Ready():
	case <-time.After(time.Second):
		t.Fatal("session not ready")
	}
	srv := server.NewIngestServer(relay.NewHandler(sess, testSuffix, logger), logger)

	req := httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"room":"dev","message":"deploy done"}`))
	req.RemoteAddr = "[::ffff:10.0.0.9]:52100"
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
	require.Equal(t, []groupchat{{
		To:   "dev@conference.example.com",
		Type: "groupchat",
		Body: "[10.0.0.9] deploy done",
	}}, conn.messages(t))
}

func TestRunRelaysAndCancels(t *testing.T) {
	defer leaktest.Check(t)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn := newFakeConn()
	addr, errChan := startBridge(t, ctx, conn)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Post("http://"+addr+"/", "application/json",
		strings.NewReader(`{"Room":"dev","MESSAGE":"hello"}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "OK", string(body))

	msgs := conn.messages(t)
	require.Len(t, msgs, 1)
	require.Equal(t, "dev"+testSuffix, msgs[0].To)
	require.Equal(t, "[127.0.0.1] hello", msgs[0].Body)

	cancel()
	require.NoError(t, waitRun(t, errChan))
	select {
	case <-conn.closed:
	default:
		t.Fatal("session connection not closed")
	}
}

func TestFailureBeforeReady(t *testing.T) {
	defer leaktest.Check(t)()

	dialErr := errors.New("not-authorized")
	listened := false
	b := &Bridge{
		Session: newTestSessionConfig(nil, dialErr),
		Address: "127.0.0.1:0",
		Listen: func(network, address string) (net.Listener, error) {
			listened = true
			return net.Listen(network, address)
		},
		Logger: logger,
	}

	err := b.Run(context.Background())
	require.ErrorIs(t, err, dialErr)
	require.False(t, listened, "ingest server started before session was ready")
}

func TestFailureAfterReady(t *testing.T) {
	defer leaktest.Check(t)()

	conn := newFakeConn()
	addr, errChan := startBridge(t, context.Background(), conn)

	dropErr := errors.New("connection reset by peer")
	conn.recvErr <- dropErr
	require.ErrorIs(t, waitRun(t, errChan), dropErr)

	// The ingest server stops with the session.
	_, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
	require.Error(t, err)
}
