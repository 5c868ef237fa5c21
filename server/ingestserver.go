/*
Package server provides the HTTP ingest server.  It accepts relay requests as
POST / and rejects every other method and path with 405.

*/
package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/gammazero/http2xmpp/stdlog"
	"github.com/gorilla/mux"
)

// IngestServer routes HTTP requests to a relay handler.
type IngestServer struct {
	router *mux.Router
	server *http.Server
	log    stdlog.StdLog
}

// NewIngestServer returns a server that passes POST / to relay.  If logger
// is nil, the server logs to os.Stderr.
//
// To run the server, call Serve with a listener, or ListenAndServe:
//
//	s := NewIngestServer(h, logger)
//	closer, err := s.ListenAndServe(":8080")
func NewIngestServer(relay http.Handler, logger stdlog.StdLog) *IngestServer {
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	r := mux.NewRouter()
	// No redirects for unclean paths: anything but "/" is rejected.
	r.SkipClean(true)
	r.Handle("/", relay).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(reject)
	r.MethodNotAllowedHandler = http.HandlerFunc(reject)

	s := &IngestServer{
		router: r,
		log:    logger,
	}
	s.server = &http.Server{
		Handler:  s,
		ErrorLog: log.New(logWriter{logger}, "", 0),
	}
	return s
}

// ServeHTTP handles HTTP requests.
func (s *IngestServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve accepts connections on l until Close is called.  It returns nil
// after Close.
func (s *IngestServer) Serve(l net.Listener) error {
	err := s.server.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe listens on the specified TCP address and starts a goroutine
// that accepts new connections until the returned io.Closer is closed.
func (s *IngestServer) ListenAndServe(address string) (io.Closer, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		s.log.Print(err)
		return nil, err
	}
	go s.Serve(l)
	return s, nil
}

// Close stops the server and closes its listeners.
func (s *IngestServer) Close() error {
	return s.server.Close()
}

func reject(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusMethodNotAllowed)
	fmt.Fprintf(w, "We only accept POST requests, via HTTP. Ignoring METHOD:%s PATH:%s",
		r.Method, r.URL.RequestURI())
}

// logWriter adapts a StdLog to the io.Writer that http.Server.ErrorLog needs.
type logWriter struct {
	log stdlog.StdLog
}

func (w logWriter) Write(p []byte) (int, error) {
	w.log.Print(string(p))
	return len(p), nil
}
