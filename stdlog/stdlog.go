/*
Package stdlog provides the minimal logging interface shared by the bridge
packages, so that http2xmpp can log through nearly any logging implementation.

*/
package stdlog

// StdLog is a minimal interface implemented by nearly every logging package,
// including *log.Logger.  The session, relay, server, and bridge packages log
// only through this interface.
type StdLog interface {
	// Print logs a message.  Arguments are handled in the manner of fmt.Print.
	Print(v ...interface{})

	// Println logs a message.  Arguments are handled in the manner of
	// fmt.Println.
	Println(v ...interface{})

	// Printf logs a message.  Arguments are handled in the manner of
	// fmt.Printf.
	Printf(format string, v ...interface{})
}
