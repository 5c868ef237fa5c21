/*
Stand-alone HTTP to XMPP bridge service.

POST a JSON object with "room" and "message" keys to / and the message is
relayed to that room.

*/
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gammazero/http2xmpp/bridge"
	"github.com/spf13/pflag"
)

const version = "1.0.0"

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-c http2xmpp.json]\n", os.Args[0])
}

func main() {
	os.Exit(run())
}

func run() int {
	var cfgFile string
	var showVersion bool
	fs := pflag.NewFlagSet("http2xmppd", pflag.ContinueOnError)
	fs.StringVarP(&cfgFile, "config", "c", "etc/http2xmpp.json", "Path to config file")
	fs.BoolVar(&showVersion, "version", false, "print version")
	fs.Usage = usage
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 1
	}
	if showVersion {
		fmt.Println("version", version)
		return 0
	}
	// Read config file.
	conf, err := LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	var logger *log.Logger
	if conf.LogPath == "" {
		// If no log file specified, then log to stdout.
		logger = log.New(os.Stdout, "", log.LstdFlags)
	} else {
		// Open the file to log to and set up logger.
		f, err := os.OpenFile(conf.LogPath, os.O_RDWR|os.O_CREATE|os.O_APPEND,
			0644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer f.Close()
		logger = log.New(f, "", log.LstdFlags)
	}

	// Shutdown bridge if SIGINT (CTRL-c) or SIGTERM received.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	// If process does not exit in a few seconds after a signal, exit with
	// error.
	exitChan := make(chan struct{})
	defer close(exitChan)
	go func() {
		select {
		case <-ctx.Done():
		case <-exitChan:
			return
		}
		select {
		case <-time.After(5 * time.Second):
			logger.Print("Bridge took too long to stop")
			os.Exit(1)
		case <-exitChan:
		}
	}()

	sessCfg := conf.SessionConfig()
	sessCfg.Logger = logger
	b := &bridge.Bridge{
		Session: sessCfg,
		Address: conf.Address(),
		Logger:  logger,
	}
	if err = b.Run(ctx); err != nil {
		logger.Print(err)
		return 1
	}
	logger.Print("Bridge stopped")
	return 0
}
