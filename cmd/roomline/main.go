// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// roomline is a terminal Matrix client. It restores the session saved
// by a previous run, or shows a login form, then lists the account's
// rooms and follows the selected room's timeline live.
//
// The terminal belongs to the UI while it runs, so logs go to the file
// named by --log-file (or log.file in the config). Warnings and errors
// are also shown in the status bar.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/roomline/lib/config"
	"github.com/bureau-foundation/roomline/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command-line flags. Non-empty values override the
// config file.
type options struct {
	configPath    string
	sessionFile   string
	logFile       string
	homeserverURL string
	userID        string
	passwordFile  string
}

func run() error {
	var opts options

	flagSet := pflag.NewFlagSet("roomline", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to the YAML config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&opts.sessionFile, "session-file", "", "path to the session file")
	flagSet.StringVar(&opts.logFile, "log-file", "", "write log records to this file")
	flagSet.StringVar(&opts.homeserverURL, "homeserver", "", "homeserver base URL (default: https://<server name of the user ID>)")
	flagSet.StringVar(&opts.userID, "user", "", "log in as this user ID without the login form (requires --password-file)")
	flagSet.StringVar(&opts.passwordFile, "password-file", "", "read the password for --user from this file (- for stdin)")
	flagSet.Bool("version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if showVersion, _ := flagSet.GetBool("version"); showVersion {
		fmt.Println("roomline " + version.Full())
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}
	if (opts.userID == "") != (opts.passwordFile == "") {
		return errors.New("--user and --password-file must be given together")
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("roomline needs an interactive terminal")
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return runApplication(ctx, cfg, opts)
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.sessionFile != "" {
		cfg.SessionFile = opts.sessionFile
	}
	if opts.logFile != "" {
		cfg.Log.File = opts.logFile
	}
	if opts.homeserverURL != "" {
		cfg.HomeserverURL = opts.homeserverURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `roomline: a terminal Matrix client.

On start, roomline restores the session saved by a previous run. With no
saved session it shows a login form, or logs in non-interactively when
--user and --password-file are given.

Usage:
  roomline [flags]

Examples:
  # Log in through the form and keep a debug log
  roomline --log-file /tmp/roomline.log

  # Log in against a homeserver that is not at https://<server name>
  roomline --homeserver https://matrix-client.example.org

  # Scripted login, password from a file
  roomline --user @alice:example.org --password-file ~/.config/roomline/password

Keys:
  tab         switch between the room list and the composer
  enter       open the selected room, or send the message
  C-u / C-d   scroll the timeline (C-u at the top loads older messages)
  C-b         load older messages
  esc         quit

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
