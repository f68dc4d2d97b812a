// Command e2eechat is a terminal client for the end-to-end encrypted
// message server.
//
// Usage:
//
//	e2eechat [-config file] [-env-file file] <command> [args]
//
// Commands:
//
//	init                 create this device's key pair and register it
//	whoami               print this device's public key and safety words
//	users                list users known to the server
//	verify <user>        print a user's safety words
//	send <user> <text>   send a message
//	read <user>          print the conversation with a user
//	watch <user>         stream new messages until interrupted
//	backup               print a passphrase-protected backup of the key
//	restore [-in file]   restore the key from a backup
//
// Settings come from the YAML file named by -config or E2EE_CONFIG and are
// overridden by E2EE_* environment variables, which may also be placed in a
// .env file. The backup passphrase is read from E2EE_PASSPHRASE or prompted
// for on the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args, DefaultConfig()); err != nil {
		fatal("%v", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "e2eechat: "+format+"\n", args...)
	os.Exit(1)
}
