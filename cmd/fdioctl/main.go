// Command fdioctl is a small diagnostic CLI over the fdio core: it can
// print a demonstration fd table and run a minimal demonstration that
// round-trips a message through a pipe end to end (spec.md §6
// "ambient stack: configuration"). It is grounded on runsc/cli's use of
// google/subcommands to register and dispatch CLI subcommands.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&fdtableCmd{}, "")
	subcommands.Register(&serveCmd{}, "")

	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	os.Exit(int(subcommands.Execute(context.Background(), log)))
}
