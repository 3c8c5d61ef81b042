package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/donball360/magenta/fdtable"
	"github.com/donball360/magenta/transports/nullio"
)

// fdtableCmd implements subcommands.Command for "fdtable": builds a
// throwaway table seeded with a handful of null transports and prints
// its occupancy, a smoke test for Table.Bind/ForEach rather than a tool
// meant to inspect a real running process (this module has none).
type fdtableCmd struct {
	seed int
}

func (*fdtableCmd) Name() string     { return "fdtable" }
func (*fdtableCmd) Synopsis() string { return "print a demonstration fd table" }
func (*fdtableCmd) Usage() string    { return "fdtable [-seed N]\n" }

func (c *fdtableCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.seed, "seed", 3, "number of demonstration fds to bind")
}

func (c *fdtableCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log, _ := args[0].(*logrus.Logger)
	if log == nil {
		log = logrus.StandardLogger()
	}

	table := fdtable.New()
	for i := 0; i < c.seed; i++ {
		entry := fdtable.NewEntry(nullio.New(), 0)
		if _, dc, err := table.Bind(entry, -1, 0); err != nil {
			log.WithError(err).Warn("bind failed")
		} else if dc != nil {
			dc.Run()
		}
	}

	table.ForEach(func(fd int, e *fdtable.Entry) {
		fmt.Printf("fd %d: refcount=%d flags=%v\n", fd, e.Refcount(), e.Flags())
	})

	return subcommands.ExitSuccess
}
