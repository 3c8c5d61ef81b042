package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/donball360/magenta/lifecycle"
	"github.com/donball360/magenta/transports/nullio"
)

// serveCmd implements subcommands.Command for "serve": builds a Process
// via lifecycle.Init with a null root, opens a pipe, writes a message
// into it and reads it back out, then tears the process down — an
// end-to-end smoke test of the table/resolver/pipe/wait machinery
// without a real kernel underneath it.
type serveCmd struct {
	message string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "round-trip a message through a pipe and exit" }
func (*serveCmd) Usage() string    { return "serve [-message TEXT]\n" }

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.message, "message", "hello from fdioctl", "message to round-trip through the demonstration pipe")
}

func (c *serveCmd) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	log, _ := args[0].(*logrus.Logger)
	if log == nil {
		log = logrus.StandardLogger()
	}

	p := lifecycle.Init([]lifecycle.StartupHandle{
		{Type: lifecycle.HandleRoot, Transport: nullio.New()},
	}, "/", log)
	defer lifecycle.Shutdown(p)

	rfd, wfd, err := p.Pipe()
	if err != nil {
		log.WithError(err).Error("pipe failed")
		return subcommands.ExitFailure
	}
	defer p.Close(rfd)
	defer p.Close(wfd)

	if _, err := p.Write(wfd, []byte(c.message)); err != nil {
		log.WithError(err).Error("write failed")
		return subcommands.ExitFailure
	}

	buf := make([]byte, 256)
	n, err := p.Read(rfd, buf)
	if err != nil {
		log.WithError(err).Error("read failed")
		return subcommands.ExitFailure
	}

	fmt.Printf("round-tripped %d bytes: %q\n", n, buf[:n])
	return subcommands.ExitSuccess
}
