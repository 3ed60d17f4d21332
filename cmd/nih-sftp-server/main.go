// Command nih-sftp-server is a stdio SFTP version 3 server. It expects its
// stdin/stdout to already be a framed, authenticated SFTP channel -- an SSH
// server's subsystem exec, typically -- and speaks nothing else: no flags,
// no environment variables, no config files.
package main

import (
	"os"

	"github.com/jevinskie/nih-sftp-server/internal/sftp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func main() {
	// No CLI flags or environment variables are consumed; the logger's
	// only job is to narrate protocol traffic to stderr.
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.DebugLevel)

	debugf := func(format string, args ...interface{}) {
		log.Debugf(format, args...)
	}

	engine := sftp.NewEngine(debugf)
	if err := engine.Run(os.Stdin, os.Stdout); err != nil {
		log.WithError(errors.Cause(err)).Error(err.Error())
		os.Exit(1)
	}
	os.Exit(0)
}
