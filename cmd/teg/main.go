package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "teg:", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		With().Timestamp().Logger().Level(level)
}

func newApp(stdout, stderr io.Writer) *cli.App {
	app := &cli.App{
		Name:      "teg",
		Usage:     "threshold ElGamal for encrypted-vote markets",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "group",
				Usage:   "group parameters file, written by 'teg params' (default: RFC 3526 2048-bit group)",
				EnvVars: []string{"TEG_GROUP"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "log debug messages",
				EnvVars: []string{"TEG_VERBOSE"},
			},
		},
		Commands: []*cli.Command{
			paramsCommand,
			keygenCommand,
			combineCommand,
			encryptCommand,
			shareCommand,
			recoverCommand,
			demoCommand,
		},
	}
	app.Before = func(c *cli.Context) error {
		logger := newLogger(stderr, c.Bool("verbose"))
		app.Metadata = map[string]interface{}{"logger": &logger}
		return nil
	}
	return app
}

func loggerFrom(c *cli.Context) *zerolog.Logger {
	if logger, ok := c.App.Metadata["logger"].(*zerolog.Logger); ok {
		return logger
	}
	nop := zerolog.Nop()
	return &nop
}
