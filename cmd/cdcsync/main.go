package main

import (
	"os"
	"path"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/cdcsync/internal/cli"
	"github.com/julianstephens/cdcsync/internal/logger"
)

var (
	version = "cdcsync v0.1.0"
)

const (
	defaultAppDir        = ".cdcsync"
	defaultLogDir        = "logs"
	defaultLogFileName   = "cdcsync.log"
	defaultLogMaxSize    = 10 // megabytes
	defaultLogMaxBackups = 5
)

type LogOpts struct {
	Level  string `help:"Logging level (debug, info, warn, error)" default:"info" envvar:"CDCSYNC_LOG_LEVEL"`
	Debug  bool   `help:"Enable debug logging (overrides --level)"                envvar:"CDCSYNC_DEBUG"`
	Stream bool   `help:"Log to stdout/stderr in addition to file"                envvar:"CDCSYNC_LOG_STREAM"`
}

type CLI struct {
	Replicate cli.ReplicateCmd `cmd:"" help:"Continuously replicate an observed table into a target database"`
	Observe   cli.ObserveCmd   `cmd:"" help:"Stream one observation epoch and print reconstructed transactions"`
	Offsets   cli.OffsetsCmd   `cmd:"" help:"Print persisted replication checkpoints"`

	LogOpts LogOpts          `embed:"" prefix:"log-" help:"Logging options"`
	Version kong.VersionFlag `                       help:"Show version information" short:"V"`
}

func createLogger(opts LogOpts) (logger.Logger, error) {
	var level string
	if opts.Debug {
		level = "debug"
	} else {
		level = opts.Level
	}

	consoleLogger := logger.NewConsoleLogger(level)

	if opts.Stream {
		return consoleLogger, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	logDir := path.Join(homeDir, defaultAppDir, defaultLogDir)
	fileLogger, err := logger.NewFileLogger(
		logDir,
		defaultLogFileName,
		defaultLogMaxSize,
		defaultLogMaxBackups,
	)
	if err != nil {
		return nil, err
	}

	multiLogger := logger.NewMultiLogger(fileLogger, consoleLogger)
	return multiLogger, nil
}

func main() {
	cliApp := &CLI{}
	ctx := kong.Parse(cliApp,
		kong.Name("cdcsync"),
		kong.Description("Change-data-capture replication for SingleStore"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)

	lg, err := createLogger(cliApp.LogOpts)
	if err != nil {
		ctx.FatalIfErrorf(err)
	}

	defer func() {
		if c, ok := lg.(logger.Closeable); ok {
			_ = c.Close()
		}
	}()

	err = ctx.Run(&cli.Context{Logger: lg})
	ctx.FatalIfErrorf(err)
}
