package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rigado/smartcoex"
	"github.com/rigado/smartcoex/config"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	exitInvalidArgument = 2
	exitBusy            = 3
	exitFatal           = 4
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func newApp(w io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "coexctl"
	app.Usage = "configure Wi-Fi/Bluetooth smart coex"
	app.Writer = w
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "profile file (.yaml or .json)",
			EnvVar: "COEX_CONFIG",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "trace, debug, info, warn or error; overrides the profile",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "rotated log file; overrides the profile",
		},
	}
	app.Before = setup
	app.Commands = []cli.Command{
		{
			Name:   "configure",
			Usage:  "send the scan parameters to the controller and the coex block to the Wi-Fi driver",
			Flags:  append(requestFlags(), transportFlags()...),
			Action: cmdConfigure,
		},
		{
			Name:   "payload",
			Usage:  "print both blocks without dispatching them",
			Flags:  append(requestFlags(), cli.BoolFlag{Name: "json", Usage: "print the decoded blocks as JSON"}),
			Action: cmdPayload,
		},
		{
			Name:   "table",
			Usage:  "print the priority table",
			Action: cmdTable,
		},
	}
	return app
}

func requestFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "priority, p", Usage: "low, medium or high"},
		cli.UintFlag{Name: "interval, i", Usage: "LE scan interval in slots (0.625 ms)"},
		cli.UintFlag{Name: "window, w", Usage: "LE scan window in slots (0.625 ms)"},
		cli.StringFlag{Name: "interface", Usage: "Wi-Fi interface kind (sta)"},
		cli.UintFlag{Name: "ocf", Usage: "vendor command OCF"},
	}
}

func transportFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "netdev", Usage: "netdev backing the STA interface"},
		cli.IntFlag{Name: "hci", Usage: "use the HCI user channel of hciN (-1: first available)"},
		cli.StringFlag{Name: "h4-uart", Usage: "use an H4 UART at this path"},
		cli.UintFlag{Name: "baud", Usage: "H4 UART baud rate"},
		cli.StringFlag{Name: "h4-socket", Usage: "use an H4 stream at this TCP address"},
		cli.DurationFlag{Name: "wait", Usage: "wait this long for the controller's answer (0: don't wait)"},
	}
}

func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := c.String("log-file"); v != "" {
		cfg.Log.File = v
	}

	l, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	smartcoex.SetLogger(smartcoex.NewLogger(l))

	c.App.Metadata = map[string]interface{}{"config": cfg}
	return nil
}

func newLogger(lc config.LogConfig) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}

	l := logrus.New()
	l.SetLevel(lvl)
	if lc.File == "" {
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		return l, nil
	}

	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	l.SetOutput(&lumberjack.Logger{
		Filename:   lc.File,
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
	})
	return l, nil
}

func profile(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata["config"].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func exitCode(err error) int {
	switch {
	case errors.Cause(err) == smartcoex.ErrInvalidArgument:
		return exitInvalidArgument
	case errors.Cause(err) == smartcoex.ErrBusy:
		return exitBusy
	case smartcoex.IsFatal(err):
		return exitFatal
	default:
		return 1
	}
}
