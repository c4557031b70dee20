// Package config parses the core host's command-line surface: two
// required positionals (modules_dir, data_dir) plus optional tuning
// flags, using github.com/urfave/cli/v2 - the CLI exists here purely to
// read those two positionals and a handful of knobs, so urfave/cli's
// declarative flag/arg model is adopted in place of the teacher's ad hoc
// flag.FlagSet, matching the pack's broader CLI idiom.
package config

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

// Config is the fully parsed host configuration.
type Config struct {
	ModulesDir string
	DataDir    string

	ThreadTimeout time.Duration
	Verbose       bool
}

const defaultThreadTimeout = 2 * time.Second

// Parse builds a *cli.App around fn and runs it against args (typically
// os.Args). Exactly two positional arguments are required; any other
// count is a distinctly non-zero exit via cli's own error path.
func Parse(args []string, fn func(Config) error) error {
	cfg := Config{ThreadTimeout: defaultThreadTimeout}

	app := &cli.App{
		Name:      "aergo",
		Usage:     "in-process module bus and lifecycle manager",
		ArgsUsage: "modules_dir data_dir",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "thread-timeout",
				Value:       defaultThreadTimeout,
				Usage:       "worker thread start/stop timeout",
				Destination: &cfg.ThreadTimeout,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Usage:       "enable info-level logging",
				Destination: &cfg.Verbose,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected exactly 2 positional arguments (modules_dir data_dir), got %d", c.NArg())
			}
			cfg.ModulesDir = c.Args().Get(0)
			cfg.DataDir = c.Args().Get(1)
			return fn(cfg)
		},
	}

	return app.Run(args)
}
