// Package cli implements the crudmodel command line tool.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mickamy/crudmodel/internal/config"
	"github.com/mickamy/crudmodel/orm"
)

// Version is set at build time.
var Version = "dev"

type app struct {
	cfgFile   string
	verbosity int
	cfg       *config.Config
}

// NewRootCommand returns the crudmodel command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "crudmodel",
		Short:         "crudmodel - reflection based CRUD over database/sql",
		Long:          `crudmodel maps Go structs onto tables and runs CRUD statements against named MySQL, PostgreSQL or SQLite connections.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			setupLogging(cmd.ErrOrStderr(), a.verbosity, cfg.LogLevel)
			if cfg.File != "" {
				log.Debug().Str("file", cfg.File).Msg("Loaded config file")
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./"+config.DefaultFile+")")
	pf.StringP("connection", "c", "", "connection key to use (default from config)")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error")
	pf.Bool("debug", false, "log every SQL statement")
	pf.Int("max-relation-depth", orm.DefaultMaxDepth, "foreign key hydration depth, 0 disables")
	pf.String("table-naming", "", "table naming: plural or lower")
	pf.CountVarP(&a.verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")

	root.AddCommand(
		newPingCommand(a),
		newQueryCommand(a),
		newDemoCommand(a),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, _ []string) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "crudmodel %s\n", Version)
			},
		},
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		return 1
	}
	return 0
}

func setupLogging(w io.Writer, verbosity int, level string) {
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	switch {
	case verbosity == 1:
		lvl = zerolog.DebugLevel
	case verbosity >= 2:
		lvl = zerolog.TraceLevel
	}
	zerolog.SetGlobalLevel(lvl)

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// open connects to the configured default connection and returns a Model
// over it. The caller closes both.
func (a *app) open(ctx context.Context) (*orm.ConnectionHandler, *orm.Model, error) {
	opts := []orm.HandlerOption{
		orm.WithDefaultKey(a.cfg.Default),
		orm.WithLogger(log.Logger),
	}
	if a.cfg.Debug {
		opts = append(opts, orm.WithQueryLogger(orm.NewZerologLogger(log.Logger)))
	}

	h, err := orm.NewConnectionHandler(ctx, a.cfg.ConnConfigs(), opts...)
	if err != nil {
		return nil, nil, err
	}
	m := orm.NewModel(h, orm.LogErrorHandler{Logger: log.Logger}, a.cfg.ModelOptions()...)
	return h, m, nil
}

func closeAll(h *orm.ConnectionHandler, m *orm.Model) {
	if err := m.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close statements")
	}
	if err := h.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close connection")
	}
}
