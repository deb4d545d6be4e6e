package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edumarques81/stellar-playerswitch/internal/config"
	"github.com/edumarques81/stellar-playerswitch/internal/domain/players"
	"github.com/edumarques81/stellar-playerswitch/internal/domain/switcher"
	"github.com/edumarques81/stellar-playerswitch/internal/version"
)

// cli carries state shared by the commands.
type cli struct {
	v    *viper.Viper
	cfg  *config.Config
	opts daemonOptions
}

func newRootCmd(opts daemonOptions) *cobra.Command {
	c := &cli{v: config.New(), opts: opts}

	root := &cobra.Command{
		Use:           "playerswitchd",
		Short:         "Switches the active audio player service",
		Long:          "playerswitchd stops the running player service, enables the requested one and confirms it started.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "Path to a YAML config file")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := c.v.BindPFlag("debug", root.PersistentFlags().Lookup("debug")); err != nil {
		log.Error().Err(err).Msg("Error binding debug flag")
	}

	root.AddCommand(c.serveCmd(), c.switchCmd(), c.statusCmd(), c.servicesCmd(), c.versionCmd())
	return root
}

func (c *cli) load(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.Load(c.v, path)
	if err != nil {
		return err
	}
	c.cfg = cfg
	setupLogging(cfg.Debug)
	return nil
}

func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func (c *cli) switchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <service>",
		Short: "Switch to a player service and wait for confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDaemon(cmd.Context(), c.cfg, c.opts)
			if err != nil {
				return err
			}
			defer d.Close()

			res, err := d.switcher.Switch(cmd.Context(), args[0])
			if err != nil {
				out := switcher.ErrorResult(err)
				_ = printJSON(cmd, out)
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current player status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := newStatusService(c.cfg, newRunner(c.cfg, c.opts), players.Default())
			return printJSON(cmd, st.Current(cmd.Context()))
		},
	}
}

func (c *cli) servicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List the known player services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tPROCESS\tSCRIPT")
			for _, e := range players.Default().Entries() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Key, e.Process, e.Script)
			}
			return w.Flush()
		},
	}
}

func (c *cli) versionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Version needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			if format == "json" {
				return printJSON(cmd, info)
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return nil
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
