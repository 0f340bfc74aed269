// Package cli is the terminal view of the shared playlist.
package cli

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Masbahul-bari/audio-player/internal/client"
	"github.com/Masbahul-bari/audio-player/internal/config"
	"github.com/Masbahul-bari/audio-player/internal/reconcile"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags and the state they resolve to.
type RootOptions struct {
	ConfigPath string
	Format     string
	APIURL     string
	User       string

	cfg config.Client
	log *logrus.Logger
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Shared playlist client",
		Long:  "Browse, edit and follow a collaborative playlist kept in sync with every other listener.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "playlist.yaml", "client config file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api", "", "Playlist Service URL (overrides config)")
	cmd.PersistentFlags().StringVarP(&opts.User, "user", "u", "", "name recorded as added_by (overrides config)")

	cmd.AddCommand(NewTracksCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewMoveCommand(opts))
	cmd.AddCommand(NewVoteCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewPlayCommand(opts))
	cmd.AddCommand(NewSkipCommand(opts))
	cmd.AddCommand(NewRebalanceCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

func (o *RootOptions) load() error {
	if !isValidFormat(o.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
	}
	cfg, err := config.LoadClient(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.APIURL != "" {
		cfg.APIURL = o.APIURL
	}
	if o.User != "" {
		cfg.UserName = o.User
	}
	log, err := config.NewLogger(cfg.LogLevel, "text")
	if err != nil {
		return err
	}
	o.cfg, o.log = cfg, log
	return nil
}

func (o *RootOptions) client() *client.Client {
	opts := []client.Option{}
	if o.cfg.Token != "" {
		opts = append(opts, client.WithToken(o.cfg.Token))
	}
	return client.New(o.cfg.APIURL, opts...)
}

// startEngine runs an engine over the service until ctx ends and loads the
// current list into it.
func (o *RootOptions) startEngine(ctx context.Context) (*reconcile.Engine, error) {
	eng := reconcile.New(o.client(), reconcile.Config{RequestTimeout: o.cfg.RequestTimeout}, o.log)
	go func() { _ = eng.Run(ctx) }()
	if err := eng.Resync(ctx); err != nil {
		return nil, err
	}
	return eng, nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
