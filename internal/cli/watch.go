package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Masbahul-bari/audio-player/internal/channel"
	"github.com/Masbahul-bari/audio-player/internal/playback"
	"github.com/Masbahul-bari/audio-player/internal/reconcile"
)

const clearScreen = "\033[H\033[2J"

func NewWatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the playlist live",
		Long: `Follow the playlist live.

The view re-renders on every change made by any listener. Type r and Enter
to reconnect after the connection gave up, q and Enter to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (o *RootOptions) channelConfig() channel.Config {
	cfg := channel.DefaultConfig(o.cfg.WSURL)
	cfg.HeartbeatInterval = o.cfg.HeartbeatInterval
	cfg.ReadTimeout = o.cfg.ReadTimeout
	cfg.MaxRetries = o.cfg.MaxRetries
	if o.cfg.Token != "" {
		cfg.Header = http.Header{"Authorization": []string{"Bearer " + o.cfg.Token}}
	}
	return cfg
}

func watch(ctx context.Context, opts *RootOptions, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eng := reconcile.New(opts.client(), reconcile.Config{RequestTimeout: opts.cfg.RequestTimeout}, opts.log)
	mgr := channel.NewManager(opts.channelConfig(), nil, eng, opts.log)
	player := playback.New(eng, 0, opts.log)

	updates, unsubscribe := eng.Subscribe()
	defer unsubscribe()

	go func() { _ = eng.Run(ctx) }()
	go func() { _ = mgr.Run(ctx) }()
	go player.Run(ctx)
	go readCommands(in, mgr, cancel)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-updates:
			if err := renderLive(out, opts.Format, u, player, eng.Pending()); err != nil {
				return err
			}
		case <-ticker.C:
			if opts.Format == "json" {
				continue
			}
			u := reconcile.Update{View: eng.View(), Session: eng.Session()}
			if err := renderLive(out, opts.Format, u, player, eng.Pending()); err != nil {
				return err
			}
		}
	}
}

// readCommands handles line commands typed during watch.
func readCommands(in io.Reader, mgr *channel.Manager, quit func()) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		switch strings.TrimSpace(strings.ToLower(sc.Text())) {
		case "r":
			mgr.Retry()
		case "q":
			quit()
			return
		}
	}
}

type liveView struct {
	Session string  `json:"session"`
	Playing string  `json:"playing,omitempty"`
	Elapsed float64 `json:"elapsed_seconds"`
	Pending int     `json:"pending"`
	Entries any     `json:"entries"`
}

func renderLive(w io.Writer, format string, u reconcile.Update, player *playback.Player, pending int) error {
	entries := u.View.Entries()
	active, playing := u.View.Active()
	_, elapsed := player.Elapsed()

	if format == "json" {
		v := liveView{
			Session: u.Session.State.String(),
			Pending: pending,
			Entries: entries,
		}
		if playing {
			v.Playing = active.ID
			v.Elapsed = elapsed.Seconds()
		}
		return writeJSON(w, v)
	}

	fmt.Fprint(w, clearScreen)
	fmt.Fprintf(w, "Shared playlist  [%s]", describeSession(u.Session))
	if pending > 0 {
		fmt.Fprintf(w, "  %d pending", pending)
	}
	fmt.Fprintln(w)
	if playing {
		fmt.Fprintf(w, "Now playing: %s - %s  %s %s / %s\n",
			active.Track.Title, active.Track.Artist,
			progressBar(elapsed, active.Duration(), 30),
			formatDuration(elapsed), formatDuration(active.Duration()))
	}
	fmt.Fprintln(w)
	return renderEntries(w, format, entries)
}
