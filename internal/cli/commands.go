package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Masbahul-bari/audio-player/internal/model"
)

func NewTracksCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tracks",
		Short: "List the track library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracks, err := opts.client().ListTracks(cmd.Context())
			if err != nil {
				return err
			}
			return renderTracks(cmd.OutOrStdout(), opts.Format, tracks)
		},
	}
}

func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the playlist in play order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.startEngine(cmd.Context())
			if err != nil {
				return err
			}
			return renderEntries(cmd.OutOrStdout(), opts.Format, eng.View().Entries())
		},
	}
}

func NewAddCommand(opts *RootOptions) *cobra.Command {
	var at int

	cmd := &cobra.Command{
		Use:   "add <track-id>",
		Short: "Queue a library track",
		Long: `Queue a library track.

Without --at the track goes to the end of the playlist.

Example:
  playlist add track-8 --at 0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tracks, err := opts.client().ListTracks(ctx)
			if err != nil {
				return err
			}
			var track *model.Track
			for i := range tracks {
				if tracks[i].ID == args[0] {
					track = &tracks[i]
					break
				}
			}
			if track == nil {
				return fmt.Errorf("no track %q in the library", args[0])
			}

			eng, err := opts.startEngine(ctx)
			if err != nil {
				return err
			}
			index := at
			if index < 0 {
				index = eng.View().Len()
			}
			e, err := eng.Insert(ctx, *track, index, opts.cfg.UserName)
			if err != nil {
				return err
			}
			return renderEntry(cmd.OutOrStdout(), opts.Format, "added", e)
		},
	}

	cmd.Flags().IntVar(&at, "at", -1, "display index to insert at")

	return cmd
}

func NewMoveCommand(opts *RootOptions) *cobra.Command {
	var server bool

	cmd := &cobra.Command{
		Use:   "move <entry-id> <index>",
		Short: "Move an entry to a display index",
		Long: `Move an entry to a display index.

By default the key is computed locally from the neighbours the client sees.
With --server the service computes it from its own list instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("index must be a number: %w", err)
			}
			if server {
				entries, err := opts.client().Reorder(cmd.Context(), args[0], index)
				if err != nil {
					return err
				}
				return renderEntries(cmd.OutOrStdout(), opts.Format, entries)
			}
			eng, err := opts.startEngine(cmd.Context())
			if err != nil {
				return err
			}
			if err := eng.Move(cmd.Context(), args[0], index); err != nil {
				return err
			}
			return renderEntries(cmd.OutOrStdout(), opts.Format, eng.View().Entries())
		},
	}

	cmd.Flags().BoolVar(&server, "server", false, "let the service compute the new key")

	return cmd
}

func NewVoteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vote <entry-id> [up|down]",
		Short: "Vote an entry up or down",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := model.Up
			if len(args) == 2 {
				d, err := model.ParseDirection(args[1])
				if err != nil {
					return err
				}
				dir = d
			}
			eng, err := opts.startEngine(cmd.Context())
			if err != nil {
				return err
			}
			if err := eng.Vote(cmd.Context(), args[0], dir); err != nil {
				return err
			}
			e, _ := eng.View().Get(args[0])
			return renderDone(cmd.OutOrStdout(), opts.Format, fmt.Sprintf("%s now has %d votes", args[0], e.Votes))
		},
	}
}

func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <entry-id>",
		Aliases: []string{"rm"},
		Short:   "Remove an entry from the playlist",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.startEngine(cmd.Context())
			if err != nil {
				return err
			}
			if err := eng.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			return renderDone(cmd.OutOrStdout(), opts.Format, "removed "+args[0])
		},
	}
}

func NewPlayCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "play <entry-id>",
		Short: "Make an entry the one playing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.startEngine(cmd.Context())
			if err != nil {
				return err
			}
			if err := eng.Activate(cmd.Context(), args[0]); err != nil {
				return err
			}
			return renderDone(cmd.OutOrStdout(), opts.Format, "playing "+args[0])
		},
	}
}

func NewSkipCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "skip",
		Short: "Advance to the next entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.startEngine(cmd.Context())
			if err != nil {
				return err
			}
			if err := eng.Skip(cmd.Context()); err != nil {
				return err
			}
			active, _ := eng.View().Active()
			return renderDone(cmd.OutOrStdout(), opts.Format, "playing "+active.ID)
		},
	}
}

func NewRebalanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebalance",
		Short: "Renumber every position in the current order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := opts.client().Rebalance(cmd.Context())
			if err != nil {
				return err
			}
			return renderEntries(cmd.OutOrStdout(), opts.Format, entries)
		},
	}
}
