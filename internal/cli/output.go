package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Masbahul-bari/audio-player/internal/channel"
	"github.com/Masbahul-bari/audio-player/internal/model"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func renderTracks(w io.Writer, format string, tracks []model.Track) error {
	if format == "json" {
		return writeJSON(w, tracks)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tARTIST\tGENRE\tLENGTH")
	for _, t := range tracks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Title, t.Artist, t.Genre, formatDuration(time.Duration(t.DurationSeconds)*time.Second))
	}
	return tw.Flush()
}

func renderEntries(w io.Writer, format string, entries []model.Entry) error {
	if format == "json" {
		return writeJSON(w, entries)
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "playlist is empty")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\t\tID\tTITLE\tARTIST\tVOTES\tADDED BY")
	for i, e := range entries {
		marker := ""
		if e.IsPlaying {
			marker = ">"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%+d\t%s\n",
			i, marker, e.ID, e.Track.Title, e.Track.Artist, e.Votes, e.AddedBy)
	}
	return tw.Flush()
}

func renderEntry(w io.Writer, format, verb string, e *model.Entry) error {
	if format == "json" {
		return writeJSON(w, e)
	}
	_, err := fmt.Fprintf(w, "%s %s (%s) at position %g\n", verb, e.ID, e.Track.Title, e.Position)
	return err
}

func renderDone(w io.Writer, format, msg string) error {
	if format == "json" {
		return writeJSON(w, map[string]any{"status": "ok", "message": msg})
	}
	_, err := fmt.Fprintln(w, msg)
	return err
}

// describeSession is the connection banner of the live view.
func describeSession(s channel.Session) string {
	switch {
	case s.State == channel.Open:
		return "live"
	case s.Exhausted:
		return "offline: press r to reconnect"
	case s.State == channel.Connecting && s.RetryCount > 0:
		return fmt.Sprintf("reconnecting (attempt %d)", s.RetryCount)
	case s.State == channel.Connecting:
		return "connecting"
	}
	return "disconnected"
}

// progressBar renders elapsed/total as a fixed width bar.
func progressBar(elapsed, total time.Duration, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	filled := int(float64(width) * float64(elapsed) / float64(total))
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}
