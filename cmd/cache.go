package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/mailtriage/internal/cache"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or prune the local thread cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show the cache backend, location and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), nil, false, "")
			if err != nil {
				return err
			}
			defer closeApp(cmd.Context(), a)

			st, err := a.store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			printCacheStats(cmd.OutOrStdout(), st)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "forget <thread-id>...",
		Short: "Drop cached threads so the next run fetches them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), nil, false, "")
			if err != nil {
				return err
			}
			defer closeApp(cmd.Context(), a)

			for _, id := range args {
				if err := a.store.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("failed to forget thread %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", id)
			}
			return nil
		},
	})

	return cmd
}

func printCacheStats(w io.Writer, st cache.Stats) {
	fmt.Fprintf(w, "Backend: %s\n", st.Backend)
	fmt.Fprintf(w, "Path:    %s\n", st.Path)
	fmt.Fprintf(w, "Threads: %d\n", st.Entries)
	fmt.Fprintf(w, "Bytes:   %d\n", st.Bytes)
	if st.Entries > 0 && !st.Oldest.IsZero() {
		fmt.Fprintf(w, "Oldest:  %s\n", st.Oldest.Local().Format(time.DateTime))
		fmt.Fprintf(w, "Newest:  %s\n", st.Newest.Local().Format(time.DateTime))
	}
}
