package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teemow/mailtriage/internal/gmail"
)

func newLabelsCmd() *cobra.Command {
	var (
		idsOnly bool
		name    string
	)

	cmd := &cobra.Command{
		Use:   "labels",
		Short: "List Gmail labels",
		Long: `List every label of the account as "name : (id)", sorted by name.
With --name, look up a single label; an unknown name is an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), nil, true, "")
			if err != nil {
				return err
			}
			defer closeApp(cmd.Context(), a)

			return printLabels(cmd.Context(), cmd.OutOrStdout(), a.mailbox.Directory(), name, idsOnly)
		},
	}

	cmd.Flags().BoolVar(&idsOnly, "ids", false, "Print only label IDs")
	cmd.Flags().StringVar(&name, "name", "", "Look up a single label by name, e.g. IOB/libcamera")

	return cmd
}

func printLabels(ctx context.Context, w io.Writer, dir *gmail.LabelDirectory, name string, idsOnly bool) error {
	if name != "" {
		l, err := dir.Label(ctx, name)
		if err != nil {
			return err
		}
		if idsOnly {
			fmt.Fprintln(w, l.ID)
			return nil
		}
		fmt.Fprintf(w, "Name: %s - ID: %s\n", l.Name, l.ID)
		return nil
	}

	labels, err := dir.Labels(ctx)
	if err != nil {
		return err
	}
	names, err := dir.Names(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if idsOnly {
			fmt.Fprintln(w, labels[n].ID)
			continue
		}
		fmt.Fprintln(w, labels[n])
	}
	return nil
}
