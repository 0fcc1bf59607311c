package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/render"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Limit  int
	Before string
	Follow bool
}

// ItemOutput is one timeline row in JSON output.
type ItemOutput struct {
	ID     string        `json:"id"`
	Gap    bool          `json:"gap,omitempty"`
	Status *model.Status `json:"status,omitempty"`
}

// ShowOutput is the result of show.
type ShowOutput struct {
	Items []ItemOutput `json:"items"`

	lines []string
}

func (o ShowOutput) String() string {
	if len(o.lines) == 0 {
		return "(timeline is empty)"
	}
	return strings.Join(o.lines, "\n")
}

func newShowOutput(items []model.TimelineItem) ShowOutput {
	out := ShowOutput{Items: make([]ItemOutput, 0, len(items))}
	for _, it := range items {
		out.lines = append(out.lines, render.ItemLine(it))
		switch it := it.(type) {
		case model.StatusItem:
			st := it.Status
			out.Items = append(out.Items, ItemOutput{ID: st.ID, Status: &st})
		case model.GapItem:
			out.Items = append(out.Items, ItemOutput{ID: it.ID, Gap: true})
		}
	}
	return out
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the cached timeline",
		Long: `Print the cached timeline newest first, without contacting the server.

Gap markers are shown in place; fill them with fill-gap. With --follow the
timeline is printed again after every change to the cache until interrupted.

Example:
  feedkeep show --limit 20
  feedkeep show --format json --before 109876543210`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showTimeline(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 40, "maximum rows to print (0 for all)")
	cmd.Flags().StringVar(&opts.Before, "before", "", "only rows older than this id")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "print again whenever the cache changes")

	return cmd
}

func showTimeline(opts *ShowOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if !opts.Follow {
		items, err := a.store.Timeline(cmd.Context(), a.acct, opts.Limit, opts.Before)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read timeline", err)
		}
		return a.out.Success(newShowOutput(items))
	}

	ctx, cancel := signalContext(cmd.Context(), a.log)
	defer cancel()

	for items, err := range a.store.Watch(ctx, a.acct, opts.Limit) {
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return WrapExitError(ExitFailure, "failed to read timeline", err)
		}
		if err := a.out.Success(newShowOutput(items)); err != nil {
			return err
		}
	}
	return nil
}
