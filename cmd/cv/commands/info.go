package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"chunkvault/pkg/content"
	"chunkvault/pkg/policy"
	"chunkvault/pkg/types"
	"chunkvault/pkg/vault"

	"github.com/spf13/cobra"
)

var (
	eventsLimit int
	lsLimit     int
	lsOwner     string
)

var infoCmd = &cobra.Command{
	Use:   "info <id>",
	Short: "Show the state of a content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := CV.Info(cmd.Context(), types.ContentID(args[0]))
		if err != nil {
			return err
		}
		printInfo(cmd.OutOrStdout(), info)
		return nil
	},
}

func printInfo(w io.Writer, i vault.Info) {
	fmt.Fprintf(w, "ID:        %s\n", i.ID)
	fmt.Fprintf(w, "Owner:     %s\n", i.Owner)
	fmt.Fprintf(w, "MimeType:  %s\n", i.MimeType)
	fmt.Fprintf(w, "Policy:    %s\n", describePolicy(i.Policy))
	fmt.Fprintf(w, "State:     %s\n", i.State)
	fmt.Fprintf(w, "Chunks:    %d (%d bytes)\n", i.ChunkCount, i.TotalSize)
	fmt.Fprintf(w, "Uses:      %d\n", i.UsageCount)
	if !i.ManifestHash.IsZero() {
		fmt.Fprintf(w, "Manifest:  %s\n", i.ManifestHash)
	}
	fmt.Fprintf(w, "Created:   %s\n", i.CreatedAt.Local().Format(time.RFC3339))
}

func describePolicy(s policy.Spec) string {
	switch s.Kind {
	case policy.KindCapped:
		return fmt.Sprintf("capped (max %d uses)", s.MaxUses)
	case policy.KindPayPerUse:
		return fmt.Sprintf("pay-per-use (%d per use)", s.PricePerUse)
	case policy.KindWhitelisted:
		ids := make([]string, len(s.Whitelist))
		for i, id := range s.Whitelist {
			ids[i] = id.String()
		}
		return fmt.Sprintf("whitelisted [%s]", strings.Join(ids, ", "))
	}
	return s.Kind.String()
}

var catCmd = &cobra.Command{
	Use:   "cat <id>",
	Short: "Write the content's bytes to stdout in chunk order",
	Long:  `Reassemble the content from its chunks. Redirect to a file for binary content: cv cat <id> > out.bin`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := CV.Export(cmd.Context(), types.ContentID(args[0]), cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("cat failed: %w", err)
		}
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events <id>",
	Short: "Show the observable events of a content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := CV.Events(cmd.Context(), types.ContentID(args[0]), eventsLimit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No events yet.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tEVENT\tDETAIL")
		for _, e := range events {
			var detail string
			switch e.Kind {
			case content.EventSealed:
				detail = fmt.Sprintf("chunks=%d", e.ChunkCount)
			case content.EventUsed:
				detail = fmt.Sprintf("caller=%s value=%d count=%d", e.Caller, e.Value, e.UsageCount)
			case content.EventWhitelisted:
				detail = fmt.Sprintf("identity=%s", e.Identity)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.At.Local().Format(time.DateTime), e.Kind, detail)
		}
		return tw.Flush()
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List contents owned by an identity (default: yourself)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner := types.Identity(lsOwner)
		if owner.IsZero() {
			me, err := caller()
			if err != nil {
				return err
			}
			owner = me
		}
		infos, err := CV.ListByOwner(cmd.Context(), owner, lsLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATE\tPOLICY\tCHUNKS\tSIZE\tUSES")
		for _, i := range infos {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
				i.ID, i.State, i.Policy.Kind, i.ChunkCount, i.TotalSize, i.UsageCount)
		}
		return tw.Flush()
	},
}

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 0, "Maximum number of events (0 = all)")
	lsCmd.Flags().IntVar(&lsLimit, "limit", 50, "Maximum number of contents")
	lsCmd.Flags().StringVar(&lsOwner, "owner", "", "Owner to list (default: --as identity)")

	rootCmd.AddCommand(infoCmd, catCmd, eventsCmd, lsCmd)
}
