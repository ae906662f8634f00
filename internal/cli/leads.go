package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"presales/internal/models"
	"presales/internal/storage"

	"github.com/spf13/cobra"
)

var (
	leadsLimit int
	leadsJSON  bool
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List captured leads",
	Long: `List the most recent leads, newest first.

Examples:
  presales leads
  presales leads --limit 10 --json`,
	Args: cobra.NoArgs,
	RunE: runLeads,
}

func init() {
	leadsCmd.Flags().IntVarP(&leadsLimit, "limit", "n", 20, "maximum number of leads")
	leadsCmd.Flags().BoolVar(&leadsJSON, "json", false, "print JSON")
}

func runLeads(cmd *cobra.Command, args []string) error {
	leads, err := storage.NewLeadRepo(db, cfg.Database.Driver).List(context.Background(), leadsLimit)
	if err != nil {
		return fmt.Errorf("list leads: %w", err)
	}
	if leadsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(leads)
	}
	if len(leads) == 0 {
		fmt.Println("No leads yet.")
		return nil
	}
	for _, l := range leads {
		fmt.Printf("#%d  %s  %s  <%s>  %s\n",
			l.ID,
			l.Timestamp.Format("2006-01-02 15:04"),
			orDash(models.StringValue(l.ClientName)),
			orDash(models.StringValue(l.ContactInformation)),
			orDash(models.StringValue(l.ProjectType)))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
