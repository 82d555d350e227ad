package sweep

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sessionscribe/internal/app"
)

// Cmd represents the sweep command
var Cmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one expiry sweep batch and exit",
	Long: `Run one expiry sweep batch and exit.

Deletes audio blobs and upload records whose retention deadline has passed.
Transcripts already stored on the session records are not touched. Intended
for cron or one-off operator use; the same sweep is reachable over HTTP at
POST /api/v1/cleanup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.New(cmd.Context())
		if err != nil {
			return err
		}
		defer application.Close()

		report, err := application.Sweeper.Sweep(cmd.Context())
		if err != nil {
			return err
		}

		out, err := json.Marshal(report)
		if err != nil {
			return err
		}
		fmt.Println(string(out))

		if len(report.Errors) > 0 {
			os.Exit(1)
		}
		return nil
	},
}
