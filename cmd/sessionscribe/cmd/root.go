package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"sessionscribe/cmd/sessionscribe/cmd/serve"
	"sessionscribe/cmd/sessionscribe/cmd/sweep"
	"sessionscribe/cmd/sessionscribe/cmd/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sessionscribe",
	Short: "Chunked audio upload and transcription service",
	Long: `Chunked audio upload and transcription service.
- Clients upload recorded session audio in chunks
- Finalize reassembles the chunks and transcribes the audio
- Expired audio is removed by a scheduled sweep; transcripts are kept`,
	TraverseChildren: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serve.Cmd)
	rootCmd.AddCommand(sweep.Cmd)
	rootCmd.AddCommand(version.Cmd)
}
