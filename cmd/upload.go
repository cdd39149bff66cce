package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"webchat-cli/cmd/utils"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload text files and show what the backend received",
	Long: `Upload one or more UTF-8 text files to the backend's upload endpoint
and print the name and size it reports for each. Binary files are rejected
before anything is sent.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newBackendClient(appConfig, utils.Logger())
		if err != nil {
			return err
		}
		utils.OutputProgress("Uploading %d file(s) to %s\n", len(args), client.Endpoints().Upload)
		return runUpload(cmd.Context(), client, args, utils.Stdout())
	},
}

func runUpload(ctx context.Context, up uploader, paths []string, w io.Writer) error {
	files, err := uploadAttachments(ctx, up, paths)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\n", f.Name, utils.FormatBytes(f.Size))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
