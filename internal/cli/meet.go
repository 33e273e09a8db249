package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hangapp/hang/internal/client"
)

func newMeetCmd() *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "meet",
		Short: "Create a Google Meet link",
		Long: `Create an instant Google Meet link on your linked Google account.
The link is printed to stdout and copied to the clipboard.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createMeeting(cmd.Context(), "Google Meet", open,
				func(ctx context.Context, c *client.Client) (string, error) {
					return c.CreateMeeting(ctx)
				})
		},
	}

	cmd.Flags().BoolVar(&open, "open", false, "open the meeting link in the browser")
	return cmd
}

func newZoomCmd() *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "zoom",
		Short: "Create a Zoom meeting link",
		Long: `Create an instant Zoom meeting on your linked Zoom account.
The link is printed to stdout and copied to the clipboard.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createMeeting(cmd.Context(), "Zoom", open,
				func(ctx context.Context, c *client.Client) (string, error) {
					return c.CreateZoomMeeting(ctx)
				})
		},
	}

	cmd.Flags().BoolVar(&open, "open", false, "open the meeting link in the browser")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the hang version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hang version %s\n", version)
		},
	}
}

func createMeeting(ctx context.Context, platform string, open bool, create func(context.Context, *client.Client) (string, error)) error {
	cfg, err := client.LoadConfig()
	if err != nil {
		return err
	}

	cache, err := client.NewFileTokenCache()
	if err != nil {
		return err
	}

	c := client.New(cfg, cache, OpenBrowser)

	link, err := create(ctx, c)
	if err != nil {
		return err
	}

	fmt.Println(link)

	if err := CopyToClipboard(link); err == nil {
		fmt.Printf("Copied %s link to clipboard\n", platform)
	}

	if open {
		if err := OpenBrowser(link); err != nil {
			return fmt.Errorf("opening meeting link: %w", err)
		}
	}
	return nil
}
