package cmd

import (
	"fmt"

	"github.com/kerbaras/mangafeed/pkg/integrations"
	"github.com/spf13/cobra"
)

var kindleCmd = &cobra.Command{
	Use:   "kindle [manga-name] [chapters]",
	Short: "Download chapters optimized for an e-reader",
	Long: `Download chapters as EPUBs with pages scaled and converted for an e-reader screen.

Grayscale devices get grayscale JPEG pages; pages are never upscaled.

Examples:
  mangas kindle "One Piece" 1-10 --device kindle-paperwhite
  mangas kindle "Bleach" --next 3 --device kindle-scribe

Use 'mangas kindle --list-devices' to see all supported devices.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Check if user wants to list devices
		if listDevices, _ := cmd.Flags().GetBool("list-devices"); listDevices {
			printDeviceList()
			return nil
		}
		if len(args) == 0 {
			return fmt.Errorf("manga name is required (use --list-devices to see supported devices)")
		}

		deviceID, _ := cmd.Flags().GetString("device")
		if _, ok := integrations.Devices[deviceID]; !ok {
			return fmt.Errorf("unknown device: %q. Use --list-devices to see available options", deviceID)
		}

		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		manga, err := findManga(ctx, s, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("📱 Optimizing '%s' for %s\n", manga.Title, integrations.Devices[deviceID].Name)

		c, downloader, err := s.controller(ctx, manga, deviceID)
		if err != nil {
			return err
		}
		return runDownload(cmd, c, downloader, args)
	},
}

func init() {
	kindleCmd.Flags().StringP("device", "d", "kindle-paperwhite", "E-reader model")
	kindleCmd.Flags().Int("next", 5, "Number of unread chapters to download when no selection is given")
	kindleCmd.Flags().Bool("list-devices", false, "List all supported devices")

	rootCmd.AddCommand(kindleCmd)
}

func printDeviceList() {
	fmt.Println("📱 Supported devices:")
	for _, id := range integrations.DeviceNames() {
		d := integrations.Devices[id]
		color := "color"
		if d.Grayscale {
			color = "grayscale"
		}
		fmt.Printf("  %-20s %-24s %dx%d %s\n", id, d.Name, d.Width, d.Height, color)
	}
}
