package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "brooks",
	Short: "Map and pin session service",
	Long: `Brooks signs the user in, locates them, shows the pins around them on
a Leaflet or Google map, and creates new pins from a long-press or a
double-click on the map.`,
	SilenceUsage: true,
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	rootCmd.Version = version
	rootCmd.AddCommand(serveCmd, bboxCmd, eventsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
