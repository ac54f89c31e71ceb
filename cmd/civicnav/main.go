package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var cfgPath string
	var root = &cobra.Command{Use: "civicnav", Short: "Conversational navigator for local civic services", Version: version}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")

	root.AddCommand(serveCMD(&cfgPath), migrateCMD(&cfgPath), chatCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
