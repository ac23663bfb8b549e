package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "ekklesia",
	Short:        "Ekklesia church management API",
	Long:         "Ekklesia serves the church management API: account registration, login and role-gated access for membro, lider, pastor and admin accounts. The same binary also works as a command-line client for an Ekklesia server.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none, defaults and EKKLESIA_* env only)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
