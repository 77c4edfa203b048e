package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finey-app/finey/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "finey",
	Short: "Finey - deposit-backed task accountability",
	Long: `Finey holds a deposit against each task you schedule. Complete the task
on time and the deposit is refunded; miss it and the deposit is forfeited.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("api") {
			apiAddr = "http://" + cfg.Daemon.Listen
		}
		return nil
	},
}

var (
	apiAddr    string
	configPath string
	cfg        *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7467", "API server address")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.finey/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
