package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/cyclepact/core/cmd/api/commands"
	_ "github.com/cyclepact/core/docs"
)

// @title CyclePact API
// @version 1.0
// @description Task scheduling and accountability engine for coaching cycles

// @contact.name CyclePact Support
// @contact.url https://github.com/cyclepact/core

// @license.name MIT
// @license.url https://github.com/cyclepact/core/blob/main/LICENSE

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	rootCmd := &cobra.Command{
		Use:   "cyclepact",
		Short: "CyclePact accountability engine",
		Long:  `CyclePact turns coaching goals into dated obligations: it expands recurrence rules into task instances, classifies them into daily agenda buckets, expires stale deliverables and enforces the check-in lives budget.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewSweepCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
