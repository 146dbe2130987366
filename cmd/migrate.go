package main

import (
	"log"

	"finite-life/finitelife/config"
	"finite-life/finitelife/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Setup(config.Load())
		if err != nil {
			return err
		}
		defer db.Close()
		log.Println("Schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
