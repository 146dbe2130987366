package main

import (
	"fmt"
	"time"

	"finite-life/finitelife/models"
	"finite-life/finitelife/services"

	"github.com/spf13/cobra"
)

var (
	gridBirthDate      string
	gridLifeExpectancy int
	gridToday          string
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Draw a life calendar offline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		grid, err := offlineGrid(gridBirthDate, gridLifeExpectancy, gridToday, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderGrid(grid, gridLifeExpectancy))
		return nil
	},
}

func init() {
	gridCmd.Flags().StringVar(&gridBirthDate, "birth-date", "", "birth date as YYYY-MM-DD")
	gridCmd.Flags().IntVar(&gridLifeExpectancy, "weeks", 4000, "life expectancy in weeks")
	gridCmd.Flags().StringVar(&gridToday, "today", "", "draw the grid as of this date (YYYY-MM-DD)")
	gridCmd.MarkFlagRequired("birth-date")
	rootCmd.AddCommand(gridCmd)
}

func offlineGrid(birth string, lifeExpectancy int, today string, now time.Time) (services.LifeGrid, error) {
	birthDate, err := models.ParseDate(birth)
	if err != nil {
		return services.LifeGrid{}, fmt.Errorf("invalid --birth-date: %w", err)
	}
	if lifeExpectancy < 1 || lifeExpectancy > 6000 {
		return services.LifeGrid{}, fmt.Errorf("--weeks must be between 1 and 6000")
	}
	if today != "" {
		day, err := models.ParseDate(today)
		if err != nil {
			return services.LifeGrid{}, fmt.Errorf("invalid --today: %w", err)
		}
		now = day.In(time.Local)
	}
	return services.BuildLifeGrid(birthDate, lifeExpectancy, now), nil
}
