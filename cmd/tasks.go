package main

import (
	"fmt"

	"finite-life/finitelife/client"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Show your task tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient(apiAddr, apiToken)
		tree, err := c.TaskTree(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderTree(tree))
		return nil
	},
}

var minusOneCmd = &cobra.Command{
	Use:   "minus-one <task-id>",
	Short: "Pull a task's deadline one day closer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient(apiAddr, apiToken)
		taskID := args[0]

		task, err := c.Task(cmd.Context(), taskID)
		if err != nil {
			return err
		}

		projection := client.NewProjection()
		projection.Seed(taskID, task.MinusOneCount)

		out := cmd.OutOrStdout()
		first := true
		count, err := c.MinusOne(cmd.Context(), projection, taskID, func(n int) {
			if first {
				fmt.Fprintf(out, "%s -%d ...\n", task.Title, n)
				first = false
			}
		})
		if err != nil {
			fmt.Fprintf(out, "%s -%d (failed)\n", task.Title, count)
			return err
		}
		fmt.Fprintf(out, "%s -%d\n", task.Title, count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd, minusOneCmd)
}
