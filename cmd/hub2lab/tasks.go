package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sevigo/hub2lab/internal/core"
)

var resyncCmd = &cobra.Command{
	Use:   "resync [project-id] [pipeline-id]",
	Short: "Re-post the GitHub checks and statuses of a GitLab pipeline",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := positiveArgs(args)
		if err != nil {
			return err
		}
		app, err := initApp()
		if err != nil {
			return err
		}
		return runTask(cmd, app.Run, app.Tasks.ResyncPipeline(ids[0], ids[1]))
	},
}

var retryActor string

var retryCmd = &cobra.Command{
	Use:   "retry [project-id] [job-id]",
	Short: "Retry a GitLab job and follow its pipeline until it finishes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := positiveArgs(args)
		if err != nil {
			return err
		}
		app, err := initApp()
		if err != nil {
			return err
		}
		return runTask(cmd, app.Run, app.Tasks.RetryJob(ids[0], ids[1], retryActor))
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	retryCmd.Flags().StringVar(&retryActor, "actor", "hub2lab-cli", "name recorded as the initiator of the retry")
	rootCmd.AddCommand(resyncCmd, retryCmd)
}

type runner func(ctx context.Context, task core.Task) error

func runTask(cmd *cobra.Command, run runner, task core.Task) error {
	titleColor.Printf("%s %s\n", task.Name(), task.Key())
	if err := run(cmd.Context(), task); err != nil {
		errorColor.Printf("✗ %s\n", err)
		return err
	}
	successColor.Println("✓ done, see the service log for the outcome of each step")
	return nil
}

func positiveArgs(args []string) ([]int, error) {
	ids := make([]int, len(args))
	for i, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%q is not a valid id", arg)
		}
		ids[i] = id
	}
	return ids, nil
}
