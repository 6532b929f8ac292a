package main

import (
	"github.com/spf13/cobra"

	applog "spiderbot/pkg/log"
	"spiderbot/pkg/store"
)

// NewClearCmd creates the clear command.
func NewClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all crawled data",
		Long: `Clear empties the CSV record log and removes the frontier snapshot,
so the next crawl starts fresh with no resume state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logLevel, _ := cmd.Flags().GetString("loglevel")
			logger := applog.New(logLevel, nil)
			storagePath, _ := cmd.Flags().GetString("storage")

			recordStore, err := store.NewCSVStore(storagePath, logger)
			if err != nil {
				return err
			}
			defer recordStore.Close()

			if err := recordStore.Clear(); err != nil {
				return err
			}
			logger.Infof("Storage cleared: %s", storagePath)
			return nil
		},
	}
}
