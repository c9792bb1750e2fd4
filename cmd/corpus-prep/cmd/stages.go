package cmd

import (
	"github.com/spf13/cobra"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the pipeline stages and their expected outputs",
	RunE:  listStages,
}

func init() {
	rootCmd.AddCommand(stagesCmd)
}

func listStages(cobraCmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	defer func() {
		_ = log.Close()
	}()

	for _, stage := range buildStages(cfg, log) {
		cobraCmd.Printf("%d  %-10s %s\n", stage.ID, stage.Name, stage.ExpectedOutput)
	}

	return nil
}
