package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ledgerwatch/shi/cmd/shidx/demo"
)

func main() {
	cmd := rootCommand()
	if err := cmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var records int
	var seed int64

	cmd := &cobra.Command{
		Use:   "shidx",
		Short: "Exercise a subset hash index against a synthetic dataset",
	}
	cmd.PersistentFlags().IntVar(&records, "records", 1000, "number of synthetic records to insert")
	cmd.PersistentFlags().Int64Var(&seed, "seed", 13, "PRNG seed for the synthetic dataset")

	cmd.AddCommand(&cobra.Command{
		Use:   "demo",
		Short: "Build the size and color groups, insert synthetic data, and print query counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := demo.Run(records, seed)
			if err != nil {
				return err
			}
			fmt.Println(summary)
			return nil
		},
	})

	return cmd
}
