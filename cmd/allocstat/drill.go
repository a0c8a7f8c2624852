package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func newDrillCmd(load loader) *cobra.Command {
	var location, product string

	cmd := &cobra.Command{
		Use:   "drill <file.csv>",
		Short: "Break one store down by product, or one product down by store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (location == "") == (product == "") {
				return errors.New("exactly one of --location or --product is required")
			}

			analytics, err := load(cmd, args[0])
			if err != nil {
				return err
			}

			if location != "" {
				printTotals(cmd.OutOrStdout(), "Products in "+location, "Product ID", analytics.DrillLocation(location))
			} else {
				printTotals(cmd.OutOrStdout(), "Locations for "+product, "Store ID", analytics.DrillProduct(product))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&location, "location", "", "store id to break down by product")
	cmd.Flags().StringVar(&product, "product", "", "product id to break down by store")
	return cmd
}
