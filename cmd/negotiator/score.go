package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"procureagent"
	"procureagent/market"

	"github.com/spf13/cobra"
)

type scoreOutput struct {
	Analysis procureagent.MarketAnalysis        `json:"analysis"`
	Report   procureagent.FinalComparisonReport `json:"report"`
}

// scoreCMD ranks a saved set of offers without contacting any vendor.
func scoreCMD() *cobra.Command {
	var orderPath, offersPath string
	var score = &cobra.Command{
		Use:   "score",
		Short: "Rank a set of offers and print the market analysis and report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return scoreOffers(orderPath, offersPath, cmd.OutOrStdout())
		},
	}
	score.Flags().StringVarP(&orderPath, "order", "o", "data/order.json", "order requirement (JSON)")
	score.Flags().StringVar(&offersPath, "offers", "data/offers.json", "offer snapshots (JSON array)")

	return score
}

func scoreOffers(orderPath, offersPath string, out io.Writer) error {
	order, err := loadOrder(orderPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(offersPath)
	if err != nil {
		return fmt.Errorf("failed to read offers: %w", err)
	}
	var offers []procureagent.OfferSnapshot
	if err := json.Unmarshal(data, &offers); err != nil {
		return fmt.Errorf("failed to parse offers %s: %w", offersPath, err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(scoreOutput{
		Analysis: market.Analyze(offers, order),
		Report:   market.Report(offers, order),
	})
}
