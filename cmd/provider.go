package cmd

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Inspect the fulfillment provider account",
}

var providerServicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the provider catalogue for SKU mapping",
	Run: func(_ *cobra.Command, _ []string) {
		cfg := mustLoadConfig()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		services, err := newProvider(cfg).Services(ctx)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to fetch provider services")
		}
		printJSON(services)
	},
}

var providerBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the provider deposit balance",
	Run: func(_ *cobra.Command, _ []string) {
		cfg := mustLoadConfig()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		profile, err := newProvider(cfg).Profile(ctx)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to fetch provider profile")
		}
		printJSON(profile)
	},
}

func init() {
	rootCmd.AddCommand(providerCmd)
	providerCmd.AddCommand(providerServicesCmd)
	providerCmd.AddCommand(providerBalanceCmd)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logrus.WithError(err).Fatal("Failed to encode output")
	}
}
