package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"studentfees/internal/app"
	"studentfees/internal/config"
	"studentfees/internal/service"
)

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Fetch an access token to check the configured credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _ := app.NewProviderClient(config.Load().Mpesa, nil)

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			token, err := client.AccessToken(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query [checkoutRequestId]",
		Short: "Ask the provider for the status of a push payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			client, signer := app.NewProviderClient(cfg.Mpesa, nil)
			payments := service.NewPaymentService(client, client, signer, nil, nil, service.PaymentConfig{})

			ctx, cancel := context.WithTimeout(cmd.Context(), 45*time.Second)
			defer cancel()

			resp, err := payments.QueryPaymentStatus(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, resp.Raw, resp)
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [checkoutRequestId]",
		Short: "Print the stored transaction for a checkout request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, closeStore, err := app.NewStore(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer closeStore()

			client, signer := app.NewProviderClient(cfg.Mpesa, nil)
			payments := service.NewPaymentService(client, client, signer, store, nil, service.PaymentConfig{})

			txn, err := payments.GetTransaction(ctx, args[0])
			if err != nil {
				return err
			}
			if txn == nil {
				return errors.New("transaction not found")
			}
			return printJSON(cmd, nil, txn)
		},
	}
}

func printJSON(cmd *cobra.Command, raw json.RawMessage, v any) error {
	if len(raw) > 0 {
		v = raw
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
