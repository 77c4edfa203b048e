package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finey-app/finey/internal/controlplane"
	"github.com/finey-app/finey/internal/lifecycle"
	"github.com/finey-app/finey/internal/models"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show payment account status",
	RunE:  runAccount,
}

var accountProviderCmd = &cobra.Command{
	Use:   "provider [stripe|paypay]",
	Short: "Show or set the payment provider",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAccountProvider,
}

func init() {
	accountCmd.AddCommand(accountProviderCmd)
}

func runAccount(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/account")
	if err != nil {
		return err
	}

	var status lifecycle.AccountStatus
	if err := json.Unmarshal(resp, &status); err != nil {
		return err
	}

	provider := string(status.Provider)
	if provider == "" {
		provider = mutedStyle.Render("(not set)")
	}
	fmt.Printf("Provider:        %s\n", provider)
	if status.Provider == models.PaymentProviderStripe {
		fmt.Printf("Payment methods: %d\n", status.PaymentMethods)
	}
	if status.IsNewUser {
		fmt.Println(titleStyle.Render("Set up a payment method before adding your first task."))
	}
	return nil
}

func runAccountProvider(cmd *cobra.Command, args []string) error {
	var (
		resp []byte
		err  error
	)
	if len(args) == 0 {
		resp, err = apiGet("/account/payment-provider")
	} else {
		resp, err = apiPut("/account/payment-provider", controlplane.PaymentProviderBody{
			Provider: models.PaymentProvider(args[0]),
		})
	}
	if err != nil {
		return err
	}

	var body controlplane.PaymentProviderBody
	if err := json.Unmarshal(resp, &body); err != nil {
		return err
	}
	if body.Provider == models.PaymentProviderNone {
		fmt.Println(mutedStyle.Render("No payment provider set."))
		return nil
	}
	fmt.Printf("Payment provider: %s\n", body.Provider)
	return nil
}
