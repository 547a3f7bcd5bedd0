package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mstgnz/idpay/infra/config"
	"github.com/mstgnz/idpay/provider/idpay"
)

// gatewayFlags are shared by the commands that talk to IDPay
type gatewayFlags struct {
	apiKey  string
	sandbox bool
	baseURL string
	timeout time.Duration
}

func (f *gatewayFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "IDPay API key (defaults to IDPAY_API_KEY)")
	cmd.Flags().BoolVar(&f.sandbox, "sandbox", false, "Send requests in sandbox mode")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "IDPay API URL (defaults to IDPAY_API_URL)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 30*time.Second, "Gateway request timeout")
}

func (f *gatewayFlags) options(failedMessage string) map[string]string {
	apiKey := f.apiKey
	if apiKey == "" {
		apiKey = config.GetEnv("IDPAY_API_KEY", "")
	}
	sandbox := "0"
	if f.sandbox {
		sandbox = "1"
	}
	return map[string]string{
		idpay.OptionAPIKey:        apiKey,
		idpay.OptionSandbox:       sandbox,
		idpay.OptionFailedMessage: failedMessage,
	}
}

func (f *gatewayFlags) provider() *idpay.Provider {
	baseURL := f.baseURL
	if baseURL == "" {
		baseURL = config.GetEnv("IDPAY_API_URL", "https://api.idpay.ir")
	}
	return idpay.New(nil, idpay.WithBaseURL(baseURL), idpay.WithTimeout(f.timeout))
}

// NewRootCmd builds the idpayctl command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "idpayctl",
		Short: "Operator tool for the IDPay payment gateway",
		Long: `idpayctl checks IDPay payment profile options and asks the gateway for the
state of a payment, the same inquiry the callback handler uses to confirm a purchase.`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Version:           "1.0.0",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is fine, flags and the environment still apply
			_ = godotenv.Load(".env")
		},
	}

	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newInquiryCmd())

	return rootCmd
}

func newVerifyCmd() *cobra.Command {
	var (
		flags         gatewayFlags
		failedMessage string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the options of an IDPay payment profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			validation := flags.provider().VerifyConfig(flags.options(failedMessage))
			if !validation.Valid {
				for _, msg := range validation.Errors {
					fmt.Fprintln(cmd.ErrOrStderr(), "-", msg)
				}
				return errors.New("invalid payment profile options")
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Payment profile options are valid")
			return nil
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVar(&failedMessage, "failed-message", "", "Message shown when a payment cannot be verified")

	return cmd
}

func newInquiryCmd() *cobra.Command {
	var (
		flags   gatewayFlags
		id      string
		orderID string
	)

	cmd := &cobra.Command{
		Use:   "inquiry",
		Short: "Ask IDPay for the state of a payment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := idpay.ParseConfig(flags.options(""))
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()

			inquiry, status, err := flags.provider().Inquire(ctx, cfg, strings.TrimSpace(id), strings.TrimSpace(orderID))
			if err != nil {
				return fmt.Errorf("%w (HTTP %d)", err, status)
			}

			out, err := json.MarshalIndent(inquiry, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVar(&id, "id", "", "IDPay payment id")
	cmd.Flags().StringVar(&orderID, "order-id", "", "Order id sent when the payment was created")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("order-id")

	return cmd
}
