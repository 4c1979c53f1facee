package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bigdaytimer-premium/internal/client"
	"bigdaytimer-premium/internal/config"
	"bigdaytimer-premium/internal/domain/model"
	"bigdaytimer-premium/internal/infra/adapters/payment"
	"bigdaytimer-premium/internal/infra/db/sqlite"
	"bigdaytimer-premium/internal/infra/logging"
)

type rootOptions struct {
	configPath string
	apiBase    string
	dataDir    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "premiumctl",
		Short:         "Client for the BigDayTimer premium service",
		Long:          "Keeps a local installation id and premium flag, and talks to the premium service the way the extension does.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&opts.apiBase, "api", "", "premium service base URL (overrides client.api_base)")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "local state directory (overrides client.data_dir)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newIDCmd(opts),
		newStatusCmd(opts),
		newCheckoutCmd(opts),
		newWaitCmd(opts),
		newSignWebhookCmd(opts),
	)
	return root
}

type session struct {
	cfg    *config.Config
	store  *sqlite.KVStore
	client *client.Client
}

// open loads config and local state. Premium flag flips are reported on
// notify.
func (o *rootOptions) open(notify io.Writer) (*session, error) {
	cfg, err := config.LoadClientConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.apiBase != "" {
		cfg.Client.APIBase = o.apiBase
	}
	if o.dataDir != "" {
		cfg.Client.DataDir = o.dataDir
	}
	level := "warn"
	if o.verbose {
		level = "debug"
	}
	logger := logging.NewWithWriter(os.Stderr, config.LogConfig{Level: level, Format: "console"}, true)

	store, err := sqlite.Open(cfg.Client.DataDir)
	if err != nil {
		return nil, err
	}
	api := client.NewHTTPStatusAPI(cfg.Client.APIBase, cfg.Client.Timeout)
	onChange := client.WithOnChange(func(premium bool) {
		state := "free"
		if premium {
			state = "premium"
		}
		fmt.Fprintf(notify, "premium status changed: now %s\n", state)
	})
	return &session{cfg: cfg, store: store, client: client.New(store, api, logger, onChange)}, nil
}

func (s *session) Close() { _ = s.store.Close() }

func newIDCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Print the installation's user id, creating it on first run",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			id, err := s.client.UserID(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Refresh and print premium status (falls back to the cached value)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			st, err := s.client.Refresh(cmd.Context())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			printStatus(cmd.OutOrStdout(), st)
			fmt.Fprintf(cmd.OutOrStdout(), "timers:    %d\n", client.TimerLimitFor(st.IsPremium))
			return nil
		},
	}
}

func newCheckoutCmd(opts *rootOptions) *cobra.Command {
	var returnURL string
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Create a premium checkout link for this installation",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			link, err := s.client.Checkout(cmd.Context(), returnURL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	cmd.Flags().StringVar(&returnURL, "return-url", "", "where the provider sends the buyer afterwards")
	return cmd
}

func newWaitCmd(opts *rootOptions) *cobra.Command {
	poll := client.DefaultPollOptions()
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Poll until the payment is confirmed or the attempts run out",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			st, err := s.client.WaitForPremium(cmd.Context(), poll)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().DurationVar(&poll.InitialDelay, "delay", poll.InitialDelay, "wait before the first check")
	cmd.Flags().DurationVar(&poll.Interval, "interval", poll.Interval, "time between checks")
	cmd.Flags().IntVar(&poll.MaxAttempts, "attempts", poll.MaxAttempts, "number of checks")
	return cmd
}

func newSignWebhookCmd(opts *rootOptions) *cobra.Command {
	var (
		secret  string
		algo    string
		event   string
		userID  string
		orderID string
		send    bool
	)
	cmd := &cobra.Command{
		Use:   "sign-webhook",
		Short: "Build and sign a provider webhook body for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClientConfig(opts.configPath)
			if err != nil {
				return err
			}
			if secret == "" {
				secret = cfg.Paddle.WebhookSecret
			}
			if secret == "" {
				return fmt.Errorf("no secret: pass --secret or set PADDLE_WEBHOOK_SECRET")
			}
			if algo == "" {
				algo = cfg.Paddle.SignatureAlgo
			}
			if userID == "" || orderID == "" {
				return fmt.Errorf("--user and --order are required")
			}
			verifier, err := payment.NewPaddleSignatureVerifier(secret, algo)
			if err != nil {
				return err
			}

			pt, err := model.Passthrough{UserID: userID}.Encode()
			if err != nil {
				return err
			}
			form := url.Values{}
			form.Set("alert_name", event)
			form.Set("passthrough", pt)
			form.Set("order_id", orderID)
			body := []byte(form.Encode())
			signature := verifier.Sign(body)

			out := cmd.OutOrStdout()
			if !send {
				fmt.Fprintf(out, "body:      %s\nsignature: %s\n", body, signature)
				return nil
			}

			base := cfg.Client.APIBase
			if opts.apiBase != "" {
				base = opts.apiBase
			}
			status, resp, err := postWebhook(cmd.Context(), base, body, signature)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d %s\n", status, resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "webhook secret (default PADDLE_WEBHOOK_SECRET)")
	cmd.Flags().StringVar(&algo, "algo", "", "sha1 or sha256 (default paddle.signature_algo)")
	cmd.Flags().StringVar(&event, "event", string(model.EventPaymentSucceeded), "alert_name")
	cmd.Flags().StringVar(&userID, "user", "", "user id to put in the passthrough")
	cmd.Flags().StringVar(&orderID, "order", "", "order_id")
	cmd.Flags().BoolVar(&send, "send", false, "POST the signed body to <api>/paddle-webhook")
	return cmd
}

func postWebhook(ctx context.Context, base string, body []byte, signature string) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/paddle-webhook", bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Paddle-Signature", signature)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return resp.StatusCode, string(b), nil
}

func printStatus(w io.Writer, st client.Status) {
	fmt.Fprintf(w, "user:      %s\n", st.UserID)
	fmt.Fprintf(w, "premium:   %t\n", st.IsPremium)
	fmt.Fprintf(w, "source:    %s\n", st.Source)
	if !st.LastChecked.IsZero() {
		fmt.Fprintf(w, "checked:   %s\n", st.LastChecked.Format(time.RFC3339))
	}
}
