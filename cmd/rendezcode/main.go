// Package main provides the CLI entry point for rendezcode.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/postalsys/rendezcode/internal/config"
	"github.com/postalsys/rendezcode/internal/logging"
	"github.com/postalsys/rendezcode/internal/relay"
	"github.com/postalsys/rendezcode/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "rendezcode",
		Short:   "rendezcode - share a secret over an untrusted relay using a short code",
		Version: Version,
	}

	var cfgPath, relayURL, appID string
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a rendezcode config file")
	rootCmd.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&appID, "app-id", "", "application id (overrides config)")

	loadCfg := func() (*config.Config, error) {
		var cfg *config.Config
		var err error
		if cfgPath != "" {
			cfg, err = config.Load(cfgPath)
		} else {
			cfg = config.Default()
		}
		if err != nil {
			return nil, err
		}
		if relayURL != "" {
			cfg.Relay.URL = relayURL
		}
		if appID != "" {
			cfg.Relay.AppID = appID
		}
		return cfg, cfg.Validate()
	}

	send := sendCmd(&loadCfg)
	rootCmd.AddCommand(send)

	receive := receiveCmd(&loadCfg)
	rootCmd.AddCommand(receive)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func sendCmd(loadCfg *func() (*config.Config, error)) *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a payload, printing a code for the receiver to type",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := (*loadCfg)()
			if err != nil {
				return err
			}

			payload, err := readPayload(filePath)
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
			start := time.Now()

			in := session.NewInitiator(cfg.Relay.AppID, payload, cfg.Relay.URL,
				session.WithPollInterval(cfg.Session.PollInterval),
				session.WithTimeout(cfg.Session.Timeout),
				session.WithNumWords(cfg.Session.NumWords),
				session.WithLogger(logger))

			code, err := in.GetCode(ctx)
			if err != nil {
				return fmt.Errorf("allocate rendezvous channel: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Share this code with the receiver: %s\n", code)
			fmt.Fprintf(cmd.OutOrStdout(), "Sending %s, waiting for receiver...\n", humanize.Bytes(uint64(len(payload))))

			reply, err := in.GetData(ctx)
			if err != nil {
				return fmt.Errorf("exchange failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Received %s back, exchange started %s.\n",
				humanize.Bytes(uint64(len(reply))), humanize.Time(start))
			cmd.OutOrStdout().Write(reply)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "read payload from file instead of stdin")
	return cmd
}

func receiveCmd(loadCfg *func() (*config.Config, error)) *cobra.Command {
	var filePath, code string

	cmd := &cobra.Command{
		Use:   "receive [code]",
		Short: "Receive a payload using a code shared by the sender",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := (*loadCfg)()
			if err != nil {
				return err
			}

			payload, err := readPayload(filePath)
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)

			rv := session.NewReceiver(cfg.Relay.AppID, payload, cfg.Relay.URL,
				session.WithPollInterval(cfg.Session.PollInterval),
				session.WithTimeout(cfg.Session.Timeout),
				session.WithLogger(logger))

			if len(args) == 1 {
				code = args[0]
			}
			if code == "" {
				code, err = promptForCode(ctx, rv, cfg.Relay.URL)
				if err != nil {
					return fmt.Errorf("read code: %w", err)
				}
			} else if err := rv.SetCode(code); err != nil {
				return fmt.Errorf("set code: %w", err)
			}

			data, err := rv.GetData(ctx)
			if err != nil {
				return fmt.Errorf("exchange failed: %w", err)
			}

			cmd.OutOrStdout().Write(data)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "read payload from file instead of stdin")
	cmd.Flags().StringVarP(&code, "code", "c", "", "the code shared by the sender")
	return cmd
}

// promptForCode implements the non-interactive fallback for InputCode:
// a plain line read with no tab-completion, since the interactive
// terminal UI with completion is outside rendezcode's scope. It still
// exercises session.InputCode's CompletionSource/ReadLine interface so
// a richer terminal front end can be substituted without touching
// internal/session.
func promptForCode(ctx context.Context, rv *session.Receiver, relayURL string) (string, error) {
	client := relay.NewClient(relayURL, nil)
	source := func(ctx context.Context) ([]int64, error) {
		return client.List(ctx)
	}

	reader := bufio.NewReader(os.Stdin)
	readLine := func(candidates []string) (string, error) {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprint(os.Stderr, "code> ")
		}
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	return rv.InputCode(ctx, source, readLine)
}

func readPayload(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
