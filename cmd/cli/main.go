package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/sms-expense-tracker/internal/bankdir"
	"github.com/dvloznov/sms-expense-tracker/internal/config"
	"github.com/dvloznov/sms-expense-tracker/internal/domain"
	"github.com/dvloznov/sms-expense-tracker/internal/extract"
	"github.com/dvloznov/sms-expense-tracker/internal/logger"
	"github.com/dvloznov/sms-expense-tracker/internal/pipeline"
	"github.com/dvloznov/sms-expense-tracker/internal/store/sqlite"
)

var (
	configPath string

	parseSender    string
	parseBody      string
	parseTimestamp int64
	parseSave      bool

	listLimit int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "smstracker",
	Short: "Extract expense transactions from bank SMS messages",
	Long: `SMS Expense Tracker turns bank notification messages into structured
transactions using a generative extraction stage with a deterministic
pattern-cascade fallback.`,
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Classify and extract a single message",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.New()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if parseTimestamp == 0 {
			parseTimestamp = time.Now().UnixMilli()
		}

		ctx := logger.WithContext(context.Background(), log)

		bank, ok := bankdir.Classify(parseSender, cfg.Banks)
		if !ok {
			fmt.Printf("Sender %q is not a configured bank\n", parseSender)
			return nil
		}
		fmt.Printf("Bank: %s (matched %q)\n", bank.BankName, bank.Identifier)

		var gen extract.Generator
		if !cfg.DisableInference {
			backend, err := extract.NewGeminiBackend(ctx, cfg.Model)
			if err != nil {
				log.Warn().Err(err).Msg("Inference backend unavailable, running pattern-only")
			} else {
				gen = backend
			}
		}

		engine := extract.NewEngine(gen, cfg.InferenceTimeout, log)
		defer engine.Close()

		msg := domain.Message{Sender: parseSender, Body: parseBody, Timestamp: parseTimestamp}
		tx, err := engine.Extract(ctx, msg, bank.BankName)
		if err != nil {
			fmt.Printf("Extraction failed: %v\n", err)
			return nil
		}

		fmt.Printf("Amount:    %s\n", tx.FormattedAmount())
		fmt.Printf("Merchant:  %s\n", tx.Merchant)
		fmt.Printf("Account:   %s\n", tx.AccountNumber)
		fmt.Printf("Reference: %s\n", tx.ReferenceNumber)
		fmt.Printf("When:      %s\n", tx.FormattedDateTime())

		if parseSave {
			store, err := sqlite.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			processor := pipeline.NewProcessor(store, engine, cfg.Banks, log)
			captured, err := processor.Capture(ctx, parseSender, parseBody, parseTimestamp)
			if err != nil {
				return err
			}
			if err := store.SaveTransaction(ctx, tx); err != nil {
				return err
			}
			if err := store.MarkParsed(ctx, captured.ID, tx.ID); err != nil {
				return err
			}
			fmt.Printf("Saved transaction %s\n", tx.ID)
		}
		return nil
	},
}

var reparseCmd = &cobra.Command{
	Use:   "reparse <message-id>",
	Short: "Re-run extraction for a previously captured message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.New()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := logger.WithContext(context.Background(), log)

		var gen extract.Generator
		if !cfg.DisableInference {
			backend, err := extract.NewGeminiBackend(ctx, cfg.Model)
			if err != nil {
				log.Warn().Err(err).Msg("Inference backend unavailable, running pattern-only")
			} else {
				gen = backend
			}
		}

		engine := extract.NewEngine(gen, cfg.InferenceTimeout, log)
		defer engine.Close()

		processor := pipeline.NewProcessor(store, engine, cfg.Banks, log)

		tx, err := processor.Reprocess(ctx, args[0])
		if err != nil {
			return err
		}
		if tx == nil {
			captured, err := store.GetCaptured(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", captured.Status)
			if captured.ParseError != "" {
				fmt.Printf("Reason: %s\n", captured.ParseError)
			}
			return nil
		}

		fmt.Printf("Amount:    %s\n", tx.FormattedAmount())
		fmt.Printf("Merchant:  %s\n", tx.Merchant)
		fmt.Printf("Account:   %s\n", tx.AccountNumber)
		fmt.Printf("Reference: %s\n", tx.ReferenceNumber)
		fmt.Printf("Saved transaction %s\n", tx.ID)
		return nil
	},
}

var banksCmd = &cobra.Command{
	Use:   "banks",
	Short: "List the configured bank directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		for _, b := range cfg.Banks {
			state := "active"
			if !b.Active {
				state = "inactive"
			}
			fmt.Printf("%-12s %-24s %s\n", b.Identifier, b.BankName, state)
		}
		return nil
	},
}

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "List stored transactions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		txs, err := store.ListTransactions(context.Background(), listLimit)
		if err != nil {
			return err
		}
		for i := range txs {
			t := &txs[i]
			fmt.Printf("%s  %-10s %-24s %s\n", t.FormattedDateTime(), t.FormattedAmount(), t.Merchant, t.BankName)
		}
		fmt.Printf("%d transaction(s)\n", len(txs))
		return nil
	},
}

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "List captured messages, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		msgs, err := store.ListCaptured(context.Background(), listLimit)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			bank := "-"
			if m.FromBank {
				bank = m.BankName
			}
			fmt.Printf("%s  %-12s %-20s %-8s %s\n",
				m.ID[:8], m.Sender, bank, m.Status, truncate(m.Body, 48))
		}
		fmt.Printf("%d message(s)\n", len(msgs))
		return nil
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to TOML config file")

	parseCmd.Flags().StringVar(&parseSender, "sender", "", "Sender address of the message")
	parseCmd.Flags().StringVar(&parseBody, "body", "", "Raw message body")
	parseCmd.Flags().Int64Var(&parseTimestamp, "timestamp", 0, "Receipt time in epoch millis (default: now)")
	parseCmd.Flags().BoolVar(&parseSave, "save", false, "Persist the extracted transaction")
	parseCmd.MarkFlagRequired("sender")
	parseCmd.MarkFlagRequired("body")

	transactionsCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum rows to list")
	messagesCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum rows to list")

	rootCmd.AddCommand(parseCmd, reparseCmd, banksCmd, transactionsCmd, messagesCmd)
}
