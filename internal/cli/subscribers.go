package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/deposit-watcher/internal/indexing/emitter"
	"github.com/vietddude/deposit-watcher/internal/infra/telegram"
)

var subscribersCmd = &cobra.Command{
	Use:   "subscribers",
	Short: "Manage notification subscribers",
}

var subscribersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscribers",
	Args:  cobra.NoArgs,
	Run:   runSubscribers,
}

var subscribersAddCmd = &cobra.Command{
	Use:   "add [chat_id]",
	Short: "Subscribe a chat",
	Args:  cobra.ExactArgs(1),
	Run:   runSubscribers,
}

var subscribersRemoveCmd = &cobra.Command{
	Use:   "remove [chat_id]",
	Short: "Unsubscribe a chat",
	Args:  cobra.ExactArgs(1),
	Run:   runSubscribers,
}

var subscribersTestCmd = &cobra.Command{
	Use:   "test [chat_id]",
	Short: "Send a test notification to a chat",
	Args:  cobra.ExactArgs(1),
	Run:   runSubscribers,
}

func init() {
	subscribersCmd.AddCommand(subscribersListCmd, subscribersAddCmd, subscribersRemoveCmd, subscribersTestCmd)
	rootCmd.AddCommand(subscribersCmd)
}

func runSubscribers(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := openStorage(ctx, cfg)
	defer func() {
		_ = store.Close()
	}()

	var sender emitter.Sender
	if cfg.Telegram.Enabled() {
		bot, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.APIURL, cfg.Telegram.HTTPTimeout)
		if err != nil {
			slog.Warn("Telegram unavailable, test notifications disabled", "error", err)
		} else {
			sender = bot
		}
	}
	subs := emitter.NewSubscriptions(store.Subscriptions, sender)

	if err := subscribersAction(ctx, cmd.Name(), subs, args); err != nil {
		slog.Error("Subscriber command failed", "command", cmd.Name(), "error", err)
		os.Exit(1)
	}
}

func subscribersAction(ctx context.Context, action string, subs *emitter.Subscriptions, args []string) error {
	switch action {
	case "list":
		list, err := subs.List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
		_, _ = fmt.Fprintln(w, "CHAT\tSUBSCRIBED")
		for _, s := range list {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", s.RecipientID, s.SubscribedAt.Format(time.RFC3339))
		}
		return w.Flush()
	case "add":
		created, err := subs.Subscribe(ctx, args[0])
		if err != nil {
			return err
		}
		if !created {
			fmt.Printf("%s is already subscribed\n", args[0])
			return nil
		}
		fmt.Printf("Subscribed %s\n", args[0])
	case "remove":
		removed, err := subs.Unsubscribe(ctx, args[0])
		if err != nil {
			return err
		}
		if !removed {
			fmt.Printf("%s was not subscribed\n", args[0])
			return nil
		}
		fmt.Printf("Unsubscribed %s\n", args[0])
	case "test":
		if err := subs.SendTest(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Test notification sent to %s\n", args[0])
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}
