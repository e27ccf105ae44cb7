package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
	"github.com/vietddude/deposit-watcher/internal/infra/chain/evm"
	"github.com/vietddude/deposit-watcher/internal/infra/rpc/provider"
	"github.com/vietddude/deposit-watcher/internal/infra/rpc/routing"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cursor, chain tip and deposit counts",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := openStorage(ctx, cfg)
	defer func() {
		_ = store.Close()
	}()

	cursor, ok, err := store.Blocks.Latest(ctx)
	if err != nil {
		slog.Error("Failed to read cursor", "error", err)
		os.Exit(1)
	}
	counts, err := store.Deposits.CountByStatus(ctx)
	if err != nil {
		slog.Error("Failed to count deposits", "error", err)
		os.Exit(1)
	}
	failed, err := store.Failed.Count(ctx)
	if err != nil {
		slog.Warn("Failed to count failed blocks", "error", err)
	}

	rpc := provider.NewHTTPProvider(cfg.Chain.Name, cfg.Chain.RPCURL, cfg.Chain.RPCTimeout)
	defer func() {
		_ = rpc.Close()
	}()
	retry := routing.DefaultRetryConfig
	retry.MaxAttempts = 1
	tip, tipErr := evm.NewEVMAdapter(rpc, retry).LatestBlockNumber(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CURSOR\tTIP\tLAG\tVALID\tINVALID\tFAILED")

	cursorCol, tipCol, lagCol := "-", "-", "-"
	if ok {
		cursorCol = fmt.Sprintf("%d", cursor)
	}
	if tipErr == nil {
		tipCol = fmt.Sprintf("%d", tip)
		if ok {
			lagCol = fmt.Sprintf("%d", int64(tip)-int64(cursor))
		}
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
		cursorCol, tipCol, lagCol,
		counts[domain.DepositStatusValid],
		counts[domain.DepositStatusInvalid],
		failed,
	)
	_ = w.Flush()

	if tipErr != nil {
		slog.Warn("Failed to fetch chain tip", "error", tipErr)
	}
}
