package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var resetCursorCmd = &cobra.Command{
	Use:   "reset-cursor [block_height]",
	Short: "Mark a height processed so the watcher resumes after it",
	Long: `Records block_height as processed. The watcher resumes from the highest
processed height, so this can only move the cursor forward.`,
	Args: cobra.ExactArgs(1),
	Run:  runResetCursor,
}

func init() {
	rootCmd.AddCommand(resetCursorCmd)
}

func runResetCursor(cmd *cobra.Command, args []string) {
	height, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Printf("Invalid block height: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig()
	ctx := context.Background()
	store := openStorage(ctx, cfg)
	defer func() {
		_ = store.Close()
	}()

	current, ok, err := store.Blocks.Latest(ctx)
	if err != nil {
		slog.Error("Failed to read cursor", "error", err)
		os.Exit(1)
	}
	if ok && current >= height {
		fmt.Printf("Cursor already at %d; nothing to do\n", current)
		return
	}

	if err := store.Blocks.Upsert(ctx, height); err != nil {
		slog.Error("Failed to reset cursor", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Cursor moved to block %d\n", height)
}
