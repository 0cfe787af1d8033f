package cli

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const watchDebounce = 300 * time.Millisecond

func init() {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-index the memory bank whenever it changes",
		Run:   runSemanticWatch,
	}
	cmd.Flags().String("bank", "", "Memory bank file (default: bank_file from config)")

	semanticCmd.AddCommand(cmd)
}

func runSemanticWatch(cmd *cobra.Command, args []string) {
	bankFile, _ := cmd.Flags().GetString("bank")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	logger := newLogger(cfg)
	idx := openIndex(ctx, cfg, logger, false)
	defer idx.close()
	if bankFile != "" {
		idx.bankFile = bankFile
	}
	target := filepath.Clean(idx.bankFile)

	reindex := func() {
		n, err := idx.indexBank(ctx)
		if err != nil {
			logger.Warn("reindex memory bank", "file", target, "err", err)
			return
		}
		logger.Info("indexed memory bank", "file", target, "entries", n)
	}

	// Watch the directory: editors often replace the file instead of writing it.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		exitErr("watch", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		exitErr("watch "+filepath.Dir(target), err)
	}

	reindex()

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			logger.Debug("memory bank changed", "op", ev.Op.String())
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(watchDebounce)
		case <-debounce.C:
			reindex()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher error", "err", err)
		}
	}
}
