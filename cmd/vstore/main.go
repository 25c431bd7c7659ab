package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/screenager/vecstore/internal/config"
	"github.com/screenager/vecstore/internal/embed"
	"github.com/screenager/vecstore/internal/store"
	"github.com/screenager/vecstore/internal/tui"
	"github.com/screenager/vecstore/internal/watcher"
)

func main() {
	root := &cobra.Command{
		Use:   "vstore",
		Short: "Local file-based semantic vector store",
		Long:  "vstore — offline semantic search and retrieval over a directory-backed vector store, powered by BGE-base-en-v1.5.",
	}

	cfg, err := config.Load(".vstore.toml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: .vstore.toml: %v\n", err)
		cfg = config.Default()
	}

	var storeDir string
	var modelDir, modelID, modelURL, tokenURL, ortLib string
	var numThreads, maxFileKB, cacheItems int

	root.PersistentFlags().StringVar(&storeDir, "store", ".vstore", "store directory")
	root.PersistentFlags().StringVar(&modelDir, "model-dir", cfg.ModelDir, "directory containing ONNX model files")
	root.PersistentFlags().StringVar(&modelID, "model-id", cfg.ModelID, "embedding model identifier")
	root.PersistentFlags().StringVar(&modelURL, "model-url", cfg.ModelURL, "ONNX model download URL")
	root.PersistentFlags().StringVar(&tokenURL, "tokenizer-url", cfg.TokenURL, "tokenizer.json download URL")
	root.PersistentFlags().StringVar(&ortLib, "ort-lib", cfg.OrtLib, "path to onnxruntime.so (auto-detected if empty)")
	root.PersistentFlags().IntVar(&numThreads, "threads", cfg.Threads, "ONNX intra-op thread count (0 = auto, usually NumCPU capped at 4)")
	root.PersistentFlags().IntVar(&maxFileKB, "max-file-kb", cfg.MaxFileKB, "skip ingesting files larger than this (in KB)")
	root.PersistentFlags().IntVar(&cacheItems, "cache-items", cfg.CacheItems, "in-memory embedding cache capacity")

	resolveOrtLib := func(flag string) string {
		if flag != "" {
			return flag
		}
		if exe, err := os.Executable(); err == nil {
			candidate := filepath.Join(filepath.Dir(exe), "lib", "onnxruntime.so")
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		return ""
	}

	// openStore loads the embedder and opens (or creates) the store at
	// storeDir, printing status so the user knows it isn't stuck — model
	// loading can take 1-4s on first run.
	openStore := func() (*store.Store, error) {
		fmt.Fprint(os.Stderr, "Loading model… ")
		facade, err := store.NewEmbedderFacade(modelDir, modelID, modelURL, tokenURL, resolveOrtLib(ortLib), numThreads, cacheItems, nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, "")
			return nil, err
		}
		s, err := store.CreateOrOpen(storeDir, facade, nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, "")
			return nil, err
		}
		fmt.Fprintln(os.Stderr, "ready.")
		return s, nil
	}

	// storeOptions reads storeDir's own config.json (if any) and seeds
	// chunking defaults from it, so a store keeps using the chunk sizing it
	// was created with even as the CLI's own built-in defaults change.
	storeOptions := func() store.Options {
		sc, err := config.LoadStoreConfig(filepath.Join(storeDir, "config.json"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s/config.json: %v\n", storeDir, err)
		}
		return store.Options{Chunk: sc.ChunkOptions()}
	}

	// ingestDirs walks dirs using ctx for cancellation.
	// IMPORTANT: the ONNX inference call is a blocking CGo call Go cannot
	// preempt. A hard-exit goroutine guarantees Ctrl+C terminates the
	// process after a 1s grace period. A "done" channel cancels it on
	// clean exit so the interrupt message never prints spuriously.
	ingestDirs := func(ctx context.Context, s *store.Store, dirs []string) error {
		done := make(chan struct{})
		defer close(done)

		go func() {
			select {
			case <-done:
				return
			case <-ctx.Done():
				fmt.Fprintln(os.Stderr, "\n[vstore] stopping — waiting up to 1s for current embed to finish…")
				select {
				case <-done:
					return
				case <-time.After(time.Second):
					fmt.Fprintln(os.Stderr, "[vstore] exiting.")
					os.Exit(130)
				}
			}
		}()

		opts := storeOptions()
		prog := makeProgressPrinter()
		for _, dir := range dirs {
			fmt.Fprintf(os.Stderr, "Scanning %s…\n", dir)
			if _, err := s.AddDocuments(ctx, dir, opts, prog); err != nil {
				if isInterrupted(err) {
					fmt.Fprintln(os.Stderr, "\nInterrupted — index saved up to this point.")
					return nil
				}
				return err
			}
		}
		return nil
	}

	// ---- vstore add <path> [path...] --------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "add <path> [path...]",
		Short: "Ingest files or directories into the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			opts := storeOptions()
			var dirs []string
			for _, a := range args {
				info, err := os.Stat(a)
				if err != nil {
					return fmt.Errorf("stat %s: %w", a, err)
				}
				if info.IsDir() {
					dirs = append(dirs, a)
					continue
				}
				ids, err := s.AddDocument(ctx, a, opts)
				if err != nil {
					return fmt.Errorf("add %s: %w", a, err)
				}
				fmt.Fprintf(os.Stderr, "%s: %d chunks\n", a, len(ids))
			}
			if len(dirs) > 0 {
				if err := ingestDirs(ctx, s, dirs); err != nil {
					return err
				}
			}
			fmt.Fprintf(os.Stderr, "Done. %d chunks in store.\n", len(s.AllIDs()))
			return nil
		},
	})

	// ---- vstore search <query> ---------------------------------------------
	var jsonExport bool
	var topK int
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Non-interactive semantic search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			results, err := s.SearchText(context.Background(), query, topK)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				if jsonExport {
					fmt.Println("[]")
				} else {
					fmt.Println("no results")
				}
				return nil
			}
			if jsonExport {
				j, err := json.MarshalIndent(results, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal json: %w", err)
				}
				fmt.Println(string(j))
				return nil
			}
			for i, r := range results {
				source, _ := r.Record.Metadata["source_file"].(string)
				if source == "" {
					source = r.Record.ID
				}
				fmt.Printf("%2d  %.3f  %s\n    %s\n\n", i+1, r.Score, source, r.Record.Content)
			}
			return nil
		},
	}
	searchCmd.Flags().BoolVar(&jsonExport, "json", false, "output search results as JSON")
	searchCmd.Flags().IntVar(&topK, "k", 10, "number of results to return")
	root.AddCommand(searchCmd)

	// ---- vstore watch <dir> [dir...] ---------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "watch <dir> [dir...]",
		Short: "Ingest a directory then watch it for changes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := ingestDirs(ctx, s, args); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Done. %d chunks in store. Watching for changes… (Ctrl+C to stop)\n", len(s.AllIDs()))

			w, err := watcher.New(s, storeOptions())
			if err != nil {
				return err
			}

			done := make(chan struct{})
			go func() {
				<-ctx.Done()
				close(done)
			}()

			for _, dir := range args {
				go func(d string) {
					if err := w.Watch(d, done); err != nil {
						fmt.Fprintf(os.Stderr, "watch error %s: %v\n", d, err)
					}
				}(dir)
			}
			<-done
			return nil
		},
	})

	// ---- vstore tui ---------------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "tui",
		Short: "Launch interactive BubbleTea search interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			m := tui.New(s)
			p := tea.NewProgram(m, tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	})

	// ---- vstore stats --------------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ids := s.AllIDs()
			fmt.Printf("chunks:      %d\n", len(ids))
			fmt.Printf("directory:   %s\n", s.Dir())
			if fi, err := os.Stat(filepath.Join(s.Dir(), "vector_index.bin")); err == nil {
				fmt.Printf("index size:  %d KB\n", fi.Size()/1024)
				fmt.Printf("updated:     %s\n", fi.ModTime().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	})

	// ---- vstore clear --------------------------------------------------------
	var forceFlag bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the store directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(storeDir); os.IsNotExist(err) {
				fmt.Println("No store found — nothing to clear.")
				return nil
			}
			if !forceFlag {
				fmt.Printf("Remove %s? This cannot be undone. [y/N] ", storeDir)
				var ans string
				fmt.Scanln(&ans)
				if ans != "y" && ans != "Y" {
					fmt.Println("Aborted.")
					return nil
				}
			}
			deleted, err := store.Delete(storeDir)
			if err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			if !deleted {
				fmt.Println("Not a store directory — refusing to remove.")
				return nil
			}
			fmt.Println("Store cleared.")
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&forceFlag, "force", false, "skip confirmation prompt")
	root.AddCommand(clearCmd)

	// ---- vstore rebuild <dir> [dir...] ---------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "rebuild <dir> [dir...]",
		Short: "Wipe and re-ingest the store from scratch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := store.Delete(storeDir); err != nil {
				return err
			}
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := ingestDirs(ctx, s, args); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Done. %d chunks in store.\n", len(s.AllIDs()))
			return nil
		},
	})

	// ---- vstore bench ----------------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "bench",
		Short: "Benchmark tokenizer and ONNX inference speed on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(os.Stderr, "Loading model… ")
			e, err := embed.New(modelDir, resolveOrtLib(ortLib), numThreads)
			if err != nil {
				return err
			}
			defer e.Close()
			fmt.Fprintln(os.Stderr, "ready.")

			texts := []struct {
				label string
				text  string
			}{
				{"short (9 words)", "the quick brown fox jumps over the lazy dog"},
				{"medium (200 words)", strings.Repeat("the quick brown fox ", 50)},
				{"long (180 words)", strings.Repeat("the quick brown fox jumps over the lazy dog. ", 20)},
			}

			fmt.Printf("\n%-20s  %10s  %10s  %10s\n", "text size", "tokenize", "inference", "total")
			fmt.Println(strings.Repeat("─", 55))
			for _, tc := range texts {
				tok, inf, tot, err := e.BenchmarkSingle(tc.text)
				if err != nil {
					return fmt.Errorf("bench %s: %w", tc.label, err)
				}
				fmt.Printf("%-20s  %10s  %10s  %10s\n", tc.label,
					tok.Round(time.Millisecond),
					inf.Round(time.Millisecond),
					tot.Round(time.Millisecond))
			}
			fmt.Printf("\nIf inference >500ms, try: vstore --threads 1 add <dir>\n")
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// isInterrupted returns true if err indicates a context cancellation or deadline.
func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// makeProgressPrinter returns an AddDocumentProgress that prints a compact
// progress line per file.
func makeProgressPrinter() store.AddDocumentProgress {
	return func(done, total int, path string, err error) {
		short := filepath.Base(filepath.Dir(path)) + "/" + filepath.Base(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\r  [%d/%d]  ✗   %-50s (%v)\n", done, total, short, err)
			return
		}
		if done < total {
			fmt.Fprintf(os.Stderr, "\r  [%d/%d] %3d%%  %-50s", done, total, 100*done/total, short)
		} else {
			fmt.Fprintf(os.Stderr, "\r  [%d/%d] 100%%  %-50s\n", done, total, short)
		}
	}
}
