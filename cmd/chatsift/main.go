package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/screenager/chatsift/internal/facade"
	"github.com/screenager/chatsift/internal/searchindex"
	"github.com/screenager/chatsift/internal/tui"
	"github.com/screenager/chatsift/internal/watcher"
)

var (
	defaultModelDir  = "./models"
	defaultOrtLib    = "./lib/onnxruntime.so"
	defaultThreads   = 0
	defaultTopK      = 10
	defaultThreshold = float32(0.3)
	defaultSnapshot  = ".chatsift.json"
)

func main() {
	root := &cobra.Command{
		Use:   "chatsift",
		Short: "Hybrid semantic search over chat transcripts",
		Long:  "chatsift — offline hybrid dense+lexical search over chat exports, loaded from an in-memory transformer model.",
	}

	var cfg struct {
		ModelDir     string  `toml:"model-dir"`
		OrtLib       string  `toml:"ort-lib"`
		Threads      int     `toml:"threads"`
		TopK         int     `toml:"top-k"`
		Threshold    float32 `toml:"threshold"`
		SnapshotFile string  `toml:"snapshot-file"`
	}

	if b, err := os.ReadFile(".chatsift.toml"); err == nil {
		if err := toml.Unmarshal(b, &cfg); err == nil {
			if cfg.ModelDir != "" {
				defaultModelDir = cfg.ModelDir
			}
			if cfg.OrtLib != "" {
				defaultOrtLib = cfg.OrtLib
			}
			if cfg.Threads > 0 {
				defaultThreads = cfg.Threads
			}
			if cfg.TopK > 0 {
				defaultTopK = cfg.TopK
			}
			if cfg.Threshold > 0 {
				defaultThreshold = cfg.Threshold
			}
			if cfg.SnapshotFile != "" {
				defaultSnapshot = cfg.SnapshotFile
			}
		}
	}

	var modelDir string
	var ortLib string
	var numThreads int
	var snapshotFile string
	root.PersistentFlags().StringVar(&modelDir, "model-dir", defaultModelDir, "directory containing model.onnx, tokenizer.json, config.json")
	root.PersistentFlags().StringVar(&ortLib, "ort-lib", defaultOrtLib, "path to onnxruntime shared library (auto-detected if empty)")
	root.PersistentFlags().IntVar(&numThreads, "threads", defaultThreads, "ONNX intra-op thread count (0 = auto)")
	root.PersistentFlags().StringVar(&snapshotFile, "snapshot", defaultSnapshot, "path to the index snapshot file used by load/search/watch/tui")

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
		if _, err := os.Stat(defaultOrtLib); err == nil {
			absPath, _ := filepath.Abs(defaultOrtLib)
			return absPath
		}
		return ""
	}

	// openFacade loads the model from modelDir and, if a snapshot file
	// exists, imports it, printing status so the user knows it isn't stuck
	// (model loading can take 1-4s on first run).
	openFacade := func() (*facade.Facade, error) {
		fmt.Fprint(os.Stderr, "Loading model… ")
		weights, err := os.ReadFile(filepath.Join(modelDir, "model.onnx"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "")
			return nil, fmt.Errorf("read model weights: %w", err)
		}
		tokenizerBytes, err := os.ReadFile(filepath.Join(modelDir, "tokenizer.json"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "")
			return nil, fmt.Errorf("read tokenizer: %w", err)
		}
		configBytes, err := os.ReadFile(filepath.Join(modelDir, "config.json"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "")
			return nil, fmt.Errorf("read config: %w", err)
		}

		f := facade.New(facade.ModelOptions{OrtLibPath: resolveOrtLib(ortLib), NumThreads: numThreads})
		if err := f.LoadModel(weights, tokenizerBytes, configBytes); err != nil {
			fmt.Fprintln(os.Stderr, "")
			return nil, err
		}
		fmt.Fprintln(os.Stderr, "ready.")

		if snap, err := readSnapshot(snapshotFile); err == nil {
			if err := f.Import(snap); err != nil {
				return nil, fmt.Errorf("import snapshot %s: %w", snapshotFile, err)
			}
		}
		return f, nil
	}

	saveSnapshot := func(f *facade.Facade) error {
		return writeSnapshot(snapshotFile, f.Export())
	}

	// ---- chatsift load ------------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "load",
		Short: "Load the embedding model and report readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade()
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Model loaded. %d chunks, %d documents in snapshot.\n", f.Count(), len(f.DocumentIDs()))
			return saveSnapshot(f)
		},
	})

	// ---- chatsift add <doc-id> <file> ---------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "add <doc-id> <file>",
		Short: "Parse, embed, and index a chat export file under doc-id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			docID, path := args[0], args[1]

			f, err := openFacade()
			if err != nil {
				return err
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			prog := makeProgressPrinter()
			if err := f.AddDocument(docID, string(content), prog); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Done. %d chunks, %d documents indexed.\n", f.Count(), len(f.DocumentIDs()))
			return saveSnapshot(f)
		},
	})

	// ---- chatsift search <query> ---------------------------------------------
	var jsonExport bool
	var topK int
	var threshold float64
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Non-interactive hybrid search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			f, err := openFacade()
			if err != nil {
				return err
			}

			results, err := f.Search(query, topK, float32(threshold), nil)
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
				sender := "—"
				if r.Sender != nil {
					sender = *r.Sender
				}
				fmt.Printf("%2d  %.3f  %s\n    %s\n\n", i+1, r.Score, sender, r.Content)
			}
			return nil
		},
	}
	searchCmd.Flags().BoolVar(&jsonExport, "json", false, "output search results as JSON")
	searchCmd.Flags().IntVar(&topK, "top-k", defaultTopK, "maximum number of results")
	searchCmd.Flags().Float64Var(&threshold, "threshold", float64(defaultThreshold), "minimum hybrid score to include")
	root.AddCommand(searchCmd)

	// ---- chatsift watch <dir> -------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a directory of chat export files and re-index on change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]

			f, err := openFacade()
			if err != nil {
				return err
			}

			w, err := watcher.New(f)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "Watching %s for chat export changes… (Ctrl+C to stop)\n", dir)
			done := make(chan struct{})
			defer close(done)
			return w.Watch(dir, done)
		},
	})

	// ---- chatsift tui -----------------------------------------------------
	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch interactive BubbleTea search interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade()
			if err != nil {
				return err
			}

			m := tui.New(f, defaultTopK, defaultThreshold)
			p := tea.NewProgram(m, tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	root.AddCommand(tuiCmd)

	// ---- chatsift stats ----------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade()
			if err != nil {
				return err
			}
			fmt.Printf("chunks:     %d\n", f.Count())
			ids := f.DocumentIDs()
			fmt.Printf("documents:  %d\n", len(ids))
			for _, id := range ids {
				fmt.Printf("  - %s\n", id)
			}
			return nil
		},
	})

	// ---- chatsift export <file> ---------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "export <file>",
		Short: "Export the index snapshot to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade()
			if err != nil {
				return err
			}
			return writeSnapshot(args[0], f.Export())
		},
	})

	// ---- chatsift import <file> ---------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Replace the index with a JSON snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFacade()
			if err != nil {
				return err
			}
			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			if err := f.Import(snap); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Imported. %d chunks, %d documents.\n", f.Count(), len(f.DocumentIDs()))
			return saveSnapshot(f)
		},
	})

	// ---- chatsift clear ------------------------------------------------------
	var forceFlag bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the snapshot file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(snapshotFile); os.IsNotExist(err) {
				fmt.Println("No snapshot found — nothing to clear.")
				return nil
			}
			if !forceFlag {
				fmt.Printf("Remove %s? This cannot be undone. [y/N] ", snapshotFile)
				var ans string
				fmt.Scanln(&ans)
				if ans != "y" && ans != "Y" {
					fmt.Println("Aborted.")
					return nil
				}
			}
			if err := os.Remove(snapshotFile); err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			fmt.Println("Snapshot cleared.")
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&forceFlag, "force", false, "skip confirmation prompt")
	root.AddCommand(clearCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// readSnapshot reads and decodes a JSON snapshot file.
func readSnapshot(path string) (searchindex.Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return searchindex.Snapshot{}, err
	}
	var snap searchindex.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return searchindex.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return snap, nil
}

// writeSnapshot encodes snap as indented JSON and writes it to path.
func writeSnapshot(path string, snap searchindex.Snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// makeProgressPrinter returns a ProgressFunc that prints a compact progress line.
func makeProgressPrinter() facade.ProgressFunc {
	return func(done, total int) {
		if total == 0 {
			return
		}
		pct := 100 * done / total
		if done < total {
			fmt.Fprintf(os.Stderr, "\r  [%d/%d] %3d%%", done, total, pct)
		} else {
			fmt.Fprintf(os.Stderr, "\r  [%d/%d] 100%%\n", done, total)
		}
	}
}
