package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docuchat/internal/config"
	"docuchat/internal/loader"
	"docuchat/internal/logging"
	"docuchat/internal/service"
	"docuchat/internal/session"
	"docuchat/internal/tui"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg *config.AppConfig
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "docuchat",
		Short:         "Chat with your PDF documents",
		Long:          "docuchat indexes PDF files and answers questions about them, falling back to web search when the documents are not enough.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to YAML config file (default ./config.yaml or ~/.config/docuchat/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		a.ingestCmd(),
		a.askCmd(),
		a.chatCmd(),
		a.resetCmd(),
		a.statusCmd(),
	)
	return root
}

func (a *app) init() error {
	var err error
	if a.configPath == "" {
		a.cfg, _, err = config.LoadDefault()
	} else {
		a.cfg, err = config.Load(a.configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
	}
	a.log, err = logging.New(a.cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	return nil
}

// open builds the component graph and a session over it.
func (a *app) open(ctx context.Context, needLLM bool) (*session.Session, *components, error) {
	c, err := build(ctx, a.cfg, needLLM, a.log)
	if err != nil {
		return nil, nil, err
	}
	s := session.New(c.pipeline, c.store, a.log)
	s.SetEscalation(a.cfg.Escalation.Enabled)
	return s, c, nil
}

func (a *app) ingestCmd() *cobra.Command {
	var copyUpload bool
	cmd := &cobra.Command{
		Use:   "ingest <file.pdf>...",
		Short: "Index one or more PDF files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			for _, path := range args {
				if !strings.EqualFold(filepath.Ext(path), ".pdf") {
					return fmt.Errorf("%s: only PDF files are supported", path)
				}
				if copyUpload {
					if path, err = a.copyToUploads(path); err != nil {
						return err
					}
				}
				report, err := s.Upload(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				printReport(cmd.OutOrStdout(), report)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&copyUpload, "copy", false, "copy files into the configured upload directory before indexing")
	return cmd
}

func (a *app) copyToUploads(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return loader.SaveUpload(a.cfg.Storage.UploadDir, filepath.Base(path), f)
}

func printReport(w io.Writer, r service.IngestReport) {
	if r.Skipped {
		fmt.Fprintf(w, "%s is already indexed, skipped\n", r.Filename)
		return
	}
	fmt.Fprintf(w, "Indexed %s: %d pages, %d chunks\n", r.Filename, r.Pages, r.Chunks)
	if r.Digest != "" {
		fmt.Fprintf(w, "  %s\n", r.Digest)
	}
}

func (a *app) askCmd() *cobra.Command {
	var noEscalation bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()
			if noEscalation {
				s.SetEscalation(false)
			}

			res, err := s.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			if res.State == service.StateFailed {
				return fmt.Errorf("answer failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noEscalation, "no-escalation", false, "never fall back to web search")
	return cmd
}

func printResult(w io.Writer, res service.Result) {
	fmt.Fprintln(w, res.Text)
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "\nWarning: %s\n", warn)
	}
	if len(res.Citations) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for _, c := range res.Citations {
		fmt.Fprintf(w, "  %s (%s, %d chunks)\n", c.Filename, c.PageRange, c.ChunkCount)
	}
	if res.Escalated {
		fmt.Fprintln(w, "  + external web search")
	}
}

func (a *app) chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [file.pdf]...",
		Short: "Open the interactive chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()

			digest := "Upload a PDF with /upload <path> to get started."
			for _, path := range args {
				report, err := s.Upload(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				if report.Digest != "" {
					digest = report.Digest
				}
			}

			m := tui.New(cmd.Context(), s, digest)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}

func (a *app) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove every indexed document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Reset(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Store cleared.")
			return nil
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configured store and how many chunks it holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, c, err := a.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := c.store.Count(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "store:      %s (%s)\n", a.cfg.VectorStore.Type, storeLocation(a.cfg.VectorStore))
			fmt.Fprintf(out, "chunks:     %d\n", n)
			fmt.Fprintf(out, "embedder:   %s\n", c.embedder.Name())
			fmt.Fprintf(out, "llm:        %s (%s)\n", a.cfg.LLM.Type, a.cfg.LLM.Model)
			fmt.Fprintf(out, "web search: %s\n", availability(s.SearchAvailable(), s.Escalation()))
			return nil
		},
	}
}

func availability(available, enabled bool) string {
	switch {
	case !enabled:
		return "disabled"
	case !available:
		return "enabled, no API key"
	default:
		return "enabled"
	}
}
