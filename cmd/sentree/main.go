// Command sentree analyzes sentences from the command line using the same
// templates, cache and completion client as the HTTP server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dgallion1/sentree/internal/app"
	"github.com/dgallion1/sentree/internal/config"
	"github.com/dgallion1/sentree/internal/render"
	"github.com/dgallion1/sentree/internal/syntree"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	logLevel  string
	resources string
	cacheDir  string
	noCache   bool
}

func rootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "sentree",
		Short:         "Lazy constituency analysis of English sentences",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.resources, "resources", "", "Template directory holding current.json (default $RESOURCES_DIR)")
	cmd.PersistentFlags().StringVar(&opts.cacheDir, "cache-dir", "", "Result cache directory (default $CACHE_DIR)")
	cmd.PersistentFlags().BoolVar(&opts.noCache, "no-cache", false, "Bypass the result cache")

	cmd.AddCommand(
		analyzeCmd(opts),
		expandCmd(opts),
		promptCmd(opts),
		cacheCmd(opts),
		versionCmd(opts),
	)
	return cmd
}

// build loads configuration from the environment, applies flag overrides and
// wires the analyzer.
func (o *options) build() (*app.App, error) {
	level := slog.LevelWarn
	switch strings.ToLower(o.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Load()
	if o.resources != "" {
		cfg.ResourcesDir = o.resources
	}
	if o.cacheDir != "" {
		cfg.CacheDir = o.cacheDir
	}
	if o.noCache {
		cfg.CacheEnabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.Build(cfg, log)
}

func analyzeCmd(opts *options) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "analyze <sentence>",
		Short: "Split a sentence into its top-level clauses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			a, err := opts.build()
			if err != nil {
				return err
			}
			defer a.Close()

			sentence := strings.Join(strings.Fields(strings.Join(args, " ")), " ")
			nodes, err := a.Analyzer.AnalyzeSentence(cmd.Context(), sentence)
			if err != nil {
				return err
			}
			return writeNodes(cmd.OutOrStdout(), format, sentence, nodes)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, markdown, html)")
	return cmd
}

func expandCmd(opts *options) *cobra.Command {
	var (
		format string
		ctype  string
		unit   string
	)
	cmd := &cobra.Command{
		Use:   "expand <text>",
		Short: "Expand one clause or phrase into its constituents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			a, err := opts.build()
			if err != nil {
				return err
			}
			defer a.Close()

			text := strings.Join(args, " ")
			nodes, err := a.Analyzer.AnalyzeNode(cmd.Context(), text, ctype, syntree.Unit(unit))
			if err != nil {
				return err
			}
			return writeNodes(cmd.OutOrStdout(), format, text, nodes)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, markdown, html)")
	cmd.Flags().StringVarP(&ctype, "type", "t", "", `Constituent type, e.g. "Noun Phrase"`)
	cmd.Flags().StringVarP(&unit, "unit", "u", string(syntree.UnitPhrase), "Unit (Clause or Phrase)")
	return cmd
}

func promptCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <type> <text>",
		Short: "Print the prompt that would be sent, without sending it",
		Long: `Print the fully substituted prompt and generation parameters for a
prompt type and text. Types: sentence, verb, noun, prep, adj, adv, inf, ger, part.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build()
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := a.Analyzer.PromptInfo(args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), info)
		},
	}
}

func cacheCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the result cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List cached sentences, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := opts.build()
				if err != nil {
					return err
				}
				defer a.Close()

				entries, err := a.Entries.List()
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n",
						e.AnalyzedAt.Format("2006-01-02T15:04:05Z"), len(e.Components), e.Sentence)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached result",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := opts.build()
				if err != nil {
					return err
				}
				defer a.Close()

				if err := a.Analyzer.ClearCache(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
				return nil
			},
		},
	)
	return cmd
}

func versionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the template set version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build()
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "sentree templates %s\n", a.Analyzer.APIVersion())
			return nil
		},
	}
}

// checkFormat rejects an unknown output format before any completion call
// is paid for.
func checkFormat(format string) error {
	switch format {
	case "json", "", "markdown", "md", "html":
		return nil
	}
	return fmt.Errorf("unsupported format %q", format)
}

func writeNodes(w io.Writer, format, title string, nodes []syntree.Node) error {
	switch format {
	case "json", "":
		return writeJSON(w, nodes)
	case "markdown", "md":
		_, err := io.WriteString(w, render.Markdown(title, nodes))
		return err
	case "html":
		out, err := render.HTML(title, nodes)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
