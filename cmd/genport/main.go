package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"genport/internal/cache"
	"genport/internal/config"
	"genport/internal/logging"
	"genport/internal/platform"
	"genport/internal/provider"
	"genport/internal/tools"
	"genport/internal/vfs"
	"genport/internal/watcher"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var modelFlag string

	root := &cobra.Command{
		Use:          "genport",
		Short:        "Provider-portable content generation and file tooling",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Logging.Enabled {
				pf := platform.NewFactory().Create()
				if dir, derr := pf.StoragePath(); derr == nil {
					_ = logging.EnableFileLogging(dir, logging.Level(cfg.Logging.Level))
				}
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&modelFlag, "model", "", "model to use")

	root.AddCommand(
		newAskCmd(&modelFlag),
		newLsCmd(),
		newFindCmd(),
		newSearchCmd(),
		newModelsCmd(&modelFlag),
		newVersionCmd(),
	)
	return root
}

// workspacePlatform selects where file commands operate: a remote SFTP
// store when ssh.host is configured, the in-memory sandbox when sandbox is
// set, the host filesystem otherwise.
func workspacePlatform() (platform.Platform, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	switch {
	case cfg.SSH.Host != "":
		return platform.NewSandboxPlatform(vfs.NewSFTPStore(cfg.SFTPConfig()), nil), nil
	case cfg.Sandbox:
		return platform.NewSandboxPlatform(nil, nil), nil
	default:
		return platform.NewFactory().Create(), nil
	}
}

// newSearchCache returns a result cache for fs, invalidated by filesystem
// events when the workspace is the host filesystem. The cleanup stops the
// watcher.
func newSearchCache(fs vfs.FileSystem, pf platform.Platform) (*cache.SearchCache, func()) {
	c := cache.New(cache.DefaultCapacity)
	if pf.Name() != "native" {
		return c, func() {}
	}
	w, err := watcher.New(c)
	if err != nil {
		logging.Warn("watcher unavailable, cache runs uninvalidated", "error", err)
		return c, func() {}
	}
	if err := w.Add(fs.Cwd()); err != nil {
		logging.Warn("cannot watch workspace", "dir", fs.Cwd(), "error", err)
	}
	return c, func() { _ = w.Close() }
}

func newGenerator(ctx context.Context, modelFlag string) (provider.ContentGenerator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	fc := cfg.FactoryConfig()
	if modelFlag != "" {
		fc.Model = modelFlag
	}
	return provider.NewGenerator(ctx, fc)
}

func newAskCmd(modelFlag *string) *cobra.Command {
	var noStream bool
	var copyOut bool

	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send a prompt and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gen, err := newGenerator(ctx, *modelFlag)
			if err != nil {
				return err
			}

			req := provider.GenerateRequest{
				Contents: []*genai.Content{
					genai.NewContentFromText(args[0], genai.RoleUser),
				},
			}

			var full strings.Builder
			if noStream {
				resp, err := gen.GenerateContent(ctx, req)
				if err != nil {
					return err
				}
				full.WriteString(responseText(resp))
				fmt.Println(full.String())
			} else {
				stream, err := gen.GenerateContentStream(ctx, req)
				if err != nil {
					return err
				}
				for chunk := range stream.Chunks {
					if chunk.Err != nil {
						return chunk.Err
					}
					text := responseText(chunk.Response)
					full.WriteString(text)
					fmt.Print(text)
				}
				fmt.Println()
			}

			if copyOut {
				pf := platform.NewFactory().Create()
				if err := pf.WriteClipboard(ctx, full.String()); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "wait for the full response")
	cmd.Flags().BoolVar(&copyOut, "copy", false, "copy the response to the clipboard")
	return cmd
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			out += part.Text
		}
	}
	return out
}

func runTool(ctx context.Context, t tools.Tool, args map[string]any) error {
	if err := t.Validate(args); err != nil {
		return err
	}
	result, err := t.Execute(ctx, args)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}
	fmt.Print(result.Content)
	return nil
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List directory contents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := workspacePlatform()
			if err != nil {
				return err
			}
			fs, err := pf.CreateFileSystem()
			if err != nil {
				return err
			}
			toolArgs := map[string]any{}
			if len(args) > 0 {
				toolArgs["path"] = args[0]
			}
			return runTool(cmd.Context(), tools.NewListDirTool(fs, fs.Cwd()), toolArgs)
		},
	}
}

func newFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <pattern>",
		Short: "Find files matching a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := workspacePlatform()
			if err != nil {
				return err
			}
			fs, err := pf.CreateFileSystem()
			if err != nil {
				return err
			}
			c, stop := newSearchCache(fs, pf)
			defer stop()

			tool := tools.NewGlobTool(fs, fs.Cwd())
			tool.SetCache(c)
			return runTool(cmd.Context(), tool, map[string]any{
				"pattern": args[0],
			})
		},
	}
}

func newSearchCmd() *cobra.Command {
	var caseInsensitive bool

	cmd := &cobra.Command{
		Use:   "search <regex> [path]",
		Short: "Search file contents with a regular expression",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := workspacePlatform()
			if err != nil {
				return err
			}
			fs, err := pf.CreateFileSystem()
			if err != nil {
				return err
			}
			c, stop := newSearchCache(fs, pf)
			defer stop()

			tool := tools.NewGrepTool(fs, fs.Cwd())
			tool.SetCache(c)
			toolArgs := map[string]any{
				"pattern":          args[0],
				"case_insensitive": caseInsensitive,
			}
			if len(args) > 1 {
				toolArgs["path"] = args[1]
			}
			return runTool(cmd.Context(), tool, toolArgs)
		},
	}
	cmd.Flags().BoolVarP(&caseInsensitive, "ignore-case", "i", false, "case-insensitive matching")
	return cmd
}

func newModelsCmd(modelFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Show the configured model, or list local Ollama models",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			fc := cfg.FactoryConfig()
			if *modelFlag != "" {
				fc.Model = *modelFlag
			}
			gen, err := provider.NewGenerator(ctx, fc)
			if err != nil {
				return err
			}

			if og, ok := gen.(*provider.OllamaGenerator); ok {
				if err := og.Healthcheck(ctx); err != nil {
					return err
				}
				models, err := og.ListModels(ctx)
				if err != nil {
					return err
				}
				for _, m := range models {
					fmt.Println(m)
				}
				return nil
			}

			if fc.Model == "" {
				fmt.Println("(provider default)")
				return nil
			}
			model := provider.MapModelName(fc.AuthType, fc.Model)
			profile := provider.GetModelProfile(model)
			fmt.Printf("%s (context %d tokens, tools: %t)\n",
				model, profile.ContextWindow, profile.SupportsTools)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("genport", version)
		},
	}
}
