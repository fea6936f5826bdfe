package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lingopipe/lingopipe/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

Contexts allow you to manage multiple endpoint configurations,
similar to kubectl's context management.

Configuration is stored in ~/.lingopipe/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

Required:
  - API Key: bearer credential for the translation endpoint

Optional:
  - Endpoint: custom WebSocket endpoint URL
  - Source/target languages and voice as session defaults

Example:
  lingopipe config add-context work \
    --api-key YOUR_KEY --source zh-CN --target en-US --voice mei

  # Or from a YAML/JSON file
  lingopipe config add-context work -f context.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		ctx := &cli.Context{}

		if file, _ := cmd.Flags().GetString("file"); file != "" {
			if err := cli.LoadRequest(file, ctx); err != nil {
				return err
			}
		}

		if v, _ := cmd.Flags().GetString("api-key"); v != "" {
			ctx.APIKey = v
		}
		if v, _ := cmd.Flags().GetString("endpoint"); v != "" {
			ctx.Endpoint = v
		}
		if v, _ := cmd.Flags().GetString("source"); v != "" {
			ctx.SourceLanguage = v
		}
		if v, _ := cmd.Flags().GetString("target"); v != "" {
			ctx.TargetLanguage = v
		}
		if v, _ := cmd.Flags().GetString("voice"); v != "" {
			ctx.Voice = v
		}

		if ctx.APIKey == "" {
			return fmt.Errorf("--api-key is required (or api_key in -f file)")
		}

		cfg := getConfig()
		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}

		cli.PrintSuccess("Switched to context %q", args[0])
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Display the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		if cfg.CurrentContext == "" {
			cli.PrintInfo("No current context set")
			return nil
		}

		fmt.Println(cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		if len(cfg.Contexts) == 0 {
			cli.PrintInfo("No contexts configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tSOURCE\tTARGET\tVOICE\tENDPOINT")

		for _, name := range cfg.ListContexts() {
			ctx := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				current, name, ctx.SourceLanguage, ctx.TargetLanguage, ctx.Voice, ctx.Endpoint)
		}

		w.Flush()
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		fmt.Printf("Config file: %s\n", cfg.Path())
		fmt.Printf("Current context: %s\n", cfg.CurrentContext)
		fmt.Printf("Contexts: %d\n", len(cfg.Contexts))

		if len(cfg.Contexts) > 0 {
			fmt.Println("\nContext details:")
			for _, name := range cfg.ListContexts() {
				ctx := cfg.Contexts[name]
				fmt.Printf("\n  %s:\n", name)
				fmt.Printf("    API Key: %s\n", cli.MaskAPIKey(ctx.APIKey))
				if ctx.Endpoint != "" {
					fmt.Printf("    Endpoint: %s\n", ctx.Endpoint)
				}
				if ctx.SourceLanguage != "" {
					fmt.Printf("    Source Language: %s\n", ctx.SourceLanguage)
				}
				if ctx.TargetLanguage != "" {
					fmt.Printf("    Target Language: %s\n", ctx.TargetLanguage)
				}
				if ctx.Voice != "" {
					fmt.Printf("    Voice: %s\n", ctx.Voice)
				}
				if ctx.CaptureSampleRate > 0 {
					fmt.Printf("    Capture Sample Rate: %d Hz\n", ctx.CaptureSampleRate)
				}
				if ctx.PlaybackSampleRate > 0 {
					fmt.Printf("    Playback Sample Rate: %d Hz\n", ctx.PlaybackSampleRate)
				}
			}
		}

		return nil
	},
}

func init() {
	configAddContextCmd.Flags().String("api-key", "", "API key for the translation endpoint (required)")
	configAddContextCmd.Flags().String("endpoint", "", "WebSocket endpoint URL")
	configAddContextCmd.Flags().String("source", "", "Default source language (e.g. zh-CN)")
	configAddContextCmd.Flags().String("target", "", "Default target language (e.g. en-US)")
	configAddContextCmd.Flags().String("voice", "", "Default synthesized voice")
	configAddContextCmd.Flags().StringP("file", "f", "", "Load context from YAML/JSON file")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
