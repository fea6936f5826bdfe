package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lingopipe/lingopipe/pkg/cli"
)

var (
	// Global flags
	cfgFile     string
	contextName string
	outputJSON  bool
	verbose     bool
	logFile     string
	metricsAddr string

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lingopipe",
	Short: "Real-time spoken-language interpreter CLI",
	Long: `lingopipe - live speech translation between two languages.

The run command captures audio from your microphone, streams it to the
translation endpoint, and plays the synthesized translation through your
speakers while showing both transcripts live.

Configuration is stored in ~/.lingopipe/config.yaml and supports multiple
contexts, similar to kubectl's context management. Credentials can also be
supplied via LINGOPIPE_API_KEY / LINGOPIPE_ENDPOINT environment variables.

Examples:
  # Set up a context
  lingopipe config add-context work --api-key YOUR_KEY \
    --source zh-CN --target en-US

  # Start interpreting
  lingopipe run

  # One-off language pair, different context
  lingopipe -c personal run --source en-US --target ja-JP
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.lingopipe/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to file (default: ~/.lingopipe/logs/lingopipe.log during run)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	// Add subcommands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(devicesCmd)
}

func initConfig() {
	var err error
	globalConfig, err = cli.LoadConfigWithPath(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// getContext returns the context configuration to use
func getContext() (*cli.Context, error) {
	cfg := getConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	ctx, err := cfg.ResolveContext(contextName)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context specified. Use -c flag or set a default context with 'lingopipe config use-context'")
		}
		return nil, err
	}

	return ctx, nil
}

// outputResult outputs the result using cli package
func outputResult(result any) error {
	format := cli.FormatYAML
	if outputJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{Format: format})
}

// printVerbose prints verbose output if enabled
func printVerbose(format string, args ...any) {
	cli.PrintVerbose(verbose, format, args...)
}
