package cmd

import (
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openshift-eng/gh-pulls-summary/pkg/apperrors"
)

var logLevel string

// rootCmd is the whole tool: fetch, enrich and render in one shot.
var rootCmd = &cobra.Command{
	Use:   "gh-pulls-summary",
	Short: "Summarize open GitHub pull requests as a Markdown table",
	Long: `gh-pulls-summary fetches the open pull requests of a repository,
enriches each one with review state, ready-for-review dates and optional
JIRA priority ranks, and renders the result as a sorted Markdown table.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return apperrors.New(apperrors.KindValidation, "cannot parse log-level %q: %v", logLevel, err)
		}
		log.SetLevel(level)
		log.SetOutput(os.Stderr)

		formatter := new(log.TextFormatter)
		formatter.TimestampFormat = "2006-01-02T15:04:05.999Z07:00"
		formatter.FullTimestamp = true
		log.SetFormatter(formatter)
		log.Debug("debug logging enabled")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSummarize(cmd.Context(), summarizeFlags)
	},
}

// Execute runs the tool. Errors map to exit code 1 with a readable message
// on stderr; an interrupt maps to the conventional 130.
func Execute() {
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	go func() {
		<-interrupts
		fmt.Fprintln(os.Stderr, "\nOperation cancelled by user.")
		os.Exit(130)
	}()

	if err := rootCmd.Execute(); err != nil {
		exitWithError(err)
	}
}

// exitWithError prints one line per failure, phrased by kind, and exits
// nonzero. The kind switch is exhaustive over the taxonomy.
func exitWithError(err error) {
	kind, known := apperrors.KindOf(err)
	if !known {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	switch kind {
	case apperrors.KindValidation:
		fmt.Fprintf(os.Stderr, "ERROR: Input validation failed. %v\n", err)
	case apperrors.KindJira:
		fmt.Fprintf(os.Stderr, "ERROR: JIRA error. %v\n", err)
	case apperrors.KindRateLimit:
		fmt.Fprintf(os.Stderr, "ERROR: GitHub API rate limit exceeded. %v\n", err)
	case apperrors.KindAuth, apperrors.KindNotFound, apperrors.KindAPI:
		fmt.Fprintf(os.Stderr, "ERROR: GitHub API error. %v\n", err)
	case apperrors.KindNetwork:
		fmt.Fprintf(os.Stderr, "ERROR: Network error. %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	}
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level (trace,debug,info,warn,error)")
}
