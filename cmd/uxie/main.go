package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	envFile    string
	verbose    bool
	outputDir  string
	jsonOutput bool

	courseQuery      string
	courseHours      float64
	courseDifficulty string
	courseLanguage   string
	courseDocuments  []string
	courseID         string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "uxie",
		Short: "Uxie - AI course generator",
		Long: `Uxie turns a topic into a complete interactive course: an outline,
one validated React component per chapter, and a quiz for each chapter.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a course",
		Long: `Generate a complete course and write it to a new session directory:
1. Generate the course title, description and cover image
2. Plan the chapters
3. Write every chapter component and quiz in parallel
4. Optional: persist the course to the configured store`,
		RunE: runGenerate,
	}
	generateCmd.Flags().StringVarP(&courseQuery, "query", "q", "", "Course topic (required)")
	generateCmd.Flags().Float64Var(&courseHours, "hours", 1, "Total course length in hours")
	generateCmd.Flags().StringVar(&courseDifficulty, "difficulty", "", "easy, medium or hard (default from config)")
	generateCmd.Flags().StringVar(&courseLanguage, "language", "", "en or id (default from config)")
	generateCmd.Flags().StringSliceVar(&courseDocuments, "document", nil, "Uploaded document ID to ground chapters on (repeatable)")
	generateCmd.Flags().StringVar(&courseID, "course-id", "", "Existing course ID to persist into")
	_ = generateCmd.MarkFlagRequired("query")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Serve course-creation workflow runs, grading, tutor chat and snippet validation over HTTP",
		RunE:  runServe,
	}

	validateCmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a chapter component",
		Long:  `Run the component validator on a JSX file ("-" reads standard input)`,
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	validateCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")

	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage checkpoints",
		Long:  "Manage generation checkpoints for resuming interrupted sessions",
	}
	checkpointCmd.PersistentFlags().StringVar(&outputDir, "output", "output", "Output directory holding session folders")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all available checkpoint sessions",
		Long:  "List all session directories in the output folder and their checkpoint state",
		RunE:  listCheckpoints,
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect <session-dir>",
		Short: "Inspect a checkpoint",
		Long:  "Display detailed information about a checkpoint from a specific session",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectCheckpoint,
	}

	resumeCmd := &cobra.Command{
		Use:   "resume <session-dir>",
		Short: "Resume from a checkpoint",
		Long:  "Resume generation of the course recorded in a session, skipping finished phases and chapters",
		Args:  cobra.ExactArgs(1),
		RunE:  resumeFromCheckpoint,
	}

	checkpointCmd.AddCommand(listCmd)
	checkpointCmd.AddCommand(inspectCmd)
	checkpointCmd.AddCommand(resumeCmd)

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(checkpointCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
