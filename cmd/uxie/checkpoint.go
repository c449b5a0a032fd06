package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lamim/uxie/internal/checkpoint"
	"github.com/lamim/uxie/internal/writer"
	"github.com/lamim/uxie/pkg/models"
)

type sessionSummary struct {
	name       string
	hasCheckpt bool
	phase      string
	progress   float64
}

// listCheckpoints lists all available checkpoint sessions
func listCheckpoints(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(out, "No output directory found. Run a generation first.")
			return nil
		}
		return fmt.Errorf("failed to read output directory: %w", err)
	}

	var sessions []sessionSummary
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "session_") {
			continue
		}
		s := sessionSummary{name: entry.Name(), phase: "N/A"}
		sessionPath := filepath.Join(outputDir, entry.Name())
		if _, err := os.Stat(filepath.Join(sessionPath, checkpoint.CheckpointFilename)); err == nil {
			s.hasCheckpt = true
			if cp, err := checkpoint.Load(sessionPath, slog.Default()); err == nil {
				s.phase = string(cp.CurrentPhase)
				s.progress = checkpoint.GetProgressPercentage(cp)
			}
		}
		sessions = append(sessions, s)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(out, "No session directories found.")
		return nil
	}

	fmt.Fprintln(out, "Available sessions:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%-35s %-12s %-12s %s\n", "SESSION", "CHECKPOINT", "PHASE", "CHAPTERS")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, s := range sessions {
		checkpointStatus := "No"
		if s.hasCheckpt {
			checkpointStatus = "Yes"
		}
		fmt.Fprintf(out, "%-35s %-12s %-12s %.1f%%\n", s.name, checkpointStatus, s.phase, s.progress)
	}
	return nil
}

// loadSessionCheckpoint validates the session name and loads its checkpoint
func loadSessionCheckpoint(sessionDir string) (*models.Checkpoint, error) {
	if err := writer.ValidateSessionPath(outputDir, sessionDir); err != nil {
		return nil, fmt.Errorf("invalid session directory: %w", err)
	}
	fullPath := filepath.Join(outputDir, sessionDir)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("session directory not found: %s", sessionDir)
	}
	cp, err := checkpoint.Load(fullPath, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

// inspectCheckpoint displays detailed information about a checkpoint
func inspectCheckpoint(cmd *cobra.Command, args []string) error {
	sessionDir := args[0]
	cp, err := loadSessionCheckpoint(sessionDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Checkpoint Information for: %s\n", sessionDir)
	fmt.Fprintln(out, strings.Repeat("=", 80))
	fmt.Fprintf(out, "Session ID:          %s\n", cp.SessionID)
	fmt.Fprintf(out, "Created At:          %s\n", cp.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Last Saved At:       %s\n", cp.LastSavedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Current Phase:       %s\n", cp.CurrentPhase)
	fmt.Fprintf(out, "Request Hash:        %s\n", cp.RequestHash)
	if cp.InfoComplete {
		fmt.Fprintf(out, "Course Title:        %s\n", cp.Info.Title)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Phase Progress:")
	fmt.Fprintf(out, "  Course Info:       %s\n", statusStr(cp.InfoComplete))
	fmt.Fprintf(out, "  Plan:              %s (%d chapters)\n", statusStr(cp.PlanComplete), len(cp.Plan))
	fmt.Fprintf(out, "  Chapters:          %d / %d completed (%.1f%%)\n",
		checkpoint.GetCompletedCount(cp),
		checkpoint.GetTotalCount(cp),
		checkpoint.GetProgressPercentage(cp))
	if pending := checkpoint.GetPendingChapters(cp); len(pending) > 0 {
		fmt.Fprintf(out, "  Pending:           %v\n", pending)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Statistics:")
	fmt.Fprintf(out, "  Fallback Chapters: %d\n", cp.Stats.FallbackChapters)
	fmt.Fprintf(out, "  Quiz Failures:     %d\n", cp.Stats.QuizFailures)
	fmt.Fprintf(out, "  Content Attempts:  %d\n", cp.Stats.ContentAttempts)
	fmt.Fprintf(out, "  Total Duration:    %s\n", cp.Stats.TotalDuration)
	fmt.Fprintln(out)

	if cp.CurrentPhase != models.PhaseComplete {
		fmt.Fprintln(out, "To resume this session, run:")
		fmt.Fprintf(out, "  uxie checkpoint resume %s\n", sessionDir)
	} else {
		fmt.Fprintln(out, "This session is complete.")
	}
	return nil
}

// resumeFromCheckpoint resumes generation from a checkpoint
func resumeFromCheckpoint(cmd *cobra.Command, args []string) error {
	sessionDir := args[0]
	cp, err := loadSessionCheckpoint(sessionDir)
	if err != nil {
		return err
	}
	if cp.CurrentPhase == models.PhaseComplete {
		return fmt.Errorf("checkpoint is already complete, nothing to resume")
	}

	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Generation.OutputDir = outputDir
	cfg.Generation.ResumeFromSession = sessionDir

	fmt.Fprintf(cmd.OutOrStdout(), "Resuming generation from checkpoint: %s\n", sessionDir)
	fmt.Fprintf(cmd.OutOrStdout(), "Phase: %s, Chapters: %.1f%%\n\n", cp.CurrentPhase, checkpoint.GetProgressPercentage(cp))

	return runGeneration(cfg, secrets, nil)
}

func statusStr(complete bool) string {
	if complete {
		return "Complete"
	}
	return "Pending"
}
