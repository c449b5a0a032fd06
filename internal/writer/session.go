// Package writer lays out CLI session directories and writes generated
// courses to them.
package writer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const sessionTimeFormat = "2006-01-02T15-04-05"

// SessionManager owns one session directory under the output root
type SessionManager struct {
	outputDir  string
	sessionDir string
	logger     *slog.Logger
}

// NewSessionManager creates a fresh timestamped session under outputDir,
// or reopens resumeFromSession when it is set
func NewSessionManager(outputDir, resumeFromSession string, logger *slog.Logger) (*SessionManager, error) {
	if outputDir == "" {
		outputDir = "output"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var sessionDir string
	if resumeFromSession != "" {
		if err := ValidateSessionPath(outputDir, resumeFromSession); err != nil {
			return nil, err
		}
		sessionDir = filepath.Join(outputDir, resumeFromSession)
		if _, err := os.Stat(sessionDir); os.IsNotExist(err) {
			return nil, fmt.Errorf("session directory not found: %s", sessionDir)
		}
		logger.Info("Resuming from existing session", "path", sessionDir)
	} else {
		sessionDir = filepath.Join(outputDir, "session_"+time.Now().Format(sessionTimeFormat))
		if err := os.MkdirAll(sessionDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
		logger.Info("Created new session directory", "path", sessionDir)
	}

	return &SessionManager{
		outputDir:  outputDir,
		sessionDir: sessionDir,
		logger:     logger,
	}, nil
}

// GetSessionDir returns the session directory path
func (sm *SessionManager) GetSessionDir() string {
	return sm.sessionDir
}

// GetCoursePath returns the path of the generated course document
func (sm *SessionManager) GetCoursePath() string {
	return filepath.Join(sm.sessionDir, "course.json")
}

// GetChaptersDir returns the directory holding one component file per chapter
func (sm *SessionManager) GetChaptersDir() string {
	return filepath.Join(sm.sessionDir, "chapters")
}

// GetLogPath returns the full path to the session log file
func (sm *SessionManager) GetLogPath() string {
	return filepath.Join(sm.sessionDir, "session.log")
}

// GetTracePath returns the file spans are exported to when tracing is on
func (sm *SessionManager) GetTracePath() string {
	return filepath.Join(sm.sessionDir, "traces.jsonl")
}

// GetConfigBackupPath returns the full path to the config backup
func (sm *SessionManager) GetConfigBackupPath() string {
	return filepath.Join(sm.sessionDir, "config.toml.bak")
}

// BackupConfig copies the config file into the session so a run can be reproduced
func (sm *SessionManager) BackupConfig(configPath string) error {
	source, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := os.WriteFile(sm.GetConfigBackupPath(), source, 0644); err != nil {
		return fmt.Errorf("failed to write config backup: %w", err)
	}
	sm.logger.Debug("Backed up config file", "path", sm.GetConfigBackupPath())
	return nil
}
