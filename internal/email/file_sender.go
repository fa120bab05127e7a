package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileEmailSender implements the Sender interface by appending email content to a file.
type FileEmailSender struct {
	mu       sync.Mutex
	filePath string
	logger   *zap.Logger
}

// NewFileEmailSender creates a new FileEmailSender.
// It ensures the directory for the log file exists.
func NewFileEmailSender(filePath string, logger *zap.Logger) (Sender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("email log file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for email log file '%s': %w", dir, err)
	}

	return &FileEmailSender{
		filePath: filePath,
		logger:   logger.With(zap.String("component", "email.file")),
	}, nil
}

// Send writes the raw email message to the configured file.
func (s *FileEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open email log file: %w", err)
	}
	defer file.Close()

	entry := []byte(fmt.Sprintf("--- Email Logged at %s (To: %v, Subject: %s) ---\n",
		time.Now().Format(time.RFC3339Nano), to, subject))
	entry = append(entry, rawMessage...)
	entry = append(entry, "--- End Logged Email ---\n\n"...)

	if _, err := file.Write(entry); err != nil {
		return fmt.Errorf("failed to write email to log file: %w", err)
	}

	s.logger.Debug("email written to file", zap.Strings("to", to), zap.String("path", s.filePath))
	return nil
}
