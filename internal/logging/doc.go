// Package logging provides structured logging helpers for mailtriage.
//
// It keeps attribute names consistent (operation, thread_id, label, status,
// error) and builds the process logger from the --log-level and --log-format
// flags:
//
//	logger, err := logging.New("debug", logging.FormatJSON, os.Stderr)
//	logger = logging.WithOperation(logger, "triage")
//	logger.Info("moved thread", logging.ThreadID(id), logging.Err(nil))
//
// Err drops nil errors so it can be passed unconditionally.
package logging
