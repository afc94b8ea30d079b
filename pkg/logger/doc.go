// Package logger provides logging for the flox SDK.
//
// It separates internal diagnostics (Info, Warning, Error) from user-facing
// messages (InfoToUser, WarningToUser, Success, StatusMessage). Internal
// diagnostics go to a structured log file when debug logging is enabled;
// user-facing messages are printed to stdout/stderr.
//
// The document protocols in pkg/floxmeta never log; logging is used by the
// process-context plumbing (directory provisioning, token loading) where a
// tolerated failure must still leave a trace.
//
// # Usage
//
//	log := logger.New(cfg.Debug, cfg.LogFile, cfg.Verbose)
//	defer log.Close()
//
//	log.Info("opened floxmeta repository for %s", owner)
//	log.WarningToUser("could not read floxhub token, continuing without one")
package logger
