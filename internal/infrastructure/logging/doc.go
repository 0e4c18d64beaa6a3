// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Loggers are passed explicitly to every component; nothing in the gateway
// logs through a package-level global. WithConn and WithRequest produce
// child loggers carrying the identity of the connection or dispatch the
// messages belong to.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("gateway listening", zap.String("addr", addr))
//	logger.WithConn(connID).Warn("send failed", zap.Error(err))
package logging
