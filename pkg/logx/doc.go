// Package logx configures braind's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional telemetry sink (min-level + rate limiting) feeding the field link
package logx
