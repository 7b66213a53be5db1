// Package logx configures duyurubot's structured logging.
//
// Components receive a logx.Logger at construction time; there is no
// process-wide logger. The wrapper on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An optional chat sink for warnings/errors (min-level + rate limiting)
package logx
