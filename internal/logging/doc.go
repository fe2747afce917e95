// Package logging configures structured JSON logging for reelvibe.
//
// With --debug every log line is written to ~/.reelvibe/logs/reelvibe.log
// with size-based rotation. The MCP server on stdio never writes logs to
// stdout, which carries the JSON-RPC stream.
package logging
