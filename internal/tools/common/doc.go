// Package common provides shared helpers for the MCP tool packages: the
// account argument, Gmail client lookup and the instrumented handler wrapper
// that records spans, metrics and audit entries for every tool call.
package common
