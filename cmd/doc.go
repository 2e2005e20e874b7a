// Package cmd implements the command-line interface for mcp-gmail.
//
// This package provides the following commands:
//   - search: List messages matching a Gmail query
//   - send: Send a plain text email
//   - get: Print one message with its headers and body
//   - accounts: List the accounts with stored credentials
//   - auth: Authorize an account interactively and store its token
//   - serve: Start the MCP server over stdio
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// Results go to standard output; confirmations, pagination tokens and logs go
// to standard error. Any error exits with status 1.
package cmd
