// Package resources provides MCP resources for reading Gmail data.
//
// Resources are read-only views an MCP client can fetch by URI:
//
//	gmail://messages/{message_id}   one message with headers and body
//	gmail://threads/{thread_id}     every message of a thread
//	gmail://inbox                   the latest inbox messages of the default account
//	gmail://inbox/{account}         the same for a named account
//	gmail://profile                 the default account's profile as JSON
package resources
