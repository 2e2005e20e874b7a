// Package batch runs per-item operations for tools that accept several ids
// and reports partial failures instead of aborting on the first one.
package batch
