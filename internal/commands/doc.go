// Package commands implements the chat command layer for hosted bots:
// a data-driven catalog of named handlers and a router that parses
// prefixed messages, consults the per-bot enablement table, and turns
// handler output into replies.
package commands
