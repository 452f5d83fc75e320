// Package ui renders multy-cli output with Lipgloss.
//
// Most commands print once and exit:
//
//   - Header: banner naming the command and the router it talks to
//   - Result: success, warning and failure boxes; failures carry the
//     troubleshooting tips derived from the zapi error classification
//   - RenderSnapshot, RenderEvent, RenderRouters, RenderCommands: plain
//     listings of cached state, change events, discovery results and the
//     command table
//   - ConfirmCommand: typed confirmation before disruptive commands
//
// multy-cli watch on a terminal runs LiveModel, a Bubble Tea program that
// keeps a status line per resource above a scrolling log of events read from
// a cache subscription. Off a terminal the same events are printed with
// RenderEvent, one block per event.
//
// Styles degrade to plain text when stdout is not a terminal, so the
// renderers are safe to use in pipes and tests.
package ui
