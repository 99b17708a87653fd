// Package msg holds the messages exchanged between the viewer service and
// its front ends. protocol.go defines the request/response union that also
// travels as JSON over the bridge; this file holds the messages only the
// terminal UI passes around.
package msg

import (
	"time"

	"github.com/sadopc/dbviewer/internal/adapter"
)

// Pane focus targets.
type Pane int

const (
	PaneSidebar Pane = iota
	PaneEditor
	PaneResults
	PaneDiagram
)

func (p Pane) String() string {
	switch p {
	case PaneEditor:
		return "query"
	case PaneResults:
		return "results"
	case PaneDiagram:
		return "diagram"
	default:
		return "tables"
	}
}

// FocusMsg requests a pane focus change.
type FocusMsg struct {
	Pane Pane
}

// ConnectMsg is sent when a database connection is established.
type ConnectMsg struct {
	Conn    adapter.Connection
	Adapter string
	DSN     string
}

// ConnectErrMsg is sent when a connection attempt fails.
type ConnectErrMsg struct {
	Err error
}

// ResponseMsg carries a service response back into the UI. Gen is the
// connection generation the request was issued under, so answers from a
// previous connection can be dropped.
type ResponseMsg struct {
	Request  Request
	Response Response
	Gen      uint64
	Duration time.Duration
}

// StatusMsg updates the status bar text.
type StatusMsg struct {
	Text     string
	IsError  bool
	Duration time.Duration
}

// ExportCompleteMsg is sent when a CSV export finishes.
type ExportCompleteMsg struct {
	Path     string
	RowCount int64
}

// ExportErrMsg is sent when export fails.
type ExportErrMsg struct {
	Err error
}

// InsertTextMsg asks the editor to insert text at its cursor.
type InsertTextMsg struct {
	Text string
}
