package app

// Message types live in github.com/sadopc/dbviewer/internal/msg. These
// aliases keep the app code short.

import appmsg "github.com/sadopc/dbviewer/internal/msg"

type (
	Pane              = appmsg.Pane
	ConnectMsg        = appmsg.ConnectMsg
	ConnectErrMsg     = appmsg.ConnectErrMsg
	ResponseMsg       = appmsg.ResponseMsg
	StatusMsg         = appmsg.StatusMsg
	FocusMsg          = appmsg.FocusMsg
	InsertTextMsg     = appmsg.InsertTextMsg
	ExportCompleteMsg = appmsg.ExportCompleteMsg
	ExportErrMsg      = appmsg.ExportErrMsg
)

const (
	PaneSidebar = appmsg.PaneSidebar
	PaneEditor  = appmsg.PaneEditor
	PaneResults = appmsg.PaneResults
	PaneDiagram = appmsg.PaneDiagram
)
