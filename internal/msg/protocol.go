package msg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sadopc/dbviewer/internal/ddl"
	"github.com/sadopc/dbviewer/internal/diagram"
	"github.com/sadopc/dbviewer/internal/schema"
)

// Command names a message on the wire.
type Command string

const (
	CmdExtractSchema       Command = "EXTRACT_SCHEMA"
	CmdLoadSchema          Command = "LOAD_SCHEMA"
	CmdQueryDatabase       Command = "QUERY_DATABASE"
	CmdDisplayTables       Command = "DISPLAY_TABLES"
	CmdQueryTable          Command = "QUERY_TABLE"
	CmdDisplayQueryResults Command = "DISPLAY_QUERY_RESULTS"
	CmdUpdateRecord        Command = "UPDATE_RECORD"
	CmdRecordUpdated       Command = "RECORD_UPDATED"
	CmdRenderDiagram       Command = "RENDER_DIAGRAM"
	CmdDisplayDiagram      Command = "DISPLAY_DIAGRAM"
	CmdError               Command = "ERROR"
)

// ErrUnknownCommand is returned when a message names no known command.
var ErrUnknownCommand = errors.New("unknown command")

// Request is sent to the viewer service.
type Request interface {
	Command() Command
	request()
}

// Response is produced by the viewer service. Every request gets exactly
// one response.
type Response interface {
	Command() Command
	response()
}

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

// ExtractSchemaMsg asks for the schema extracted from the database DDL.
type ExtractSchemaMsg struct{}

// QueryDatabaseMsg asks for every table with its columns.
type QueryDatabaseMsg struct{}

// QueryTableMsg asks for rows. A non-empty SelectQuery runs as given and
// TableName then only names the table whose key columns are marked; with no
// SelectQuery the table is previewed.
type QueryTableMsg struct {
	TableName   string `json:"tableName,omitempty"`
	SelectQuery string `json:"selectQuery,omitempty"`
}

// UpdateRecordMsg edits the row identified by its key values in Record.
// PrimaryKey names a key column; when it is part of a composite primary key
// the other key columns must be present in Record too.
type UpdateRecordMsg struct {
	TableName      string `json:"tableName"`
	Record         Record `json:"record"`
	PrimaryKey     string `json:"primaryKey"`
	PrimaryKeyType string `json:"primaryKeyType,omitempty"`
}

// RenderDiagramMsg asks for the relationship diagram. Positions pins tables
// to fixed coordinates; the rest are laid out on the grid.
type RenderDiagramMsg struct {
	Positions map[string]diagram.Point `json:"positions,omitempty"`
}

func (ExtractSchemaMsg) Command() Command { return CmdExtractSchema }
func (QueryDatabaseMsg) Command() Command { return CmdQueryDatabase }
func (QueryTableMsg) Command() Command    { return CmdQueryTable }
func (UpdateRecordMsg) Command() Command  { return CmdUpdateRecord }
func (RenderDiagramMsg) Command() Command { return CmdRenderDiagram }

func (ExtractSchemaMsg) request() {}
func (QueryDatabaseMsg) request() {}
func (QueryTableMsg) request()    {}
func (UpdateRecordMsg) request()  {}
func (RenderDiagramMsg) request() {}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

// LoadSchemaMsg answers ExtractSchemaMsg.
type LoadSchemaMsg struct {
	Schema      *schema.Schema   `json:"schema"`
	Diagnostics []ddl.Diagnostic `json:"diagnostics"`
}

// TableInfo is one table of a DisplayTablesMsg.
type TableInfo struct {
	Name    string         `json:"name"`
	Columns []ResultColumn `json:"columns"`
}

// ResultColumn describes a column of a table or a result set.
type ResultColumn struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	IsPrimaryKey bool   `json:"isPrimaryKey"`
	IsForeignKey bool   `json:"isForeignKey"`
}

// DisplayTablesMsg answers QueryDatabaseMsg.
type DisplayTablesMsg struct {
	Tables []TableInfo `json:"tables"`
}

// DisplayQueryResultsMsg answers QueryTableMsg. Each row maps column name to
// value, with SQL NULL as a nil value.
type DisplayQueryResultsMsg struct {
	TableName   string         `json:"tableName"`
	Columns     []ResultColumn `json:"columns"`
	Rows        []Record       `json:"rows"`
	SelectQuery string         `json:"selectQuery"`
}

// PrimaryKey returns the first primary-key column, if any.
func (m DisplayQueryResultsMsg) PrimaryKey() (ResultColumn, bool) {
	for _, c := range m.Columns {
		if c.IsPrimaryKey {
			return c, true
		}
	}
	return ResultColumn{}, false
}

// RecordUpdatedMsg answers UpdateRecordMsg.
type RecordUpdatedMsg struct {
	TableName    string `json:"tableName"`
	RowsAffected int64  `json:"rowsAffected"`
}

// DisplayDiagramMsg answers RenderDiagramMsg.
type DisplayDiagramMsg struct {
	Scene    *diagram.Scene    `json:"scene"`
	Warnings []diagram.Warning `json:"warnings"`
}

// ErrorMsg answers any request that failed.
type ErrorMsg struct {
	Request Command `json:"request"`
	Message string  `json:"message"`
}

func (m ErrorMsg) Error() string {
	if m.Request == "" {
		return m.Message
	}
	return fmt.Sprintf("%s: %s", m.Request, m.Message)
}

func (LoadSchemaMsg) Command() Command          { return CmdLoadSchema }
func (DisplayTablesMsg) Command() Command       { return CmdDisplayTables }
func (DisplayQueryResultsMsg) Command() Command { return CmdDisplayQueryResults }
func (RecordUpdatedMsg) Command() Command       { return CmdRecordUpdated }
func (DisplayDiagramMsg) Command() Command      { return CmdDisplayDiagram }
func (ErrorMsg) Command() Command               { return CmdError }

func (LoadSchemaMsg) response()          {}
func (DisplayTablesMsg) response()       {}
func (DisplayQueryResultsMsg) response() {}
func (RecordUpdatedMsg) response()       {}
func (DisplayDiagramMsg) response()      {}
func (ErrorMsg) response()               {}

// NewError builds the ErrorMsg answering req.
func NewError(req Request, err error) ErrorMsg {
	m := ErrorMsg{Message: err.Error()}
	if req != nil {
		m.Request = req.Command()
	}
	return m
}

// ---------------------------------------------------------------------------
// Wire codec
// ---------------------------------------------------------------------------

type header struct {
	Command Command `json:"command"`
}

type envelope struct {
	Command Command         `json:"command"`
	Data    json.RawMessage `json:"data,omitempty"`
}

var requestDecoders = map[Command]func([]byte) (Request, error){
	CmdExtractSchema: decodeRequest[ExtractSchemaMsg],
	CmdQueryDatabase: decodeRequest[QueryDatabaseMsg],
	CmdQueryTable:    decodeRequest[QueryTableMsg],
	CmdUpdateRecord:  decodeRequest[UpdateRecordMsg],
	CmdRenderDiagram: decodeRequest[RenderDiagramMsg],
}

func decodeRequest[T Request](data []byte) (Request, error) {
	var m T
	err := json.Unmarshal(data, &m)
	return m, err
}

// DecodeRequest parses a flat request object such as
// {"command":"QUERY_TABLE","tableName":"users"}.
func DecodeRequest(data []byte) (Request, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	decode, ok := requestDecoders[h.Command]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, h.Command)
	}
	req, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", h.Command, err)
	}
	return req, nil
}

// EncodeRequest writes req in the flat form DecodeRequest reads.
func EncodeRequest(req Request) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", req.Command(), err)
	}
	head, err := json.Marshal(header{Command: req.Command()})
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if string(body) == "{}" {
		return head, nil
	}
	// Splice the command in as the first key.
	out := append(head[:len(head)-1], ',')
	return append(out, body[1:]...), nil
}

// EncodeResponse wraps resp as {"command":...,"data":{...}}.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", resp.Command(), err)
	}
	return json.Marshal(envelope{Command: resp.Command(), Data: data})
}

var responseDecoders = map[Command]func(json.RawMessage) (Response, error){
	CmdLoadSchema:          decodeResponse[LoadSchemaMsg],
	CmdDisplayTables:       decodeResponse[DisplayTablesMsg],
	CmdDisplayQueryResults: decodeResponse[DisplayQueryResultsMsg],
	CmdRecordUpdated:       decodeResponse[RecordUpdatedMsg],
	CmdDisplayDiagram:      decodeResponse[DisplayDiagramMsg],
	CmdError:               decodeResponse[ErrorMsg],
}

func decodeResponse[T Response](data json.RawMessage) (Response, error) {
	var m T
	if len(data) == 0 {
		return m, nil
	}
	err := json.Unmarshal(data, &m)
	return m, err
}

// DecodeResponse parses an envelope written by EncodeResponse.
func DecodeResponse(data []byte) (Response, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	decode, ok := responseDecoders[env.Command]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, env.Command)
	}
	resp, err := decode(env.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Command, err)
	}
	return resp, nil
}
