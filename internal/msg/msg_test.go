package msg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/dbviewer/internal/ddl"
	"github.com/sadopc/dbviewer/internal/diagram"
	"github.com/sadopc/dbviewer/internal/schema"
)

// ---------------------------------------------------------------------------
// Pane
// ---------------------------------------------------------------------------

func TestPane_String(t *testing.T) {
	assert.Equal(t, "tables", PaneSidebar.String())
	assert.Equal(t, "query", PaneEditor.String())
	assert.Equal(t, "results", PaneResults.String())
	assert.Equal(t, "diagram", PaneDiagram.String())
	assert.Equal(t, "tables", Pane(42).String())
}

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Request
	}{
		{"extract schema", `{"command":"EXTRACT_SCHEMA"}`, ExtractSchemaMsg{}},
		{"query database", `{"command":"QUERY_DATABASE"}`, QueryDatabaseMsg{}},
		{"query table", `{"command":"QUERY_TABLE","tableName":"users"}`, QueryTableMsg{TableName: "users"}},
		{
			"query with select",
			`{"command":"QUERY_TABLE","selectQuery":"SELECT * FROM users"}`,
			QueryTableMsg{SelectQuery: "SELECT * FROM users"},
		},
		{
			"update record",
			`{"command":"UPDATE_RECORD","tableName":"users","record":{"id":"1","name":"Alice","email":null,"age":42},"primaryKey":"id","primaryKeyType":"INTEGER"}`,
			UpdateRecordMsg{
				TableName:      "users",
				Record:         Record{Text("id", "1"), Text("name", "Alice"), Null("email"), Text("age", "42")},
				PrimaryKey:     "id",
				PrimaryKeyType: "INTEGER",
			},
		},
		{
			"render diagram with positions",
			`{"command":"RENDER_DIAGRAM","positions":{"users":{"x":10,"y":20}}}`,
			RenderDiagramMsg{Positions: map[string]diagram.Point{"users": {X: 10, Y: 20}}},
		},
		{"extra keys ignored", `{"command":"QUERY_DATABASE","nonce":7}`, QueryDatabaseMsg{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRequest([]byte(tt.json))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRequest_Errors(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"command":"GREET"}`))
	assert.True(t, errors.Is(err, ErrUnknownCommand), "err = %v", err)

	_, err = DecodeRequest([]byte(`{}`))
	assert.True(t, errors.Is(err, ErrUnknownCommand), "missing command: err = %v", err)

	_, err = DecodeRequest([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeRequest([]byte(`{"command":"UPDATE_RECORD","record":{"tags":["a"]}}`))
	assert.Error(t, err)
}

func TestEncodeRequest(t *testing.T) {
	data, err := EncodeRequest(ExtractSchemaMsg{})
	require.NoError(t, err)
	assert.Equal(t, `{"command":"EXTRACT_SCHEMA"}`, string(data))

	data, err = EncodeRequest(QueryTableMsg{TableName: "users"})
	require.NoError(t, err)
	assert.Equal(t, `{"command":"QUERY_TABLE","tableName":"users"}`, string(data))

	req := UpdateRecordMsg{
		TableName:  "users",
		Record:     Record{Text("id", "1"), Null("email")},
		PrimaryKey: "id",
	}
	data, err = EncodeRequest(req)
	require.NoError(t, err)
	assert.Equal(t,
		`{"command":"UPDATE_RECORD","tableName":"users","record":{"id":"1","email":null},"primaryKey":"id"}`,
		string(data))

	back, err := DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, req, back)
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

func TestEncodeResponse_LoadSchema(t *testing.T) {
	res := ddl.Extract("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);")
	data, err := EncodeResponse(LoadSchemaMsg{Schema: res.Schema, Diagnostics: res.Diagnostics})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"command": "LOAD_SCHEMA",
		"data": {
			"schema": {
				"users": {
					"columns": [
						{"name": "id", "type": "INTEGER", "constraints": "PRIMARY KEY"},
						{"name": "name", "type": "TEXT", "constraints": ""}
					],
					"foreignKeys": []
				}
			},
			"diagnostics": []
		}
	}`, string(data))

	back, err := DecodeResponse(data)
	require.NoError(t, err)
	load, ok := back.(LoadSchemaMsg)
	require.True(t, ok, "got %T", back)
	assert.Equal(t, []string{"users"}, load.Schema.Names())
}

func TestResponseRoundTrip(t *testing.T) {
	s := schema.New()
	s.Add(schema.Table{Name: "users", Columns: []schema.Column{{Name: "id", Type: "INTEGER"}}})
	scene := diagram.Render(s, nil, diagram.DefaultOptions()).Scene

	tests := []Response{
		DisplayTablesMsg{Tables: []TableInfo{{
			Name:    "users",
			Columns: []ResultColumn{{Name: "id", Type: "INTEGER", IsPrimaryKey: true}},
		}}},
		DisplayQueryResultsMsg{
			TableName:   "users",
			Columns:     []ResultColumn{{Name: "id", Type: "INTEGER", IsPrimaryKey: true}, {Name: "email", Type: "TEXT"}},
			Rows:        []Record{{Text("id", "1"), Null("email")}},
			SelectQuery: `SELECT * FROM "users" LIMIT 100;`,
		},
		RecordUpdatedMsg{TableName: "users", RowsAffected: 1},
		DisplayDiagramMsg{Scene: scene, Warnings: []diagram.Warning{}},
		ErrorMsg{Request: CmdQueryTable, Message: "no such table: nope"},
	}
	for _, resp := range tests {
		t.Run(string(resp.Command()), func(t *testing.T) {
			data, err := EncodeResponse(resp)
			require.NoError(t, err)
			back, err := DecodeResponse(data)
			require.NoError(t, err)
			assert.Equal(t, resp, back)
		})
	}
}

func TestDecodeResponse_Unknown(t *testing.T) {
	_, err := DecodeResponse([]byte(`{"command":"SHOW_TABLES","data":{}}`))
	assert.True(t, errors.Is(err, ErrUnknownCommand))
}

func TestDisplayQueryResults_RowShape(t *testing.T) {
	data, err := EncodeResponse(DisplayQueryResultsMsg{
		TableName: "users",
		Columns:   []ResultColumn{{Name: "name", Type: "TEXT"}, {Name: "id", Type: "INTEGER"}},
		Rows:      []Record{{Text("name", "Bob"), Text("id", "2")}},
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rows":[{"name":"Bob","id":"2"}]`)
}

func TestPrimaryKeyColumn(t *testing.T) {
	m := DisplayQueryResultsMsg{Columns: []ResultColumn{{Name: "a"}, {Name: "id", IsPrimaryKey: true}}}
	pk, ok := m.PrimaryKey()
	assert.True(t, ok)
	assert.Equal(t, "id", pk.Name)

	_, ok = DisplayQueryResultsMsg{}.PrimaryKey()
	assert.False(t, ok)
}

func TestNewError(t *testing.T) {
	e := NewError(QueryTableMsg{}, errors.New("boom"))
	assert.Equal(t, ErrorMsg{Request: CmdQueryTable, Message: "boom"}, e)
	assert.Equal(t, "QUERY_TABLE: boom", e.Error())
	assert.Equal(t, "boom", NewError(nil, errors.New("boom")).Error())
}

// ---------------------------------------------------------------------------
// Record
// ---------------------------------------------------------------------------

func TestRecord_Get(t *testing.T) {
	r := Record{Text("id", "1"), Null("email")}

	v, ok := r.Get("id")
	require.True(t, ok)
	assert.Equal(t, "1", *v)

	v, ok = r.Get("email")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"id", "email"}, r.Names())
}

func TestRecord_UnmarshalKeepsOrder(t *testing.T) {
	var r Record
	require.NoError(t, r.UnmarshalJSON([]byte(`{"z":"1","a":true,"m":1.5}`)))
	assert.Equal(t, []string{"z", "a", "m"}, r.Names())
	v, _ := r.Get("a")
	assert.Equal(t, "true", *v)

	require.NoError(t, r.UnmarshalJSON([]byte(`null`)))
	assert.Nil(t, r)

	assert.Error(t, r.UnmarshalJSON([]byte(`[1,2]`)))
}
