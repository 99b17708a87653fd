package results

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	appmsg "github.com/sadopc/dbviewer/internal/msg"
	"github.com/sadopc/dbviewer/internal/theme"
)

func init() {
	theme.Current = theme.Default()
}

func keyMsg(key string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func specialKeyMsg(keyType tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: keyType}
}

func loaded() Model {
	m := New()
	m.SetSize(80, 20)
	m.Focus()
	m.SetResults(sampleResult(), 3*time.Millisecond)
	return m
}

func press(m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = m.Update(k)
	}
	return m, cmd
}

func TestNew(t *testing.T) {
	m := New()
	if m.Focused() || m.Editing() {
		t.Fatal("new pane should be idle")
	}
	if m.View() != "" {
		t.Error("zero-size view should be empty")
	}
}

func TestSetResults(t *testing.T) {
	m := loaded()
	if got := len(m.Result().Rows); got != 2 {
		t.Fatalf("rows = %d, want 2", got)
	}
	if len(m.tableCols) != 3 {
		t.Fatalf("table columns = %d, want 3", len(m.tableCols))
	}
	if m.QueryDuration() != 3*time.Millisecond {
		t.Errorf("duration = %v", m.QueryDuration())
	}
	if row := m.displayRow(1); row[2] != "NULL" {
		t.Errorf("NULL cell shown as %q", row[2])
	}
}

func TestUpdate_DisplayQueryResults(t *testing.T) {
	m := New()
	m.SetSize(80, 20)
	m, _ = m.Update(sampleResult())
	if m.Result().TableName != "users" {
		t.Error("results message not applied")
	}
}

func TestCursorMovement(t *testing.T) {
	m := loaded()
	m, _ = press(m, keyMsg("l"), keyMsg("l"), keyMsg("l"))
	if _, col := m.Cursor(); col != 2 {
		t.Errorf("col = %d, want 2 (clamped)", col)
	}
	m, _ = press(m, keyMsg("0"))
	if _, col := m.Cursor(); col != 0 {
		t.Errorf("col = %d after 0", col)
	}
	m, _ = press(m, keyMsg("$"), keyMsg("h"))
	if _, col := m.Cursor(); col != 1 {
		t.Errorf("col = %d, want 1", col)
	}
	m, _ = press(m, keyMsg("j"))
	if row, _ := m.Cursor(); row != 1 {
		t.Errorf("row = %d, want 1", row)
	}
}

func TestEdit_Commit(t *testing.T) {
	m := loaded()
	m, _ = press(m, keyMsg("l"), keyMsg("e"))
	if !m.Editing() {
		t.Fatal("e should open the editor on an editable cell")
	}
	if m.input.Value() != "Alice" {
		t.Errorf("editor prefilled with %q", m.input.Value())
	}
	m.input.SetValue("Alicia")

	m, cmd := press(m, specialKeyMsg(tea.KeyEnter))
	if m.Editing() {
		t.Error("enter should close the editor")
	}
	req, ok := cmd().(appmsg.UpdateRecordMsg)
	if !ok {
		t.Fatalf("expected UpdateRecordMsg, got %T", cmd())
	}
	if req.TableName != "users" || req.PrimaryKey != "id" || req.PrimaryKeyType != "INTEGER" {
		t.Errorf("request = %+v", req)
	}
	if v, _ := req.Record.Get("name"); v == nil || *v != "Alicia" {
		t.Errorf("edited value = %v", v)
	}
	if v, _ := req.Record.Get("id"); *v != "1" {
		t.Errorf("key value = %q", *v)
	}
	if got := strings.Join(req.Record.Names(), ","); got != "id,name,email" {
		t.Errorf("field order = %s", got)
	}
}

func TestEdit_SetNull(t *testing.T) {
	m := loaded()
	m, _ = press(m, keyMsg("$"), keyMsg("e"), tea.KeyMsg{Type: tea.KeyCtrlN})
	_, cmd := press(m, specialKeyMsg(tea.KeyEnter))
	req := cmd().(appmsg.UpdateRecordMsg)
	if v, ok := req.Record.Get("email"); !ok || v != nil {
		t.Errorf("email should be NULL, got %v", v)
	}
}

func TestEdit_Cancel(t *testing.T) {
	m := loaded()
	m, _ = press(m, keyMsg("l"), keyMsg("e"), specialKeyMsg(tea.KeyEsc))
	if m.Editing() {
		t.Error("esc should cancel the edit")
	}
	if v, _ := m.Result().Rows[0].Get("name"); *v != "Alice" {
		t.Error("cancelled edit changed the row")
	}
}

func TestEdit_Refused(t *testing.T) {
	tests := []struct {
		name  string
		setup func() Model
		want  error
	}{
		{"primary key column", loaded, ErrReadOnlyColumn},
		{"foreign key column", func() Model {
			res := sampleResult()
			res.Columns[2].IsForeignKey = true
			m := loaded()
			m.SetResults(res, 0)
			m.col = 2
			return m
		}, ErrReadOnlyColumn},
		{"no primary key", func() Model {
			res := sampleResult()
			res.Columns[0].IsPrimaryKey = false
			m := loaded()
			m.SetResults(res, 0)
			m.col = 1
			return m
		}, ErrNoPrimaryKey},
		{"ad hoc query", func() Model {
			res := sampleResult()
			res.TableName = ""
			m := loaded()
			m.SetResults(res, 0)
			m.col = 1
			return m
		}, ErrNotEditable},
		{"empty result", func() Model {
			m := loaded()
			m.SetResults(appmsg.DisplayQueryResultsMsg{TableName: "users"}, 0)
			return m
		}, ErrNotEditable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cmd := press(tt.setup(), keyMsg("e"))
			if m.Editing() {
				t.Fatal("edit should be refused")
			}
			got, ok := cmd().(EditErrMsg)
			if !ok {
				t.Fatalf("expected EditErrMsg, got %T", cmd())
			}
			if !errors.Is(got.Err, tt.want) {
				t.Errorf("err = %v, want %v", got.Err, tt.want)
			}
		})
	}
}

func TestApplyUpdate(t *testing.T) {
	m := loaded()
	rec := appmsg.Record{appmsg.Text("id", "2"), appmsg.Text("name", "Robert"), appmsg.Null("email")}
	m.ApplyUpdate(appmsg.UpdateRecordMsg{TableName: "users", Record: rec, PrimaryKey: "id"})
	if v, _ := m.Result().Rows[1].Get("name"); *v != "Robert" {
		t.Errorf("row not updated: %q", *v)
	}
	if v, _ := m.Result().Rows[0].Get("name"); *v != "Alice" {
		t.Error("wrong row updated")
	}

	m.ApplyUpdate(appmsg.UpdateRecordMsg{TableName: "orders", Record: rec, PrimaryKey: "id"})
	if v, _ := m.Result().Rows[1].Get("name"); *v != "Robert" {
		t.Error("update for another table should be ignored")
	}
}

func TestBlurClosesEditor(t *testing.T) {
	m := loaded()
	m, _ = press(m, keyMsg("l"), keyMsg("e"))
	m.Blur()
	if m.Editing() {
		t.Error("blur should close the editor")
	}
}

func TestView(t *testing.T) {
	m := New()
	m.SetSize(80, 12)
	if !strings.Contains(m.View(), "press F5") {
		t.Error("placeholder missing")
	}

	m.SetLoading(true)
	if !strings.Contains(m.View(), "Running query") {
		t.Error("loading text missing")
	}

	m.SetError(errors.New("no such table: nope"))
	if !strings.Contains(m.View(), "no such table") {
		t.Error("error text missing")
	}

	m = loaded()
	v := m.View()
	for _, want := range []string{"id", "name", "Alice", "NULL", "2 rows", "users"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestAutoSizeColumns(t *testing.T) {
	res := sampleResult()
	cols := autoSizeColumns(res, 200, 50)
	if cols[0].Width != 4 {
		t.Errorf("id width = %d, want 4 (minimum)", cols[0].Width)
	}
	if cols[2].Width != len("alice@example.com") {
		t.Errorf("email width = %d", cols[2].Width)
	}

	capped := autoSizeColumns(res, 200, 6)
	if capped[2].Width != 6 {
		t.Errorf("capped width = %d, want 6", capped[2].Width)
	}

	narrow := autoSizeColumns(res, 20, 50)
	total := 0
	for _, c := range narrow {
		total += c.Width + 2
	}
	if total > 20 {
		t.Errorf("scaled columns use %d cells, want <= 20", total)
	}

	if autoSizeColumns(appmsg.DisplayQueryResultsMsg{}, 80, 50) != nil {
		t.Error("no columns should give nil")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Microsecond, "500 us"},
		{42 * time.Millisecond, "42 ms"},
		{1500 * time.Millisecond, "1.50 s"},
		{90 * time.Second, "1.5 min"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
