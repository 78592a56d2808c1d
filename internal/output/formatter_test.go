package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type credentialRow struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	hidden string
}

var credentialColumns = []Column{
	{Name: "NAME", Key: "Name"},
	{Name: "STATUS", Key: "Status"},
}

func TestPlainPrintStruct(t *testing.T) {
	var out bytes.Buffer
	f := NewWithWriters("plain", &out, &bytes.Buffer{})

	require.NoError(t, f.Print(credentialRow{Name: "qbo_client_id", Status: "set", hidden: "x"}))
	assert.Equal(t, "name\tqbo_client_id\nstatus\tset\n", out.String())
}

func TestPlainPrintList(t *testing.T) {
	var out bytes.Buffer
	f := NewWithWriters("plain", &out, &bytes.Buffer{})

	rows := []credentialRow{{Name: "test_secret", Status: "set"}, {Name: "qbo_client_secret", Status: "missing"}}
	require.NoError(t, f.PrintList(rows, credentialColumns))
	assert.Equal(t, "NAME\tSTATUS\ntest_secret\tset\nqbo_client_secret\tmissing\n", out.String())

	assert.Error(t, f.PrintList("not a slice", credentialColumns))
}

func TestJSONPrintListEnvelope(t *testing.T) {
	var out bytes.Buffer
	f := NewWithWriters("json", &out, &bytes.Buffer{})

	rows := []map[string]string{{"Name": "google_service_account"}}
	require.NoError(t, f.PrintList(rows, credentialColumns))

	var envelope struct {
		Data  []map[string]string `json:"data"`
		Count int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &envelope))
	assert.Equal(t, 1, envelope.Count)
	assert.Equal(t, "google_service_account", envelope.Data[0]["Name"])
}

func TestJSONErrorsAndHints(t *testing.T) {
	var errOut bytes.Buffer
	f := NewWithWriters("json", &bytes.Buffer{}, &errOut)

	f.PrintError(NewCLIError(ExitAuth, "wrong password"))
	f.PrintHint("ignored in json mode")
	assert.JSONEq(t, `{"error":"wrong password"}`, errOut.String())
}

func TestRichPrintList(t *testing.T) {
	var out bytes.Buffer
	f := NewWithWriters("rich", &out, &bytes.Buffer{})

	rows := []credentialRow{{Name: "qbo_client_id", Status: "set"}}
	require.NoError(t, f.PrintList(rows, credentialColumns))
	assert.Contains(t, out.String(), "qbo_client_id")
	assert.Contains(t, out.String(), "set")

	out.Reset()
	require.NoError(t, f.PrintList([]credentialRow{}, credentialColumns))
	assert.Contains(t, out.String(), "(none)")
}

func TestAutoModeFallsBackToPlain(t *testing.T) {
	var out bytes.Buffer
	f := NewWithWriters("auto", &out, &bytes.Buffer{})
	_, ok := f.(*plainFormatter)
	assert.True(t, ok)
}

func TestRenderTableTruncates(t *testing.T) {
	var out bytes.Buffer
	RenderTable(&out, []Column{{Name: "SUBJECT", Key: "s", Width: 8}}, []map[string]string{{"s": "realm-123456789"}}, false)
	assert.Contains(t, out.String(), "realm...")
	assert.NotContains(t, out.String(), "realm-123456789")
}
