package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellavondegurechaff/vmq/backend/models"
	"github.com/ellavondegurechaff/vmq/internal/domain/accounts"
)

func TestReadTokens(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{name: "json array", input: ` ["a", "b"]`, want: []string{"a", "b"}},
		{name: "lines", input: "a\n\n  b  \r\nc", want: []string{"a", "b", "c"}},
		{name: "empty", input: "", want: nil},
		{name: "bad array", input: `[1, 2]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readTokens(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func poolServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/add_accounts":
			var tokens []string
			_ = json.NewDecoder(r.Body).Decode(&tokens)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(models.NewSuccessResponse(
				accounts.AddResult{Inserted: len(tokens)}, "Accounts added"))
		case "/extract":
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(models.NewErrorResponse(
				models.CodeNoUnusedAccounts, "No unused accounts available", nil))
		case "/export":
			_ = json.NewEncoder(w).Encode(models.NewSuccessResponse(accounts.Export{
				Total:   1,
				Records: []accounts.Record{{ID: 1, Token: "a", Status: accounts.StatusUnused}},
			}, ""))
		default:
			_ = json.NewEncoder(w).Encode(models.NewSuccessResponse(accounts.Stats{Total: 3, Used: 1, Unused: 2}, ""))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAddCommand(t *testing.T) {
	srv := poolServer(t)

	out, err := run(t, "a\nb\n", "--server", srv.URL, "add", "-")
	require.NoError(t, err)

	var res accounts.AddResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.Inserted)
}

func TestStatsCommand(t *testing.T) {
	srv := poolServer(t)

	out, err := run(t, "", "--server", srv.URL, "stats")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":3,"used":1,"unused":2}`, out)
}

func TestAllocateCommand_emptyPool(t *testing.T) {
	srv := poolServer(t)

	_, err := run(t, "", "--server", srv.URL, "allocate", "--count", "1", "--consumer", "bot3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.CodeNoUnusedAccounts)
}

func TestExportCommand(t *testing.T) {
	srv := poolServer(t)
	path := filepath.Join(t.TempDir(), "out", "export.json")

	_, err := run(t, "", "--server", srv.URL, "export", "--out", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var export accounts.Export
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, 1, export.Total)
}
