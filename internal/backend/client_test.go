package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/erpload/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"http", "http://localhost:8000", false},
		{"https with path", "https://erp.example.com/api/", false},
		{"missing scheme", "localhost:8000", true},
		{"ftp", "ftp://example.com", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{BaseURL: tt.url})
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestEndpoint_KeepsBasePath(t *testing.T) {
	c, err := New(Options{BaseURL: "https://erp.example.com/api/", SubmitPath: "transform"})
	require.NoError(t, err)

	assert.Equal(t, "https://erp.example.com/api/ultimo-folio", c.endpoint(currentFolioPath))
	assert.Equal(t, "https://erp.example.com/api/transform", c.endpoint(c.submitPath))
}

func TestCurrentFolio(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/ultimo-folio", r.URL.Path)
		_, _ = io.WriteString(w, `{"ultimo_folio": 1042}`)
	})

	got, err := c.CurrentFolio(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1042), got)
}

func TestCurrentFolio_Failures(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantStatus    int
		wantMalformed bool
	}{
		{"server error", http.StatusInternalServerError, `{"detail":"boom"}`, 500, false},
		{"not found", http.StatusNotFound, ``, 404, false},
		{"not json", http.StatusOK, `<html>`, 0, true},
		{"missing field", http.StatusOK, `{"folio": 3}`, 0, true},
		{"string value", http.StatusOK, `{"ultimo_folio": "1042"}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.CurrentFolio(context.Background())
			require.Error(t, err)

			var te *core.TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.wantStatus, te.StatusCode)
			assert.Equal(t, tt.wantMalformed, errors.Is(err, core.ErrMalformedResponse))
		})
	}
}

func TestCurrentFolio_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.CurrentFolio(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, core.StatusCode(err))
}

func TestSetFolio(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/folio/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]int64
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(1050), body["nuevo_folio"])

		// the service may normalise the value; the client must report what it got back
		_, _ = io.WriteString(w, `{"nuevo_folio": 1049}`)
	})

	got, err := c.SetFolio(context.Background(), 1050)
	require.NoError(t, err)
	assert.Equal(t, int64(1049), got)
}

func TestSetFolio_StatusCarriesCode(t *testing.T) {
	for _, code := range []int{http.StatusMethodNotAllowed, http.StatusUnprocessableEntity} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			_, _ = io.WriteString(w, `{"detail":[{"msg":"value is not a valid integer"}]}`)
		})

		_, err := c.SetFolio(context.Background(), -1)
		require.Error(t, err)
		assert.Equal(t, code, core.StatusCode(err))
	}
}

func TestSubmitFile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/procesar", r.URL.Path)

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)

		assert.Equal(t, "invas.csv", hdr.Filename)
		assert.Equal(t, "PRODUCTO,OT\n", string(data))

		_, _ = io.WriteString(w, `{"mensaje":"Procesamiento exitoso","archivo_salida":"CARGA_PT_01_10_2024.xlsx"}`)
	})

	got, err := c.SubmitFile(context.Background(), "invas.csv", []byte("PRODUCTO,OT\n"))
	require.NoError(t, err)
	assert.Equal(t, core.SubmitReceipt{
		StatusCode: http.StatusOK,
		Message:    "Procesamiento exitoso",
		OutputFile: "CARGA_PT_01_10_2024.xlsx",
	}, got)
}

func TestSubmitFile_BodyError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"error":"'FECHA RECIBO'"}`)
	})

	got, err := c.SubmitFile(context.Background(), "invas.csv", nil)
	require.NoError(t, err)
	assert.Equal(t, "'FECHA RECIBO'", got.Error)
}

func TestSubmitFile_NullOutput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"mensaje":"No se han procesado datos nuevos.","archivo_salida":null}`)
	})

	got, err := c.SubmitFile(context.Background(), "invas.csv", []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, got.OutputFile)
	assert.Empty(t, got.Error)
}

func TestSubmitFile_CustomField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("upload"); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		_, _ = io.WriteString(w, `{"mensaje":"ok"}`)
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, SubmitField: "upload"})
	require.NoError(t, err)

	_, err = c.SubmitFile(context.Background(), "a.csv", []byte("x"))
	assert.NoError(t, err)
}

func TestDetail(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"error":"bad file"}`, ": bad file"},
		{`{"detail":"Method Not Allowed"}`, ": Method Not Allowed"},
		{`{"detail":[{"loc":["body"]}]}`, `: [{"loc":["body"]}]`},
		{`not json`, ""},
		{`{}`, ""},
	}

	for _, tt := range tests {
		if got := detail([]byte(tt.body)); got != tt.want {
			t.Errorf("detail(%s) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
