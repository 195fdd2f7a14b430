package client

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloo-solutions/coverdraft/internal/api/handlers"
	"github.com/cloo-solutions/coverdraft/internal/service"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeData(t *testing.T, w http.ResponseWriter, status int, data interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{"data": data}))
}

func newTestClient(t *testing.T, token string, h http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	api, err := NewAPIClientWithConfig(token, srv.URL)
	require.NoError(t, err)
	return api
}

func TestAPIClient_SendsBearerTokenOnlyWhenSet(t *testing.T) {
	var got []string
	h := func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		writeData(t, w, http.StatusOK, map[string]string{})
	}

	_, err := newTestClient(t, "tok", h).Get("/health")
	require.NoError(t, err)
	_, err = newTestClient(t, "", h).Get("/health")
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer tok", ""}, got)
}

func TestAPIClient_ErrorResponse(t *testing.T) {
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"document not found","code":"NOT_FOUND"}`)
	})

	_, err := api.Get("/documents/missing")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "document not found", apiErr.Message)
}

func TestAPIClient_NonJSONError(t *testing.T) {
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	})

	_, err := api.Get("/style")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestAPIClient_EmptyBodyOnSuccess(t *testing.T) {
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})

	resp, err := api.Delete("/documents/doc-1")
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
}

func TestNewAPIClientWithCmd_FlagOverridesEnv(t *testing.T) {
	withConfigDir(t, t.TempDir())
	t.Setenv(envAPIToken, "env-token")
	t.Setenv(envAPIURL, "http://env:8080")

	cmd := &cobra.Command{}
	cmd.Flags().String("api-token", "", "")
	cmd.Flags().String("api-url", "", "")
	require.NoError(t, cmd.Flags().Set("api-url", "http://flag:9090"))

	api, err := NewAPIClientWithCmd(cmd)
	require.NoError(t, err)
	assert.Equal(t, "http://flag:9090", api.baseURL)
	assert.Equal(t, "env-token", api.apiToken)
}

func TestNewAPIClientWithCmd_DefaultsWithoutToken(t *testing.T) {
	withConfigDir(t, t.TempDir())
	t.Setenv(envAPIToken, "")
	t.Setenv(envAPIURL, "")

	api, err := NewAPIClientWithCmd(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultAPIURL, api.baseURL)
	assert.Empty(t, api.apiToken)
}

func TestRunAdd_UploadsMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "2024-03-01_CV_Acme.txt")
	require.NoError(t, os.WriteFile(path, []byte("Go engineer"), 0600))

	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		body, _ := io.ReadAll(file)

		assert.Equal(t, "2024-03-01_CV_Acme.txt", header.Filename)
		assert.Equal(t, "Go engineer", string(body))
		assert.Equal(t, "cv", r.FormValue("type"))
		assert.Equal(t, "1.5", r.FormValue("manual_weight"))
		assert.Empty(t, r.FormValue("company"))

		writeData(t, w, http.StatusAccepted, handlers.IngestResponse{
			Document: &handlers.DocumentResponse{
				ID: "doc-1", Filename: header.Filename, Type: "cv",
				CanonicalDate: "2024-03-01", DateSource: "filename", ManualWeight: 1.5,
			},
			JobID:     "job-1",
			Breakdown: service.WeightBreakdown{Weight: 2.4},
		})
	})

	var progressed bool
	var out bytes.Buffer
	err := runAdd(&out, api, []string{path}, DocumentUpload{Type: "cv", ManualWeight: 1.5}, func(current, total int64) {
		progressed = current > 0
	}, false)

	require.NoError(t, err)
	assert.True(t, progressed)
	assert.Contains(t, out.String(), "Added 2024-03-01_CV_Acme.txt (doc-1)")
	assert.Contains(t, out.String(), "weight 2.400")
}

func TestRunAdd_MissingFile(t *testing.T) {
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	err := runAdd(&bytes.Buffer{}, api, []string{filepath.Join(t.TempDir(), "nope.txt")}, DocumentUpload{}, nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read file")
}

func TestRunList_BuildsQueryAndPrintsCursor(t *testing.T) {
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cover_letter", r.URL.Query().Get("type"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "abc", r.URL.Query().Get("cursor"))
		writeData(t, w, http.StatusOK, handlers.ListDocumentsResponse{
			Items: []*handlers.DocumentResponse{
				{ID: "doc-1", Type: "cover_letter", Filename: "letter.txt", CanonicalDate: "2024-01-01", Weight: 1.8, IndexStatus: "indexed"},
			},
			Cursor:  "next",
			HasMore: true,
		})
	})

	var out bytes.Buffer
	require.NoError(t, runList(&out, api, "cover_letter", 5, "abc", false))

	assert.Contains(t, out.String(), "letter.txt")
	assert.Contains(t, out.String(), "Use --cursor next")
}

func TestRunList_Empty(t *testing.T) {
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeData(t, w, http.StatusOK, handlers.ListDocumentsResponse{})
	})

	var out bytes.Buffer
	require.NoError(t, runList(&out, api, "", 0, "", false))
	assert.Contains(t, out.String(), "No documents found.")
}

func TestRunWeight_SetUsesPatch(t *testing.T) {
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/documents/doc-1/weight", r.URL.Path)
		var body map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 20.0, body["manual_weight"])
		writeData(t, w, http.StatusOK, handlers.WeightResponse{
			DocumentID: "doc-1",
			Clamped:    true,
			Breakdown:  service.WeightBreakdown{ManualWeight: 10, Weight: 12},
		})
	})

	var out bytes.Buffer
	require.NoError(t, runWeight(&out, api, []string{"doc-1", "20"}, false))

	assert.Contains(t, out.String(), "weight:  12.000")
	assert.Contains(t, out.String(), "clamped")
}

func TestRunWeight_RejectsNonPositive(t *testing.T) {
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	err := runWeight(&bytes.Buffer{}, api, []string{"doc-1", "0"}, false)
	require.Error(t, err)
}

func TestRunSearch(t *testing.T) {
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		var req handlers.RetrieveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "go backend", req.Query)
		assert.Equal(t, 2, req.TopK)
		writeData(t, w, http.StatusOK, handlers.RetrieveResponse{
			Query: req.Query,
			Results: []service.ScoredChunk{
				{Filename: "cv.txt", DocumentType: "cv", Content: "Built   Go\nservices", Similarity: 0.5, Weight: 2, Score: 1},
			},
		})
	})

	var out bytes.Buffer
	require.NoError(t, runSearch(&out, api, "go backend", 2, false))

	assert.Contains(t, out.String(), "1. cv.txt [cv]")
	assert.Contains(t, out.String(), "Built Go services")
}

func TestRunGenerate_ReportsFallback(t *testing.T) {
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cover-letters/generate", r.URL.Path)
		writeData(t, w, http.StatusOK, service.GenerationResult{
			Letter:         "Dear Hiring Manager,",
			Provider:       "openai",
			UsedFallback:   true,
			GeneratorError: "rate limited",
		})
	})

	var out bytes.Buffer
	require.NoError(t, runGenerate(&out, api, handlers.JobRequest{JobTitle: "Engineer", Company: "Acme"}, false))

	assert.Contains(t, out.String(), "Dear Hiring Manager,")
	assert.Contains(t, out.String(), "template letter: openai produced no text: rate limited")
}

func TestRunStyle_Empty(t *testing.T) {
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeData(t, w, http.StatusOK, map[string]interface{}{"document_count": 0})
	})

	var out bytes.Buffer
	require.NoError(t, runStyle(&out, api, false))
	assert.Contains(t, out.String(), "No cover letters uploaded yet")
}

func TestJobFlags_ReadsDescriptionFile(t *testing.T) {
	f := jobFlags{title: "Engineer", company: "Acme", description: "ignored", descFile: "job.txt"}

	req, err := f.request(func(name string) ([]byte, error) {
		assert.Equal(t, "job.txt", name)
		return []byte("  Build APIs  \n"), nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "Build APIs", req.JobDescription)
	assert.Equal(t, "Engineer", req.JobTitle)
}

func TestJobFlags_StoredDefaults(t *testing.T) {
	defaults := &GlobalConfig{Provider: "anthropic", Tone: "warm"}

	req, err := (&jobFlags{title: "SRE", company: "Globex"}).request(os.ReadFile, defaults)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", req.Provider)
	assert.Equal(t, "warm", req.Tone)

	req, err = (&jobFlags{title: "SRE", company: "Globex", provider: "gemini", tone: "formal"}).request(os.ReadFile, defaults)
	require.NoError(t, err)
	assert.Equal(t, "gemini", req.Provider)
	assert.Equal(t, "formal", req.Tone)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "a b", excerpt(" a \n b ", 10))
	assert.Equal(t, "héll...", excerpt("héllo", 4))
}
