package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/reader"
	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/validate"
)

type emptyIndex struct{}

func (emptyIndex) SignatureExists(ctx context.Context, signature string) (bool, error) {
	return false, nil
}

func TestSampleCSVPassesValidation(t *testing.T) {
	t.Parallel()

	rr, err := reader.Open(bytes.NewReader(sampleCSV(3)), "csv")
	require.NoError(t, err)
	defer rr.Close()
	require.True(t, validate.Headers(rr.Headers()))

	v, err := validate.NewRowValidator("", emptyIndex{})
	require.NoError(t, err)

	rows := 0
	for {
		raw, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		_, ok, verr := v.Validate(context.Background(), raw)
		require.NoError(t, verr)
		assert.True(t, ok, "generated row must pass validation: %v", raw)
		rows++
	}
	assert.Equal(t, 3, rows)
}

func TestUploadSample(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/file-upload/", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, h, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "seed.csv", h.Filename)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"u1","file":"seed.csv","status":"pending"}`))
	}))
	defer srv.Close()

	body, err := uploadSample(context.Background(), srv.URL, sampleCSV(2))
	require.NoError(t, err)
	assert.Contains(t, body, `"status":"pending"`)
}

func TestUploadSampleRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "File is empty."}`))
	}))
	defer srv.Close()

	_, err := uploadSample(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "File is empty.")
}

func TestKnownServices(t *testing.T) {
	t.Parallel()

	assert.NoError(t, knownServices(nil))
	assert.NoError(t, knownServices([]string{"api", "worker"}))
	assert.Error(t, knownServices([]string{"api", "grafana"}))
}
