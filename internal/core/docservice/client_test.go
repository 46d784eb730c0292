package docservice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragdesk/internal/core/textsplitter"
	"github.com/markdave123-py/ragdesk/internal/core/tokenizer"
)

func newClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	tk, err := tokenizer.New()
	require.NoError(t, err)
	s, err := textsplitter.New(tk, 200, 20)
	require.NoError(t, err)
	return New(url, timeout, s)
}

func element(typ, text string, page int) Element {
	return Element{Type: typ, Text: text, Metadata: Metadata{PageNumber: page}}
}

func TestBuildTextOrdersByPage(t *testing.T) {
	elements := []Element{
		element("NarrativeText", "second page body", 2),
		element("Title", "Introduction", 1),
		element("NarrativeText", "first page body", 1),
		element("NarrativeText", "third page body", 3),
	}
	assert.Equal(t, "Introduction\n\nfirst page body\n\nsecond page body\n\nthird page body", BuildText(elements))
}

func TestBuildTextAppendsTablesAfterNarrative(t *testing.T) {
	elements := []Element{
		element("Title", "Results", 1),
		element("Table", "a b\n1 2", 1),
		element("Image", "ignored", 1),
		element("PageBreak", "", 1),
		element("NarrativeText", "closing words", 2),
		element("Table", "c d\n3 4", 2),
	}
	assert.Equal(t, "Results\n\nclosing words\n\nTable: a b\n1 2\n\nTable: c d\n3 4", BuildText(elements))
}

func TestBuildTextEmpty(t *testing.T) {
	assert.Equal(t, "", BuildText(nil))
	assert.Equal(t, "", BuildText([]Element{element("Image", "x", 1)}))
}

func TestExtractPostsMultipartWithKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret-key", r.Header.Get("unstructured-api-key"))

		f, hdr, err := r.FormFile("files")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "%PDF-1.4 fake", string(body))
		assert.Equal(t, "upload.pdf", hdr.Filename)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Element{
			element("NarrativeText", "page two", 2),
			element("NarrativeText", "page one", 1),
		})
	}))
	defer srv.Close()

	chunks, err := newClient(t, srv.URL, 5*time.Second).Extract(context.Background(), []byte("%PDF-1.4 fake"), "pdf", "secret-key")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "page one\n\npage two", chunks[0].Text)
}

func TestExtractFailuresAreRecoverable(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"unauthorized": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad key", http.StatusUnauthorized)
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		},
		"no text": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"type":"Image","text":"","metadata":{"page_number":1}}]`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			_, err := newClient(t, srv.URL, 5*time.Second).Extract(context.Background(), []byte("x"), "pdf", "key")
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestExtractWithoutKeyMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL, time.Second).Extract(context.Background(), []byte("x"), "pdf", "")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestExtractTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newClient(t, srv.URL, 50*time.Millisecond).Extract(context.Background(), []byte("x"), "pdf", "key")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSupports(t *testing.T) {
	c := newClient(t, "http://unused", time.Second)
	assert.True(t, c.Supports("pdf"))
	assert.True(t, c.Supports(".DOCX"))
	assert.False(t, c.Supports("txt"))
	assert.False(t, c.Supports("exe"))
}
