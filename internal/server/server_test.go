package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-reader/constants"
	"github.com/joseph-ayodele/invoice-reader/internal/entity"
	"github.com/joseph-ayodele/invoice-reader/internal/export"
	"github.com/joseph-ayodele/invoice-reader/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reader/internal/session"
)

// stubProcessor appends one fixed record per new file name.
type stubProcessor struct {
	mu    sync.Mutex
	calls []string
	paths []string
}

func (p *stubProcessor) ProcessFile(_ context.Context, sess *session.Session, name, path string) pipeline.Outcome {
	p.mu.Lock()
	p.calls = append(p.calls, name)
	p.paths = append(p.paths, path)
	p.mu.Unlock()

	if sess.Tracker.Seen(name) {
		return pipeline.Outcome{File: name, Status: constants.FileStatusSkippedDuplicate}
	}
	rec := &entity.InvoiceRecord{
		InvoiceID:    strings.TrimSuffix(name, filepath.Ext(name)),
		DateTime:     "2024-05-01",
		Receiver:     "Jane",
		OrderDetails: []map[string]*string{},
		Taxes:        1.5,
		TotalAmount:  20,
	}
	if err := sess.Sink.Append(rec); err != nil {
		return pipeline.Outcome{File: name, Status: constants.FileStatusFailedSink, Error: err.Error()}
	}
	sess.Tracker.Mark(name)
	sess.AddResult(name, []byte(`{"invoice_id":"`+rec.InvoiceID+`"}`))
	return pipeline.Outcome{File: name, Status: constants.FileStatusProcessed, Record: rec}
}

func (p *stubProcessor) snapshot() (calls, paths []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...), append([]string(nil), p.paths...)
}

type stubMetrics struct {
	mu      sync.Mutex
	uploads int
	live    int
}

func (m *stubMetrics) ObserveUpload() {
	m.mu.Lock()
	m.uploads++
	m.mu.Unlock()
}

func (m *stubMetrics) SetLiveSessions(n int) {
	m.mu.Lock()
	m.live = n
	m.mu.Unlock()
}

func (m *stubMetrics) counts() (uploads, live int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads, m.live
}

func (m *stubMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
}

type fixture struct {
	srv      *httptest.Server
	client   *http.Client
	proc     *stubProcessor
	metrics  *stubMetrics
	sessions *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	sessions := session.NewManager(session.ManagerConfig{
		OutputDir:  filepath.Join(root, "out"),
		ScratchDir: root,
	}, nil)
	proc := &stubProcessor{}
	metrics := &stubMetrics{}
	h := NewHandler(Options{
		Processor: proc,
		Sessions:  sessions,
		Exporter:  export.NewService(nil),
		Metrics:   metrics,
	})
	srv := httptest.NewServer(h.SetupRouter())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &fixture{
		srv:      srv,
		client:   &http.Client{Jar: jar},
		proc:     proc,
		metrics:  metrics,
		sessions: sessions,
	}
}

func (f *fixture) upload(t *testing.T, files map[string]string, order ...string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range order {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/upload", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := f.client.Get(f.srv.URL + path)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestIndex_SetsSessionCookie(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/")
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "No invoices processed yet.")
	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			found = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found)
	assert.Equal(t, 1, f.sessions.Len())

	// The cookie sticks: a second request reuses the session.
	readBody(t, f.get(t, "/"))
	assert.Equal(t, 1, f.sessions.Len())
	_, live := f.metrics.counts()
	assert.Equal(t, 1, live)
}

func TestUpload_MixedBatch(t *testing.T) {
	f := newFixture(t)

	resp := f.upload(t, map[string]string{
		"a.pdf":     "%PDF-1.4",
		"notes.txt": "hello",
		"b.PDF":     "%PDF-1.4",
	}, "a.pdf", "notes.txt", "b.PDF")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var outcomes []pipeline.Outcome
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &outcomes))
	require.Len(t, outcomes, 3)
	assert.Equal(t, constants.FileStatusProcessed, outcomes[0].Status)
	assert.Equal(t, constants.FileStatusRejected, outcomes[1].Status)
	assert.Equal(t, "notes.txt", outcomes[1].File)
	assert.Equal(t, constants.FileStatusProcessed, outcomes[2].Status)

	calls, paths := f.proc.snapshot()
	assert.Equal(t, []string{"a.pdf", "b.PDF"}, calls)
	for _, p := range paths {
		assert.NoFileExists(t, p)
	}
	uploads, _ := f.metrics.counts()
	assert.Equal(t, 1, uploads)

	// Same name again in a later batch is a duplicate.
	resp = f.upload(t, map[string]string{"a.pdf": "%PDF-1.4"}, "a.pdf")
	outcomes = nil
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &outcomes))
	require.Len(t, outcomes, 1)
	assert.Equal(t, constants.FileStatusSkippedDuplicate, outcomes[0].Status)

	csv := readBody(t, f.get(t, "/export.csv"))
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(entity.Columns, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "a,"))
	assert.True(t, strings.HasPrefix(lines[2], "b,"))
}

func TestUpload_NoFiles(t *testing.T) {
	f := newFixture(t)

	resp := f.upload(t, nil)
	readBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	calls, _ := f.proc.snapshot()
	assert.Empty(t, calls)
}

func TestUpload_HTMLRendersTable(t *testing.T) {
	f := newFixture(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", "inv-7.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, mw.Close())

	resp, err := f.client.Post(f.srv.URL+"/upload", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	html := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, html, "Last upload")
	assert.Contains(t, html, "PROCESSED")
	assert.Contains(t, html, "<td>inv-7</td>")
	assert.Contains(t, html, "Statistics")
	assert.Contains(t, html, "/export.xlsx")
}

func TestDuplicateMessage(t *testing.T) {
	assert.Empty(t, duplicateMessage([]pipeline.Outcome{{File: "a.pdf", Status: constants.FileStatusProcessed}}))
	assert.Equal(t, "Already processed in this session, skipped: a.pdf, b.pdf", duplicateMessage([]pipeline.Outcome{
		{File: "a.pdf", Status: constants.FileStatusSkippedDuplicate},
		{File: "c.pdf", Status: constants.FileStatusProcessed},
		{File: "b.pdf", Status: constants.FileStatusSkippedDuplicate},
	}))
}

func TestExport_EmptySession(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/export.csv")
	readBody(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportXLSX(t *testing.T) {
	f := newFixture(t)
	readBody(t, f.upload(t, map[string]string{"a.pdf": "%PDF-1.4"}, "a.pdf"))

	resp := f.get(t, "/export.xlsx")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, contentTypeXLSX, resp.Header.Get("Content-Type"))

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	wb, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()
	assert.Equal(t, []string{export.SheetInvoices, export.SheetStatistics}, wb.GetSheetList())
}

func TestResultsAndEndSession(t *testing.T) {
	f := newFixture(t)
	readBody(t, f.upload(t, map[string]string{"a.pdf": "%PDF-1.4"}, "a.pdf"))

	resp := f.get(t, "/results")
	var results []session.RawResult
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "a.pdf", results[0].File)
	assert.JSONEq(t, `{"invoice_id":"a"}`, string(results[0].Content))

	u := f.srv.URL + "/session/end"
	f.client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := f.client.Post(u, "text/plain", nil)
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, 0, f.sessions.Len())

	// A fresh session starts with no history.
	f.client.CheckRedirect = nil
	results = nil
	require.NoError(t, json.Unmarshal([]byte(readBody(t, f.get(t, "/results"))), &results))
	assert.Empty(t, results)
}

func TestHealthzAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/healthz")
	assert.Equal(t, "ok", readBody(t, resp))

	resp = f.get(t, "/metrics")
	assert.Equal(t, "# metrics", readBody(t, resp))

	resp = f.get(t, "/nope")
	readBody(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func multipartFile(t *testing.T, name, content string) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", name)
	require.NoError(t, err)
	_, _ = part.Write([]byte(content))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["files"][0]
}

func TestCopyToScratch(t *testing.T) {
	dir := t.TempDir()

	path, err := copyToScratch(dir, multipartFile(t, "x.pdf", "%PDF-1.7 data"))
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 data", string(got))
	assert.Equal(t, dir, filepath.Dir(path))
}

func TestCopyToScratch_DoesNotRecreateRemovedDir(t *testing.T) {
	root := t.TempDir()
	sessions := session.NewManager(session.ManagerConfig{OutputDir: filepath.Join(root, "out"), ScratchDir: root}, nil)
	sess, err := sessions.Create()
	require.NoError(t, err)
	require.NoError(t, sessions.End(sess.ID))

	_, err = copyToScratch(sess.ScratchDir, multipartFile(t, "x.pdf", "%PDF-1.7"))
	assert.Error(t, err)
	assert.NoDirExists(t, sess.ScratchDir)
}

func TestUpload_ClosedSessionIsRefused(t *testing.T) {
	f := newFixture(t)
	readBody(t, f.get(t, "/"))

	u, err := url.Parse(f.srv.URL)
	require.NoError(t, err)
	var id string
	for _, c := range f.client.Jar.Cookies(u) {
		if c.Name == session.CookieName {
			id = c.Value
		}
	}
	sess, ok := f.sessions.Get(id)
	require.True(t, ok)
	require.NoError(t, sess.Close())

	resp := f.upload(t, map[string]string{"a.pdf": "%PDF-1.4"}, "a.pdf")
	readBody(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	calls, _ := f.proc.snapshot()
	assert.Empty(t, calls)
	assert.NoDirExists(t, sess.ScratchDir)
	assert.NoFileExists(t, sess.Sink.Path())
}
