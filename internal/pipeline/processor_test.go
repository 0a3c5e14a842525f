package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reader/constants"
	"github.com/joseph-ayodele/invoice-reader/internal/common"
	"github.com/joseph-ayodele/invoice-reader/internal/extract"
	"github.com/joseph-ayodele/invoice-reader/internal/llm"
	"github.com/joseph-ayodele/invoice-reader/internal/pdftext"
	"github.com/joseph-ayodele/invoice-reader/internal/session"
	"github.com/joseph-ayodele/invoice-reader/internal/sink"
)

const dinerText = "Invoice #123, Total: $45.00, Restaurant: Test Diner"

const dinerJSON = `{"invoice_id":"123","date_time":"2024-05-01","receiver":"Jane Doe","provider":null,` +
	`"restaurant":"Test Diner","delivery_partner":null,"order_details":[],"taxes":0,` +
	`"delivery_charge":null,"platform_fee":null,"coupon_name":null,"discount_amount":null,"total_amount":45.0}`

// textRunner plays pdftotext and returns the same text for every file.
type textRunner struct{ text string }

func (r textRunner) Run(context.Context, string, ...string) ([]byte, []byte, error) {
	return []byte(r.text + "\f"), nil, nil
}

// scriptedModel answers summary calls with a summary and structured calls with structured.
type scriptedModel struct {
	mu         sync.Mutex
	summary    string
	structured string
	err        error
	calls      int
}

func (m *scriptedModel) Complete(_ context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return llm.Completion{}, m.err
	}
	if req.Schema != nil {
		return llm.Completion{Content: m.structured}, nil
	}
	return llm.Completion{Content: m.summary}, nil
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[constants.FileStatus]int
	stages   map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{outcomes: map[constants.FileStatus]int{}, stages: map[string]int{}}
}

func (r *recordingMetrics) ObserveOutcome(s constants.FileStatus) {
	r.mu.Lock()
	r.outcomes[s]++
	r.mu.Unlock()
}

func (r *recordingMetrics) ObserveStage(stage string, _ time.Duration) {
	r.mu.Lock()
	r.stages[stage]++
	r.mu.Unlock()
}

type fixture struct {
	proc    *Processor
	model   *scriptedModel
	metrics *recordingMetrics
	sess    *session.Session
	csvPath string
	dir     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	model := &scriptedModel{summary: dinerText, structured: dinerJSON}
	fe, err := extract.NewFieldExtractor(model, nil)
	require.NoError(t, err)
	metrics := newRecordingMetrics()

	proc := NewProcessor(
		pdftext.NewLoaderWithRunner(pdftext.Config{}, textRunner{text: dinerText}, nil),
		extract.NewSummarizer(model, nil),
		fe,
		metrics,
		nil,
	)
	csvPath := filepath.Join(dir, "invoice_data.csv")
	sess := session.New("test", sink.NewCSVSink(csvPath, nil), "")
	return &fixture{proc: proc, model: model, metrics: metrics, sess: sess, csvPath: csvPath, dir: dir}
}

func (f *fixture) pdf(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(f.dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestConvertToDict_EndToEnd(t *testing.T) {
	f := newFixture(t)
	rec, raw, err := f.proc.ConvertToDict(context.Background(), f.pdf(t, "diner.pdf", "%PDF-1.4 fake"))
	require.NoError(t, err)
	assert.JSONEq(t, dinerJSON, string(raw))

	assert.Equal(t, "123", rec.InvoiceID)
	assert.Equal(t, 45.0, rec.TotalAmount)
	require.NotNil(t, rec.Restaurant)
	assert.Equal(t, "Test Diner", *rec.Restaurant)
	assert.Equal(t, 2, f.model.calls)
	assert.Equal(t, 1, f.metrics.stages[StageLoad])
	assert.Equal(t, 1, f.metrics.stages[StageExtract])
}

func TestProcessFile_AppendsAndDedups(t *testing.T) {
	f := newFixture(t)
	path := f.pdf(t, "diner.pdf", "%PDF-1.4 fake")

	out := f.proc.ProcessFile(context.Background(), f.sess, "diner.pdf", path)
	require.Equal(t, constants.FileStatusProcessed, out.Status, out.Error)
	assert.True(t, out.OK())
	assert.True(t, f.sess.Tracker.Seen("diner.pdf"))
	require.Len(t, f.sess.Results(), 1)

	before, err := os.ReadFile(f.csvPath)
	require.NoError(t, err)

	again := f.proc.ProcessFile(context.Background(), f.sess, "diner.pdf", path)
	assert.Equal(t, constants.FileStatusSkippedDuplicate, again.Status)

	after, err := os.ReadFile(f.csvPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 2, f.model.calls, "duplicate must not reach the backend")

	tbl, err := sink.ReadTable(f.csvPath)
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "123", tbl.Rows[0][0])
	assert.Equal(t, "Test Diner", tbl.Rows[0][4])
	assert.Equal(t, "45", tbl.Rows[0][12])

	assert.Equal(t, 1, f.metrics.outcomes[constants.FileStatusProcessed])
	assert.Equal(t, 1, f.metrics.outcomes[constants.FileStatusSkippedDuplicate])
}

func TestProcessFile_BadPDFLeavesCSVUntouched(t *testing.T) {
	for _, body := range []string{"", "not a pdf"} {
		f := newFixture(t)
		out := f.proc.ProcessFile(context.Background(), f.sess, "bad.pdf", f.pdf(t, "bad.pdf", body))
		assert.Equal(t, constants.FileStatusFailedInput, out.Status)
		assert.Nil(t, out.Record)
		assert.NoFileExists(t, f.csvPath)
		assert.False(t, f.sess.Tracker.Seen("bad.pdf"))
		assert.Zero(t, f.model.calls)
	}
}

func TestProcessFile_FailureKinds(t *testing.T) {
	t.Run("backend", func(t *testing.T) {
		f := newFixture(t)
		f.model.err = common.NewBackendError("mistral", errors.New("503"))
		out := f.proc.ProcessFile(context.Background(), f.sess, "a.pdf", f.pdf(t, "a.pdf", "%PDF-1.4"))
		assert.Equal(t, constants.FileStatusFailedBackend, out.Status)
		assert.NoFileExists(t, f.csvPath)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t)
		f.model.structured = `{"invoice_id":"123"}`
		out := f.proc.ProcessFile(context.Background(), f.sess, "a.pdf", f.pdf(t, "a.pdf", "%PDF-1.4"))
		assert.Equal(t, constants.FileStatusFailedValidation, out.Status)
		assert.NotEmpty(t, out.Raw)
		assert.NoFileExists(t, f.csvPath)
		assert.False(t, f.sess.Tracker.Seen("a.pdf"))
	})

	t.Run("sink", func(t *testing.T) {
		f := newFixture(t)
		blocked := filepath.Join(f.dir, "blocked")
		require.NoError(t, os.WriteFile(blocked, []byte("file"), 0o644))
		f.sess.Sink = sink.NewCSVSink(filepath.Join(blocked, "invoice_data.csv"), nil)

		out := f.proc.ProcessFile(context.Background(), f.sess, "a.pdf", f.pdf(t, "a.pdf", "%PDF-1.4"))
		assert.Equal(t, constants.FileStatusFailedSink, out.Status)
		assert.False(t, f.sess.Tracker.Seen("a.pdf"), "a failed append must allow a retry")
	})
}

func TestProcessDirectory(t *testing.T) {
	f := newFixture(t)
	root := filepath.Join(f.dir, "in")
	f.pdf(t, "in/b.pdf", "%PDF-1.4")
	f.pdf(t, "in/a.PDF", "%PDF-1.4")
	f.pdf(t, "in/notes.txt", "hello")
	f.pdf(t, "in/sub/broken.pdf", "")
	f.pdf(t, "in/sub/a.PDF", "%PDF-1.4") // same base name as in/a.PDF
	f.pdf(t, "in/.hidden/c.pdf", "%PDF-1.4")

	results, stats, err := f.proc.ProcessDirectory(context.Background(), f.sess, root, true)
	require.NoError(t, err)

	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.File+":"+string(r.Status))
	}
	assert.Equal(t, []string{
		"a.PDF:PROCESSED",
		"b.pdf:PROCESSED",
		"a.PDF:SKIPPED_DUPLICATE",
		"broken.pdf:FAILED_INPUT",
	}, names)
	assert.Equal(t, DirStats{Scanned: 5, Matched: 4, Succeeded: 2, Skipped: 1, Failed: 1}, stats)

	b, err := os.ReadFile(f.csvPath)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(b), "\n"))
}

func TestProcessDirectory_MissingRoot(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.proc.ProcessDirectory(context.Background(), f.sess, filepath.Join(f.dir, "nope"), true)
	assert.Error(t, err)
	_, _, err = f.proc.ProcessDirectory(context.Background(), f.sess, " ", true)
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, constants.FileStatusFailedInput, StatusFor(common.NewInputError("x", nil)))
	assert.Equal(t, constants.FileStatusFailedBackend, StatusFor(common.NewBackendError("x", nil)))
	assert.Equal(t, constants.FileStatusFailedValidation, StatusFor(common.NewValidationError("x", nil)))
	assert.Equal(t, constants.FileStatusFailedSink, StatusFor(common.NewSinkError("x", nil)))
	assert.Equal(t, constants.FileStatusFailedBackend, StatusFor(errors.New("context canceled")))
}

var _ extract.RecordExtractor = (*extract.FieldExtractor)(nil)
var _ session.Sink = (*sink.CSVSink)(nil)
