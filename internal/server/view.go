package server

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"time"

	"github.com/joseph-ayodele/invoice-reader/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reader/internal/session"
	"github.com/joseph-ayodele/invoice-reader/internal/sink"
	"github.com/joseph-ayodele/invoice-reader/internal/stats"
)

//go:embed templates/index.html
var indexHTML string

var pageTemplate = template.Must(template.New("index").Funcs(template.FuncMap{
	"decimal": stats.Format,
	"ms":      func(d time.Duration) int64 { return d.Milliseconds() },
}).Parse(indexHTML))

type pageData struct {
	SessionID string
	Message   string
	Outcomes  []pipeline.Outcome
	Processed []string
	Table     sink.Table
	Stats     []stats.ColumnStats
	Results   []session.RawResult
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, sess *session.Session, outcomes []pipeline.Outcome, message string) {
	tbl, err := sink.ReadTable(sess.Sink.Path())
	if err != nil {
		h.logger.Error("server.render.read_table_failed", "session_id", sess.ID, "error", err)
		message = "could not read the accumulated table"
	}
	data := pageData{
		SessionID: sess.ID,
		Message:   message,
		Outcomes:  outcomes,
		Processed: sess.Tracker.Names(),
		Table:     tbl,
		Results:   sess.Results(),
	}
	if !tbl.Empty() {
		data.Stats = stats.Compute(tbl.Header, tbl.Rows)
	}

	var buf bytes.Buffer
	if err := h.page.Execute(&buf, data); err != nil {
		h.logger.Error("server.render.failed", "req_path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
