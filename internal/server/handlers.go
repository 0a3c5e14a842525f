package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/invoice-reader/constants"
	"github.com/joseph-ayodele/invoice-reader/internal/common"
	"github.com/joseph-ayodele/invoice-reader/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reader/internal/session"
)

const (
	formField        = "files"
	contentTypeXLSX  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	multipartMemory  = 8 << 20
	errNoFilesFormat = "no files in form field %q"
)

// Index renders the upload form, the accumulated table and its statistics.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.render(w, r, sess, nil, "")
}

// Upload processes every file of the multipart field "files", one at a time.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, fmt.Sprintf("upload exceeds %d bytes", h.maxUpload), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File[formField]
	if len(files) == 0 {
		http.Error(w, fmt.Sprintf(errNoFilesFormat, formField), http.StatusBadRequest)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveUpload()
	}

	sess.Lock()
	if sess.Closed() {
		sess.Unlock()
		h.logger.Warn("server.upload.session_ended", "session_id", sess.ID)
		http.Error(w, "session has ended", http.StatusConflict)
		return
	}
	outcomes := make([]pipeline.Outcome, 0, len(files))
	for _, fh := range files {
		outcomes = append(outcomes, h.processUpload(r, sess, fh))
	}
	sess.Unlock()

	h.logger.Info("server.upload.done", "session_id", sess.ID, "files", len(files))

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, outcomes)
		return
	}
	h.render(w, r, sess, outcomes, duplicateMessage(outcomes))
}

func duplicateMessage(outcomes []pipeline.Outcome) string {
	var names []string
	for _, o := range outcomes {
		if o.Status == constants.FileStatusSkippedDuplicate {
			names = append(names, o.File)
		}
	}
	if len(names) == 0 {
		return ""
	}
	return "Already processed in this session, skipped: " + strings.Join(names, ", ")
}

// processUpload copies one upload into the session scratch dir, processes it
// and always removes the copy. The scratch dir is never recreated once the
// session has removed it.
func (h *Handler) processUpload(r *http.Request, sess *session.Session, fh *multipart.FileHeader) pipeline.Outcome {
	name := filepath.Base(strings.ReplaceAll(fh.Filename, `\`, "/"))
	if !constants.IsAllowedExt(filepath.Ext(name)) {
		h.logger.Warn("server.upload.rejected", "file", name, "session_id", sess.ID)
		return pipeline.Outcome{File: name, Status: constants.FileStatusRejected, Error: "only .pdf files are accepted"}
	}

	tmp, err := copyToScratch(sess.ScratchDir, fh)
	if err != nil {
		h.logger.Error("server.upload.copy_failed", "file", name, "error", err)
		return pipeline.Outcome{File: name, Status: constants.FileStatusFailedInput, Error: common.NewInputError("store upload", err).Error()}
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger.Warn("server.upload.cleanup_failed", "path", tmp, "error", err)
		}
	}()

	ctx := common.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
	return h.processor.ProcessFile(ctx, sess, name, tmp)
}

func copyToScratch(dir string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.CreateTemp(dir, "upload-*.pdf")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

// ExportCSV streams the session CSV.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	f, err := os.Open(sess.Sink.Path())
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "no invoices processed yet", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("server.export_csv.open_failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+constants.DefaultCSVFile+`"`)
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("server.export_csv.write_failed", "error", err)
	}
}

// ExportXLSX renders the session CSV as a workbook.
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	b, err := h.exporter.WorkbookFromCSV(sess.Sink.Path())
	if err != nil {
		h.logger.Error("server.export_xlsx.failed", "session_id", sess.ID, "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="invoice_data.xlsx"`)
	_, _ = w.Write(b)
}

// Results returns every raw model output of the session as JSON.
func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Results())
}

// EndSession tears the caller's session down and clears the cookie.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(session.CookieName); err == nil {
		if err := h.sessions.End(c.Value); err != nil && !errors.Is(err, session.ErrUnknownSession) {
			h.logger.Warn("server.session_end.failed", "session_id", c.Value, "error", err)
		}
	}
	if h.metrics != nil {
		h.metrics.SetLiveSessions(h.sessions.Len())
	}
	http.SetCookie(w, &http.Cookie{Name: session.CookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := h.sessions.Resolve(w, r)
	if err != nil {
		h.logger.Error("server.session.resolve_failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}
	if h.metrics != nil {
		h.metrics.SetLiveSessions(h.sessions.Len())
	}
	return sess, true
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
