package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/certforge/internal/core"
	"github.com/JonMunkholm/certforge/internal/logging"
)

// multipartMemory is the in-memory part of a parsed form; larger uploads
// spill to temporary files.
const multipartMemory = 32 << 20

// handleIndex renders the upload form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	entries, err := s.layouts.List(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Warn("list layouts for form", "error", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	IndexPage(IndexParams{
		LayoutKeys:  keys,
		MaxFileSize: s.cfg.Generation.MaxFileSize,
		MaxRows:     s.cfg.Generation.MaxRows,
	}).Render(r.Context(), w)
}

// handleHealth reports liveness and batch capacity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	store := "memory"
	if s.cfg.Database.Enabled() {
		store = "postgres"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"batches":      s.service.Status(),
		"workers":      s.service.Workers(),
		"layout_store": store,
	})
}

// handleGenerate runs one batch from a multipart upload and responds with
// the resulting document or archive as an attachment.
//
// Form fields: file (recipients), template (image), layout (optional JSON or
// YAML), template_key, outputType, itemFormat.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r, 2); err != nil {
		respondError(w, r, err)
		return
	}

	data, dataName, err := s.formFile(r, "file")
	if err != nil {
		respondError(w, r, err)
		return
	}
	template, _, err := s.formFile(r, "template")
	if err != nil {
		respondError(w, r, err)
		return
	}
	itemFormat, ok := core.ParseItemFormat(r.FormValue("itemFormat"))
	if !ok {
		respondError(w, r, fmt.Errorf("%w: %q", core.ErrUnknownFormat, r.FormValue("itemFormat")))
		return
	}

	key := strings.TrimSpace(r.FormValue("template_key"))
	logger := logging.WithFields(r.Context(), "template_key", key, "data_file", dataName)

	res, err := s.service.Generate(r.Context(), core.GenerateRequest{
		Batch: core.Batch{
			Data:         data,
			DataFilename: dataName,
			Template:     template,
			Mode:         core.ParseOutputMode(r.FormValue("outputType")),
			ItemFormat:   itemFormat,
		},
		LayoutData:  []byte(r.FormValue("layout")),
		TemplateKey: key,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if len(res.Payloads) != 1 {
		respondError(w, r, fmt.Errorf("%w: %d payloads for a bundled batch", core.ErrAssembly, len(res.Payloads)))
		return
	}

	logger.Info("batch served",
		"batch_id", res.BatchID,
		"rendered", res.Rendered,
		"skipped", len(res.Skipped),
		"bytes", len(res.Payloads[0].Content),
	)

	h := w.Header()
	h.Set("X-Batch-ID", res.BatchID.String())
	h.Set("X-Certificates-Total", strconv.Itoa(res.Total))
	h.Set("X-Certificates-Rendered", strconv.Itoa(res.Rendered))
	h.Set("X-Certificates-Skipped", strconv.Itoa(len(res.Skipped)))
	if res.LayoutErr != nil {
		h.Set("X-Layout-Warning", core.MapError(res.LayoutErr).Code)
	}
	writePayload(w, res.Payloads[0])
}

// handlePreview renders one sample certificate as PNG.
//
// Form fields: template, name, and either layout or template_key.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r, 1); err != nil {
		respondError(w, r, err)
		return
	}
	template, _, err := s.formFile(r, "template")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var layout *core.StoredLayout
	if raw := r.FormValue("layout"); strings.TrimSpace(raw) != "" {
		layout, err = core.DecodeLayout([]byte(raw))
	} else if key := strings.TrimSpace(r.FormValue("template_key")); key != "" {
		layout, err = s.storedLayout(r, key)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	img, err := s.service.Preview(r.Context(), template, strings.TrimSpace(r.FormValue("name")), layout)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img)
}

// storedLayout loads key from the store for previews.
func (s *Server) storedLayout(r *http.Request, key string) (*core.StoredLayout, error) {
	entry, err := s.layouts.Get(r.Context(), key)
	if err != nil {
		return nil, err
	}
	return entry.Layout()
}

// parseForm limits the body to files uploads of MaxFileSize plus form
// overhead and parses it.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request, files int64) error {
	limit := files*s.cfg.Generation.MaxFileSize + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request exceeds %d bytes", core.ErrFileTooLarge, limit)
		}
		return fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}
	return nil
}

// formFile reads an uploaded file, enforcing the per-file size limit.
func (s *Server) formFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", core.ErrNoFile, field)
	}
	defer file.Close()

	if header.Size > s.cfg.Generation.MaxFileSize {
		return nil, "", fmt.Errorf("%w: %s is %d bytes, limit %d", core.ErrFileTooLarge, field, header.Size, s.cfg.Generation.MaxFileSize)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", field, err)
	}
	return data, header.Filename, nil
}

// writePayload sends p as a download.
func writePayload(w http.ResponseWriter, p core.Payload) {
	w.Header().Set("Content-Type", p.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": p.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Content)))
	w.WriteHeader(http.StatusOK)
	w.Write(p.Content)
}

