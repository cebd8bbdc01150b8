package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/airwarehouse/internal/core"
	"github.com/JonMunkholm/airwarehouse/internal/csvin"
)

// multipartMemory is how much of a multipart form is held in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// readCSVUpload parses the "file" part of a multipart upload.
func (s *Server) readCSVUpload(w http.ResponseWriter, r *http.Request) (*csvin.Result, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if tooLarge(err) {
			return nil, fmt.Errorf("%w: limit %d bytes", core.ErrFileTooLarge, s.cfg.Upload.MaxFileSize)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidCSV, err)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: no file provided", core.ErrEmptyUpload)
	}
	defer file.Close()

	res, err := csvin.Parse(file)
	if err != nil {
		return nil, err
	}
	slog.Debug("csv parsed",
		"file", header.Filename,
		"bytes", res.Bytes,
		"rows", len(res.Rows))
	return res, nil
}

// ingestBody accepts either a bare array of row objects or an envelope with
// the rows under "data", the same shape the streaming loop consumes.
type ingestBody struct {
	Data []core.RawRecord `json:"data"`
}

// readJSONRows decodes the request body into raw rows.
func (s *Server) readJSONRows(w http.ResponseWriter, r *http.Request) ([]core.RawRecord, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		if tooLarge(err) {
			return nil, fmt.Errorf("%w: limit %d bytes", core.ErrFileTooLarge, s.cfg.Upload.MaxFileSize)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}

	var rows []core.RawRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		var env ingestBody
		if envErr := json.Unmarshal(data, &env); envErr != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidPayload, err)
		}
		rows = env.Data
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows in body", core.ErrEmptyUpload)
	}
	return rows, nil
}

// tooLarge reports whether err came from the MaxBytesReader. The multipart
// reader does not always wrap it, so the message is checked too.
func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

// writeJSON encodes v as a 200 response.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v with status. Encoding errors are only logged
// since the header is already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
