package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/s4hq/s4/internal/s4/blob"
	"github.com/s4hq/s4/internal/s4/service"
	"github.com/s4hq/s4/internal/s4/store"
	"github.com/s4hq/s4/pkg/httpx"
	"github.com/s4hq/s4/pkg/slogx"
)

// maxUploadBytes caps multipart uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// createFileMetadata is the JSON carried in the multipart "data" part.
// directoryId arrives as either a number or a quoted string depending on the
// client, hence json.Number.
type createFileMetadata struct {
	FileName    string      `json:"fileName"`
	DirectoryID json.Number `json:"directoryId"`
	ContentType string      `json:"contentType"`
}

// handleCreateFile stores an uploaded payload. Multipart form with a "file"
// part (the bytes) and a "data" part (JSON metadata); username and windowId
// ride along as regular form values.
//
//	POST /create_file
func (rt *Router) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.WriteError(w, "no file found")
		return
	}

	if !rt.authorize(w, r) {
		return
	}

	var meta createFileMetadata
	if err := json.Unmarshal([]byte(r.FormValue("data")), &meta); err != nil {
		httpx.WriteError(w, "no file found")
		return
	}
	directoryID, err := meta.DirectoryID.Int64()
	if err != nil {
		httpx.WriteError(w, "no directory found")
		return
	}

	part, _, err := r.FormFile("file")
	if err != nil {
		httpx.WriteError(w, "no file found")
		return
	}
	defer part.Close()

	payload, err := io.ReadAll(part)
	if err != nil {
		httpx.WriteError(w, "no file found")
		return
	}

	f, err := rt.Files.Upload(r.Context(), directoryID, r.FormValue("username"), meta.FileName, meta.ContentType, payload)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, toFileRecord(f))
	case errors.Is(err, service.ErrNoExtension):
		httpx.WriteError(w, "no file extension")
	default:
		slogx.FromContext(r.Context()).Error("file upload failed", "error", err)
		httpx.WriteError(w, "db failed")
	}
}

// handleGetFile streams a payload back as raw bytes. Sentinel requests are
// answered before the session gate; that matches the placeholder contract
// the clients rely on during first paint.
//
//	GET /get_file?username=&fileId=&fileName=&s3Name=&windowId=
func (rt *Router) handleGetFile(w http.ResponseWriter, r *http.Request) {
	fileID, err := strconv.ParseInt(r.FormValue("fileId"), 10, 64)
	if err != nil {
		httpx.WriteError(w, "no file found")
		return
	}
	blobKey := r.FormValue("s3Name")

	if fileID == service.SentinelFileID || blobKey == service.SentinelBlobKey {
		httpx.WriteSuccess(w, "dummy")
		return
	}

	if !rt.authorize(w, r) {
		return
	}

	p, err := rt.Files.Download(r.Context(), fileID, blobKey)
	switch {
	case err == nil:
		httpx.NoCache(w)
		w.Header().Set("Content-Type", p.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+r.FormValue("fileName")+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(p.Data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(p.Data)
	case errors.Is(err, blob.ErrNotFound):
		httpx.WriteError(w, "no file found")
	default:
		slogx.FromContext(r.Context()).Error("file download failed", "error", err)
		httpx.WriteError(w, "db failed")
	}
}

// handleDeleteFile removes the metadata row and best-effort deletes the blob,
// answering with the record as it existed before deletion.
//
//	GET /delete_file?username=&fileId=&s3Name=&windowId=
func (rt *Router) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if !rt.authorize(w, r) {
		return
	}

	fileID, err := strconv.ParseInt(r.FormValue("fileId"), 10, 64)
	if err != nil {
		httpx.WriteError(w, "no file found")
		return
	}

	f, err := rt.Files.Delete(r.Context(), fileID, r.FormValue("s3Name"))
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, toFileRecord(f))
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, "no file found")
	default:
		slogx.FromContext(r.Context()).Error("file deletion failed", "error", err)
		httpx.WriteError(w, "db failed")
	}
}
