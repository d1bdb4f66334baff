package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/s4hq/s4/internal/s4/service"
	"github.com/s4hq/s4/internal/s4/store"
	"github.com/s4hq/s4/pkg/httpx"
	"github.com/s4hq/s4/pkg/slogx"
)

// handleGetEntryDirectory resolves the caller's root directory.
//
//	GET /get_entry_directory?username=&windowId=
func (rt *Router) handleGetEntryDirectory(w http.ResponseWriter, r *http.Request) {
	if !rt.authorize(w, r) {
		return
	}

	dir, err := rt.Tree.GetEntryDirectory(r.Context(), r.FormValue("username"))
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, toDirectoryRecord(dir))
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, "no directory found")
	default:
		slogx.FromContext(r.Context()).Error("entry directory lookup failed", "error", err)
		httpx.WriteError(w, "db failed")
	}
}

// handleGetDirectory returns a directory with its immediate children.
//
//	GET /get_directory?username=&directoryId=&windowId=
func (rt *Router) handleGetDirectory(w http.ResponseWriter, r *http.Request) {
	if !rt.authorize(w, r) {
		return
	}

	id, err := strconv.ParseInt(r.FormValue("directoryId"), 10, 64)
	if err != nil {
		httpx.WriteError(w, "no directory found")
		return
	}

	listing, err := rt.Tree.GetDirectory(r.Context(), id)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, toDirectoryListingRecord(listing))
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, "no directory found")
	default:
		slogx.FromContext(r.Context()).Error("directory lookup failed", "error", err)
		httpx.WriteError(w, "db failed")
	}
}

// handleCreateDirectory inserts a directory under the given parent.
//
//	GET /create_directory?username=&directoryName=&parentDirectoryId=&windowId=
func (rt *Router) handleCreateDirectory(w http.ResponseWriter, r *http.Request) {
	if !rt.authorize(w, r) {
		return
	}

	name := r.FormValue("directoryName")
	if name == "" {
		httpx.WriteError(w, "no directory found")
		return
	}

	parentID, err := strconv.ParseInt(r.FormValue("parentDirectoryId"), 10, 64)
	if err != nil {
		httpx.WriteError(w, "no directory found")
		return
	}

	dir, err := rt.Tree.CreateDirectory(r.Context(), parentID, name, r.FormValue("username"))
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, toDirectoryRecord(dir))
	case errors.Is(err, service.ErrConflict):
		httpx.WriteError(w, "directory already exists")
	default:
		slogx.FromContext(r.Context()).Error("directory creation failed", "error", err)
		httpx.WriteError(w, "db failed")
	}
}

// handleDeleteDirectory cascades over the subtree, bounded in depth.
//
//	GET /delete_directory?username=&directoryId=&windowId=
func (rt *Router) handleDeleteDirectory(w http.ResponseWriter, r *http.Request) {
	if !rt.authorize(w, r) {
		return
	}

	id, err := strconv.ParseInt(r.FormValue("directoryId"), 10, 64)
	if err != nil {
		httpx.WriteError(w, "no directory found")
		return
	}

	err = rt.Tree.DeleteDirectory(r.Context(), id)
	switch {
	case err == nil:
		httpx.WriteSuccess(w, "directory deleted")
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, "no directory found")
	default:
		slogx.FromContext(r.Context()).Error("directory deletion failed", "error", err)
		httpx.WriteError(w, "db failed")
	}
}
