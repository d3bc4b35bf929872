package http

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Dajus/daal-sub000/internal/storage"
)

const maxUploadBytes = 10 << 20

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

// UploadAssetHandler stores a slide image sent as multipart field "file" and
// answers with the key to put on the slide.
// POST /admin/assets
func UploadAssetHandler(bs storage.BlobStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		f, hdr, err := r.FormFile("file")
		if err != nil {
			badRequest(w, "file required", map[string]string{"file": "required"})
			return
		}
		defer f.Close()

		ext := strings.ToLower(path.Ext(hdr.Filename))
		if !imageExts[ext] {
			badRequest(w, "unsupported file type", map[string]string{"file": "image"})
			return
		}
		key, err := bs.Put("slides/"+uuid.NewString()+ext, f)
		if err != nil {
			respondError(w, r, log, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]string{"key": key, "url": "/assets/" + key})
	}
}

// MountAssets serves stored blobs under the router it is mounted on.
// GET /assets/*
func MountAssets(r chi.Router, bs storage.BlobStore, log *slog.Logger) {
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(key)
		switch {
		case errors.Is(err, storage.ErrBadKey), errors.Is(err, fs.ErrNotExist):
			respondJSON(w, http.StatusNotFound, errorBody{Error: "asset not found", Code: "not_found"})
			return
		case err != nil:
			respondError(w, r, log, err)
			return
		}
		defer rc.Close()
		ct := mime.TypeByExtension(path.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		_, _ = io.Copy(w, rc)
	})
}
