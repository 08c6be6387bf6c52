package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cscportal/portal-backend/pkg/errors"
	"github.com/cscportal/portal-backend/pkg/httputil"
	"github.com/cscportal/portal-backend/pkg/logger"
	"github.com/cscportal/portal-backend/pkg/storage"
)

// FileOpener resolves a signed download token to a stored object
type FileOpener interface {
	Open(token string) (*storage.Download, error)
}

// serveFile streams the object granted by the URL token. Invalid,
// expired and unknown tokens all answer 404.
func serveFile(files FileOpener, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if files == nil {
			httputil.Error(w, errors.NotFound("file"))
			return
		}

		d, err := files.Open(chi.URLParam(r, "token"))
		if err != nil {
			if errors.Is(err, storage.ErrInvalidKey) || errors.Is(err, storage.ErrNotFound) {
				httputil.Error(w, errors.NotFound("file"))
				return
			}
			log.Error().Err(err).Msg("failed to open stored file")
			httputil.Error(w, errors.StorageUnavailable(err))
			return
		}
		defer d.Close()

		w.Header().Set("Content-Type", d.ContentType)
		w.Header().Set("Cache-Control", "private, no-store")
		http.ServeContent(w, r, d.Name, d.ModTime, d)
	}
}
