package offline

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/cors"
)

// DataPath is where the handler exposes the dataset.
const DataPath = "/data"

// HandlerOptions configures Handler.
type HandlerOptions struct {
	// ShellOrigin is the origin shell paths are mapped onto.
	ShellOrigin    string
	AllowedOrigins []string
}

// Handler exposes the worker over HTTP: DataPath proxies the dataset and
// every other path maps onto the shell origin.
func (w *Worker) Handler(opts HandlerOptions) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+DataPath, func(rw http.ResponseWriter, r *http.Request) {
		w.proxy(rw, r, w.dataURL)
	})
	mux.HandleFunc("/", func(rw http.ResponseWriter, r *http.Request) {
		if opts.ShellOrigin == "" {
			http.NotFound(rw, r)
			return
		}
		target, err := url.JoinPath(opts.ShellOrigin, r.URL.Path)
		if err != nil {
			http.Error(rw, "bad path", http.StatusBadRequest)
			return
		}
		if r.URL.Path == "/" && !strings.HasSuffix(target, "/") {
			target += "/"
		}
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		w.proxy(rw, r, target)
	})

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		AllowedHeaders: []string{"Cache-Control", "If-None-Match", "If-Modified-Since"},
		ExposedHeaders: []string{"ETag", "Last-Modified", CacheHeader},
	}).Handler(mux)
}

func (w *Worker) proxy(rw http.ResponseWriter, r *http.Request, target string) {
	if target == "" {
		http.NotFound(rw, r)
		return
	}
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, http.NoBody)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	for _, name := range []string{"Cache-Control", "If-None-Match", "If-Modified-Since", "Accept"} {
		if v := r.Header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}

	resp, err := w.RoundTrip(req)
	if err != nil {
		w.logger.Warn("request failed", "url", target, "err", err)
		http.Error(rw, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort close on read path.
			_ = cerr
		}
	}()

	for k, v := range resp.Header {
		if strings.EqualFold(k, "Content-Length") {
			continue
		}
		rw.Header()[k] = v
	}
	rw.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(rw, resp.Body); err != nil {
		w.logger.Debug("failed to write response", "url", target, "err", err)
	}
}
