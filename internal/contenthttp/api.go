// Package contenthttp serves the active content snapshot as a read-only
// JSON API.
package contenthttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-content/internal/collection"
	"github.com/keithlinneman/linnemanlabs-content/internal/content"
	"github.com/keithlinneman/linnemanlabs-content/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-content/internal/log"
	"github.com/keithlinneman/linnemanlabs-content/internal/pathutil"
	"github.com/keithlinneman/linnemanlabs-content/internal/sitecontent"
)

// SnapshotProvider returns the snapshot being served.
type SnapshotProvider interface {
	Get() (*content.Snapshot, bool)
}

// API implements the content endpoints.
type API struct {
	content  SnapshotProvider
	registry *collection.Registry
	logger   log.Logger
}

func NewAPI(content SnapshotProvider, reg *collection.Registry, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{content: content, registry: reg, logger: logger}
}

// RegisterRoutes attaches the content endpoints to the router.
func (api *API) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.With(httpmw.Scope("collections")).Get("/collections", api.HandleCollections)
		r.With(httpmw.Scope("collection")).Get("/collections/{collection}", api.HandleCollection)
		r.With(httpmw.Scope("entry")).Get("/collections/{collection}/*", api.HandleEntry)

		r.With(httpmw.Scope("about")).Get("/about", api.HandleAbout)
		r.With(httpmw.Scope("blog")).Get("/blog", api.HandleBlog)
		r.With(httpmw.Scope("projects")).Get("/projects", api.HandleProjects)
	})
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SnapshotInfo describes the snapshot that answered a request.
type SnapshotInfo struct {
	Hash        string             `json:"hash"`
	Fingerprint string             `json:"fingerprint,omitempty"`
	Source      content.SourceKind `json:"source"`
	LoadedAt    time.Time          `json:"loaded_at"`
	Entries     int                `json:"entries"`
}

// CollectionSummary describes one registered collection.
type CollectionSummary struct {
	Name    string `json:"name"`
	Base    string `json:"base"`
	Pattern string `json:"pattern"`
	Entries int    `json:"entries"`
}

type CollectionsResponse struct {
	Snapshot    SnapshotInfo        `json:"snapshot"`
	Collections []CollectionSummary `json:"collections"`
}

// EntrySummary is an entry without its rendered body.
type EntrySummary struct {
	ID    string         `json:"id"`
	Title string         `json:"title"`
	Data  map[string]any `json:"data"`
}

type CollectionResponse struct {
	Collection string         `json:"collection"`
	Entries    []EntrySummary `json:"entries"`
}

func snapshotInfo(s *content.Snapshot) SnapshotInfo {
	return SnapshotInfo{
		Hash:        s.Meta.Hash,
		Fingerprint: s.Meta.Fingerprint,
		Source:      s.Meta.Source,
		LoadedAt:    s.LoadedAt.UTC().Truncate(time.Second),
		Entries:     s.Total(),
	}
}

// snapshot writes 503 and returns false when nothing is loaded yet.
func (api *API) snapshot(w http.ResponseWriter, r *http.Request) (*content.Snapshot, bool) {
	s, ok := api.content.Get()
	if !ok {
		api.writeError(r.Context(), w, http.StatusServiceUnavailable, "no content loaded")
		return nil, false
	}
	return s, true
}

// HandleCollections lists registered collections with entry counts.
func (api *API) HandleCollections(w http.ResponseWriter, r *http.Request) {
	s, ok := api.snapshot(w, r)
	if !ok {
		return
	}

	defs := api.registry.Definitions()
	resp := CollectionsResponse{
		Snapshot:    snapshotInfo(s),
		Collections: make([]CollectionSummary, 0, len(defs)),
	}
	for _, d := range defs {
		resp.Collections = append(resp.Collections, CollectionSummary{
			Name:    d.Name,
			Base:    d.Loader.Base,
			Pattern: d.Loader.Pattern,
			Entries: len(s.Collections[d.Name]),
		})
	}
	api.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// HandleCollection lists the entries of one collection, ordered by ID.
func (api *API) HandleCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	if _, ok := api.registry.Get(name); !ok {
		api.writeError(r.Context(), w, http.StatusNotFound, "unknown collection")
		return
	}
	s, ok := api.snapshot(w, r)
	if !ok {
		return
	}

	entries := s.Collections[name]
	resp := CollectionResponse{Collection: name, Entries: make([]EntrySummary, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, EntrySummary{ID: e.ID, Title: e.Title(), Data: e.Data})
	}
	api.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// HandleEntry serves one entry, rendered HTML included. The entry ID is
// the rest of the path and may contain slashes.
func (api *API) HandleEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "collection")
	id := strings.Trim(chi.URLParam(r, "*"), "/")

	if _, ok := api.registry.Get(name); !ok {
		api.writeError(ctx, w, http.StatusNotFound, "unknown collection")
		return
	}
	s, ok := api.snapshot(w, r)
	if !ok {
		return
	}

	if id == "" || pathutil.HasDotSegments(id) {
		api.writeError(ctx, w, http.StatusNotFound, "entry not found")
		return
	}
	e, ok := s.Entry(name, id)
	if !ok {
		api.writeError(ctx, w, http.StatusNotFound, "entry not found")
		return
	}

	api.logger.Debug(ctx, "served content entry", "collection", name, "id", id)
	api.writeJSON(ctx, w, http.StatusOK, e)
}

// HandleAbout serves the about page record.
func (api *API) HandleAbout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := api.snapshot(w, r)
	if !ok {
		return
	}
	entries := s.Collections[sitecontent.About]
	if len(entries) == 0 {
		api.writeError(ctx, w, http.StatusNotFound, "entry not found")
		return
	}
	page, err := sitecontent.DecodeAbout(entries[0])
	if err != nil {
		api.fail(ctx, w, err)
		return
	}
	api.writeJSON(ctx, w, http.StatusOK, page)
}

// HandleBlog lists blog posts newest first, without bodies.
func (api *API) HandleBlog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := api.snapshot(w, r)
	if !ok {
		return
	}
	posts, err := sitecontent.BlogPosts(s.Collections[sitecontent.Blog])
	if err != nil {
		api.fail(ctx, w, err)
		return
	}
	for i := range posts {
		posts[i].HTML = ""
	}
	api.writeJSON(ctx, w, http.StatusOK, posts)
}

// HandleProjects lists projects newest first, without bodies.
func (api *API) HandleProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, ok := api.snapshot(w, r)
	if !ok {
		return
	}
	projects, err := sitecontent.ProjectList(s.Collections[sitecontent.Projects])
	if err != nil {
		api.fail(ctx, w, err)
		return
	}
	for i := range projects {
		projects[i].HTML = ""
	}
	api.writeJSON(ctx, w, http.StatusOK, projects)
}

// StatusResponse is the admin view of the active snapshot.
type StatusResponse struct {
	Ready       bool           `json:"ready"`
	Snapshot    *SnapshotInfo  `json:"snapshot,omitempty"`
	Collections map[string]int `json:"collections,omitempty"`
	ServerTime  time.Time      `json:"server_time"`
}

// StatusHandler reports readiness and per-collection counts. It is served
// on the admin listener.
func StatusHandler(content SnapshotProvider) http.Handler {
	api := &API{content: content, logger: log.Nop()}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{ServerTime: time.Now().UTC().Truncate(time.Second)}
		status := http.StatusServiceUnavailable
		if s, ok := content.Get(); ok {
			info := snapshotInfo(s)
			resp.Ready = true
			resp.Snapshot = &info
			resp.Collections = s.Counts()
			status = http.StatusOK
		}
		api.writeJSON(r.Context(), w, status, resp)
	})
}

// fail reports a record decode failure. Validated entries always decode,
// so this is a server bug.
func (api *API) fail(ctx context.Context, w http.ResponseWriter, err error) {
	log.FromContext(ctx).Error(ctx, err, "decode content records")
	api.writeError(ctx, w, http.StatusInternalServerError, "internal error")
}

func (api *API) writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	api.writeJSON(ctx, w, status, ErrorResponse{Error: msg})
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}
