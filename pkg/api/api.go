// Package api implements the HTTP/JSON boundary (§6): a thin chi router
// converting JSON request bodies into queue submissions and result-store
// reads back into JSON, with no business logic of its own. Every route
// named in §6 is implemented here exactly; the engine, queue, and result
// store stay unaware that HTTP exists at all.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/levelup-tools/levelup/pkg/compiler"
	"github.com/levelup-tools/levelup/pkg/engine"
	"github.com/levelup-tools/levelup/pkg/logger"
	"github.com/levelup-tools/levelup/pkg/mod"
	"github.com/levelup-tools/levelup/pkg/queue"
	"github.com/levelup-tools/levelup/pkg/ratelimit"
	"github.com/levelup-tools/levelup/pkg/reposvc"
	"github.com/levelup-tools/levelup/pkg/result"
	"github.com/levelup-tools/levelup/pkg/validator"
)

var log = logger.New("api")

// Server holds every collaborator the HTTP boundary needs to read from or
// enqueue into; it never holds business state of its own.
type Server struct {
	Queue      *queue.Queue
	Results    *result.Store
	Repos      *reposvc.Store
	Mods       *mod.Registry
	Validators *validator.Registry
	Compilers  *compiler.Registry
}

// Router builds the chi.Router implementing every route in §6, with a
// permissive CORS policy suitable for a locally-hosted tool's browser
// clients.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/repos", func(r chi.Router) {
		r.Get("/", s.listRepos)
		r.Post("/", s.createRepo)
		r.Put("/{id}", s.updateRepo)
		r.Delete("/{id}", s.deleteRepo)
	})

	r.Post("/api/mods", s.submitMod)
	r.Get("/api/mods/{id}/status", s.modStatus)
	r.Get("/api/queue/status", s.queueStatus)

	r.Get("/api/available/mods", s.availableMods)
	r.Get("/api/available/validators", s.availableValidators)
	r.Get("/api/available/compilers", s.availableCompilers)

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encoding response failed: error=%v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) listRepos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Repos.List())
}

type createRepoBody struct {
	URL             string `json:"url"`
	PostCheckout    string `json:"post_checkout"`
	BuildCommand    string `json:"build_command"`
	SingleTUCommand string `json:"single_tu_command"`
}

func (s *Server) createRepo(w http.ResponseWriter, r *http.Request) {
	var body createRepoBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	repo, err := s.Repos.Create(body.URL, body.PostCheckout, body.BuildCommand, body.SingleTUCommand)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, repo)
}

func (s *Server) updateRepo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch reposvc.RepoConfig
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	repo, err := s.Repos.Update(id, patch)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

func (s *Server) deleteRepo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Repos.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// submitModBody covers both the builtin and commit request shapes; exactly
// one of ModType/CommitHash is meaningful, selected by Type.
type submitModBody struct {
	Type        string `json:"type"`
	RepoName    string `json:"repo_name"`
	RepoURL     string `json:"repo_url"`
	ModType     string `json:"mod_type"`
	CommitHash  string `json:"commit_hash"`
	Description string `json:"description"`
}

func (s *Server) submitMod(w http.ResponseWriter, r *http.Request) {
	if !ratelimit.Allow(ratelimit.OperationHTTPSubmit) {
		writeError(w, http.StatusTooManyRequests, "too many submissions, slow down")
		return
	}

	var body submitModBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := engine.Request{
		RepoName:    body.RepoName,
		RepoURL:     body.RepoURL,
		Description: body.Description,
	}
	if repo, ok := s.Repos.Get(body.RepoName); ok {
		req.PostCheckoutCmd = repo.PostCheckout
	}

	switch body.Type {
	case "builtin":
		req.Type = engine.SourceBuiltin
		req.ModID = body.ModType
	case "commit":
		req.Type = engine.SourceCommit
		req.CommitHash = body.CommitHash
	default:
		writeError(w, http.StatusBadRequest, `type must be "builtin" or "commit"`)
		return
	}

	id := s.Queue.Submit(req)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

type statusResponse struct {
	ID                string                   `json:"id"`
	Status            result.Status            `json:"status"`
	Message           string                   `json:"message"`
	ValidationResults []result.FileValidation  `json:"validation_results"`
	AcceptedCommits   []string                 `json:"accepted_commits"`
	RejectedCommits   []string                 `json:"rejected_commits"`
	Timestamp         time.Time                `json:"timestamp"`
}

func (s *Server) modStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, ok := s.Results.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown request id")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		ID:                res.ID,
		Status:            res.Status,
		Message:           res.Message,
		ValidationResults: res.ValidationResults,
		AcceptedCommits:   res.Accepted,
		RejectedCommits:   res.Rejected,
		Timestamp:         res.UpdatedAt,
	})
}

func (s *Server) queueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"queue_size": s.Queue.Size(),
		"results":    s.Results.All(),
		"timestamp":  time.Now(),
	})
}

type availableEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) availableMods(w http.ResponseWriter, r *http.Request) {
	list := s.Mods.List()
	out := make([]availableEntry, len(list))
	for i, e := range list {
		out[i] = availableEntry{ID: e.ID, Name: e.Name}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) availableValidators(w http.ResponseWriter, r *http.Request) {
	list := s.Validators.List()
	out := make([]availableEntry, len(list))
	for i, e := range list {
		out[i] = availableEntry{ID: e.ID, Name: e.Name}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) availableCompilers(w http.ResponseWriter, r *http.Request) {
	list := s.Compilers.List()
	out := make([]availableEntry, len(list))
	for i, e := range list {
		out[i] = availableEntry{ID: e.ID, Name: e.Name}
	}
	writeJSON(w, http.StatusOK, out)
}
