package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/mpetrov/iris"
	"github.com/mpetrov/iris/transport"
)

const maxUploadBytes = 20 << 20

// Server is the HTTP front end over the conversation service. It translates
// error kinds into status codes and a single generic user-facing message;
// the kinds stay distinguishable in the logs.
type Server struct {
	hs     *http.Server
	svc    *iris.Service
	fs     *iris.Filestore
	db     *iris.DB
	tc     transport.Client
	model  string
	logger *log.Logger
}

func NewServer(svc *iris.Service, fs *iris.Filestore, db *iris.DB, tc transport.Client, model, port string, logger *log.Logger) *Server {
	srv := &Server{
		svc:    svc,
		fs:     fs,
		db:     db,
		tc:     tc,
		model:  model,
		logger: logger,
	}

	srv.hs = &http.Server{
		Addr:    net.JoinHostPort("0.0.0.0", port),
		Handler: srv.serveHandler(),
	}

	return srv
}

func (s *Server) Start() error {
	return s.hs.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.hs.Shutdown(ctx)
}

func (s *Server) serveHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /sessions/{id}/image", s.serveImage())
	mux.Handle("POST /sessions/{id}/ask", s.serveAsk())
	mux.Handle("DELETE /sessions/{id}", s.serveClear())
	mux.Handle("GET /files", s.serveFiles())
	mux.Handle("GET /healthz", s.serveHealth())
	mux.Handle("GET /statusz", s.serveStatus())

	return mux
}

// serveImage accepts a multipart image upload plus an optional prompt, saves
// the file to the filestore, records it in the catalog and starts a
// conversation for the session.
func (s *Server) serveImage() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sessionID := req.PathValue("id")
		logger := s.logger.With("req", reqID(), "session", sessionID)

		if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
			http.Error(w, "expected a multipart image upload", http.StatusBadRequest)
			return
		}

		file, hdr, err := req.FormFile("image")
		if err != nil {
			http.Error(w, "missing image field", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		prompt := req.FormValue("prompt")
		if prompt == "" {
			prompt = "Describe this image."
		}

		path, err := s.fs.SaveImage(hdr.Filename, data)
		if err != nil {
			logger.Error("filestore save failed", "err", err)
			s.writeError(w, logger, err)
			return
		}

		uploadID, err := s.db.RecordUpload(req.Context(), sessionID, path, time.Now())
		if err != nil {
			logger.Error("catalog record failed", "err", err)
			s.writeError(w, logger, err)
			return
		}

		answer, err := s.svc.StartConversation(req.Context(), sessionID, prompt, data)
		if err != nil {
			s.writeError(w, logger, err)
			return
		}

		if err := s.db.SetCaption(req.Context(), uploadID, answer, s.model, s.tc.Name(), time.Now()); err != nil {
			// The answer is already committed to the session; log and move on.
			logger.Error("catalog caption update failed", "err", err)
		}

		logger.Info("conversation started", "upload", path)
		writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
	}
}

func (s *Server) serveAsk() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sessionID := req.PathValue("id")
		logger := s.logger.With("req", reqID(), "session", sessionID)

		var body struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Prompt == "" {
			http.Error(w, `expected a JSON body with a "prompt" field`, http.StatusBadRequest)
			return
		}

		answer, err := s.svc.Ask(req.Context(), sessionID, body.Prompt)
		if err != nil {
			s.writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
	}
}

func (s *Server) serveClear() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		s.svc.ClearSession(req.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) serveFiles() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		files, err := s.fs.List()
		if err != nil {
			s.writeError(w, s.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"files": files})
	}
}

func (s *Server) serveHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !s.tc.IsHealthy() {
			http.Error(w, "backend unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) serveStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		uploads, err := s.db.CountUploads(req.Context())
		if err != nil {
			s.writeError(w, s.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"backend":  s.tc.Name(),
			"model":    s.model,
			"sessions": s.svc.Store().Len(),
			"uploads":  uploads,
		})
	}
}

// writeError maps error kinds to status codes. End users get one generic
// message regardless of kind.
func (s *Server) writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	status := http.StatusInternalServerError

	var terr *iris.TransportError
	var perr *iris.UnparseableResponseError
	switch {
	case errors.Is(err, iris.ErrNoActiveSession):
		status = http.StatusConflict
		logger.Warn("no active session")
	case errors.Is(err, iris.ErrEmptySessionKey):
		status = http.StatusBadRequest
		logger.Warn("empty session key")
	case errors.As(err, &terr):
		status = http.StatusBadGateway
		logger.Error("transport failure", "backend", terr.Backend, "err", terr.Err)
	case errors.As(err, &perr):
		status = http.StatusBadGateway
		logger.Error("unparseable model response", "raw", string(perr.Raw))
	default:
		logger.Error("request failed", "err", err)
	}

	writeJSON(w, status, map[string]string{"error": "something went wrong, try again"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func reqID() string {
	id := uuid.NewString()
	return id[:8]
}
