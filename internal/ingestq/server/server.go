package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/armadaproject/ingestq/internal/common/ingesterrors"
	"github.com/armadaproject/ingestq/internal/common/logctx"
	"github.com/armadaproject/ingestq/internal/common/logging"
	"github.com/armadaproject/ingestq/internal/common/requestid"
	"github.com/armadaproject/ingestq/internal/ingestq/ingestion"
	"github.com/armadaproject/ingestq/internal/ingestq/service"
)

const maxRequestBytes = 1 << 20

type IngestionService interface {
	Submit(ctx *logctx.Context, ids []int64, priority ingestion.Priority) (string, error)
	Status(ctx *logctx.Context, ingestionId string) (*service.IngestionView, error)
}

type IngestResponse struct {
	IngestionId string `json:"ingestion_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Server exposes an IngestionService over HTTP. Requests are validated here so that the service only ever sees
// well-formed input.
type Server struct {
	service  IngestionService
	validate *validator.Validate
}

func NewServer(service IngestionService) *Server {
	return &Server{
		service:  service,
		validate: newValidator(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ingest", s.ingest)
	mux.HandleFunc("GET /status/{id}", s.status)
	return requestid.Middleware(mux)
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)

	var req IngestRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, &ingesterrors.ErrInvalidArgument{Name: "body", Value: "", Message: err.Error()})
		return
	}
	if err := validateRequest(s.validate, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	priority, err := ingestion.ParsePriority(req.Priority)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	ingestionId, err := s.service.Submit(ctx, req.Ids, priority)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJson(ctx, w, http.StatusAccepted, &IngestResponse{IngestionId: ingestionId})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	view, err := s.service.Status(ctx, r.PathValue("id"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJson(ctx, w, http.StatusOK, view)
}

func requestContext(r *http.Request) *logctx.Context {
	return logctx.WithLogField(logctx.FromContext(r.Context()), "requestId", requestid.FromContextOrMissing(r.Context()))
}

func writeError(ctx *logctx.Context, w http.ResponseWriter, err error) {
	code := ingesterrors.HttpStatusFromError(err)
	if code >= http.StatusInternalServerError {
		logging.WithStacktrace(ctx.Log, err).Error("Request failed")
	} else {
		ctx.Log.WithError(err).Debug("Request rejected")
	}
	writeJson(ctx, w, code, &ErrorResponse{Error: err.Error()})
}

func writeJson(ctx *logctx.Context, w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		ctx.Log.WithError(err).Warn("Could not write response")
	}
}
