package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FossRust/sme-suite/pkg/models"
	"github.com/FossRust/sme-suite/pkg/services"
)

// CRMHandler exposes the pipeline, search and reporting services over
// HTTP. Every route expects an org scope on the request context.
type CRMHandler struct {
	dealStage services.DealStageService
	search    services.SearchService
	pipeline  services.PipelineService
	report    services.ReportService
	catalog   services.StageCatalogService
	logger    *zap.Logger
}

// NewCRMHandler creates a CRMHandler with the given services.
func NewCRMHandler(
	dealStage services.DealStageService,
	search services.SearchService,
	pipeline services.PipelineService,
	report services.ReportService,
	catalog services.StageCatalogService,
	logger *zap.Logger,
) *CRMHandler {
	return &CRMHandler{
		dealStage: dealStage,
		search:    search,
		pipeline:  pipeline,
		report:    report,
		catalog:   catalog,
		logger:    logger,
	}
}

// RegisterRoutes registers the CRM routes on the given router.
func (h *CRMHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stages", h.Stages)
	r.Post("/deals/{dealID}/stage", h.MoveStage)
	r.Get("/deals/{dealID}/stage-history", h.StageHistory)
	r.Get("/deals/{dealID}/timeline", h.Timeline)
	r.Get("/search", h.Search)
	r.Get("/search/companies", h.SuggestCompanies)
	r.Get("/search/contacts", h.SuggestContacts)
	r.Get("/search/deals", h.SuggestDeals)
	r.Get("/pipeline/board", h.Board)
	r.Get("/reports/pipeline", h.Report)
}

// Stages handles GET /stages requests.
func (h *CRMHandler) Stages(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.catalog.Catalog(r.Context())
	if err != nil {
		h.writeError(w, err, "load stage catalog")
		return
	}
	h.writeJSON(w, map[string]any{"stages": catalog.Stages})
}

// MoveStageRequest is the body of POST /deals/{dealID}/stage.
type MoveStageRequest struct {
	Stage   string     `json:"stage"`
	Note    string     `json:"note"`
	ActorID *uuid.UUID `json:"actor_id"`
}

// MoveStage handles POST /deals/{dealID}/stage requests.
func (h *CRMHandler) MoveStage(w http.ResponseWriter, r *http.Request) {
	dealID, err := uuid.Parse(chi.URLParam(r, "dealID"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "VALIDATION", "invalid deal id")
		return
	}

	var req MoveStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "VALIDATION", "invalid request body")
		return
	}

	actor := uuid.Nil
	if req.ActorID != nil {
		actor = *req.ActorID
	}

	deal, err := h.dealStage.MoveStage(r.Context(), dealID, req.Stage, req.Note, actor)
	if err != nil {
		h.writeError(w, err, "move stage")
		return
	}
	h.writeJSON(w, deal)
}

// StageHistory handles GET /deals/{dealID}/stage-history requests.
func (h *CRMHandler) StageHistory(w http.ResponseWriter, r *http.Request) {
	dealID, err := uuid.Parse(chi.URLParam(r, "dealID"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "VALIDATION", "invalid deal id")
		return
	}

	history, err := h.dealStage.History(r.Context(), dealID)
	if err != nil {
		h.writeError(w, err, "load stage history")
		return
	}
	h.writeJSON(w, map[string]any{"history": history})
}

// Timeline handles GET /deals/{dealID}/timeline requests.
func (h *CRMHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	dealID, err := uuid.Parse(chi.URLParam(r, "dealID"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "VALIDATION", "invalid deal id")
		return
	}

	limit := uint64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "VALIDATION", "invalid limit")
			return
		}
		limit = parsed
	}

	activities, err := h.dealStage.Timeline(r.Context(), dealID, limit)
	if err != nil {
		h.writeError(w, err, "load timeline")
		return
	}
	h.writeJSON(w, map[string]any{"activities": activities})
}

// Search handles GET /search requests. The kinds parameter is a comma
// separated list; omitting it searches every kind.
func (h *CRMHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	first, err := intParam(q.Get("first"), 20)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "VALIDATION", "invalid first")
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "VALIDATION", "invalid offset")
		return
	}

	var kinds []models.SearchKind
	if raw, present := q["kinds"]; present {
		kinds = []models.SearchKind{}
		for _, part := range strings.Split(strings.Join(raw, ","), ",") {
			if part = strings.TrimSpace(part); part != "" {
				kinds = append(kinds, models.SearchKind(strings.ToUpper(part)))
			}
		}
	}

	hits, err := h.search.Search(r.Context(), q.Get("q"), kinds, first, offset)
	if err != nil {
		h.writeError(w, err, "search")
		return
	}
	h.writeJSON(w, map[string]any{"hits": hits})
}

// SuggestCompanies handles GET /search/companies requests.
func (h *CRMHandler) SuggestCompanies(w http.ResponseWriter, r *http.Request) {
	query, first, ok := h.suggestParams(w, r)
	if !ok {
		return
	}
	companies, err := h.search.SuggestCompanies(r.Context(), query, first)
	if err != nil {
		h.writeError(w, err, "suggest companies")
		return
	}
	h.writeJSON(w, map[string]any{"companies": companies})
}

// SuggestContacts handles GET /search/contacts requests.
func (h *CRMHandler) SuggestContacts(w http.ResponseWriter, r *http.Request) {
	query, first, ok := h.suggestParams(w, r)
	if !ok {
		return
	}
	contacts, err := h.search.SuggestContacts(r.Context(), query, first)
	if err != nil {
		h.writeError(w, err, "suggest contacts")
		return
	}
	h.writeJSON(w, map[string]any{"contacts": contacts})
}

// SuggestDeals handles GET /search/deals requests.
func (h *CRMHandler) SuggestDeals(w http.ResponseWriter, r *http.Request) {
	query, first, ok := h.suggestParams(w, r)
	if !ok {
		return
	}
	deals, err := h.search.SuggestDeals(r.Context(), query, first)
	if err != nil {
		h.writeError(w, err, "suggest deals")
		return
	}
	h.writeJSON(w, map[string]any{"deals": deals})
}

// Board handles GET /pipeline/board requests.
func (h *CRMHandler) Board(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	firstPerStage, err := intParam(q.Get("first_per_stage"), 10)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "VALIDATION", "invalid first_per_stage")
		return
	}

	params := services.BoardParams{
		FirstPerStage:  firstPerStage,
		Text:           q.Get("q"),
		OrderByUpdated: q.Get("order") == "updated",
	}

	if raw, present := q["stages"]; present {
		params.StageKeys = []string{}
		for _, part := range strings.Split(strings.Join(raw, ","), ",") {
			if part = strings.TrimSpace(part); part != "" {
				params.StageKeys = append(params.StageKeys, part)
			}
		}
	}

	if raw := q.Get("company_id"); raw != "" {
		companyID, err := uuid.Parse(raw)
		if err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "VALIDATION", "invalid company_id")
			return
		}
		params.CompanyID = &companyID
	}

	board, err := h.pipeline.Board(r.Context(), params)
	if err != nil {
		h.writeError(w, err, "build board")
		return
	}
	h.writeJSON(w, board)
}

// Report handles GET /reports/pipeline requests. The from and to
// parameters are dates formatted 2006-01-02.
func (h *CRMHandler) Report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := time.Parse("2006-01-02", q.Get("from"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "VALIDATION", "invalid from date")
		return
	}
	to, err := time.Parse("2006-01-02", q.Get("to"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "VALIDATION", "invalid to date")
		return
	}

	report, err := h.report.Report(r.Context(), models.DateRange{From: from, To: to}, q.Get("include_lost") == "true")
	if err != nil {
		h.writeError(w, err, "build report")
		return
	}
	h.writeJSON(w, report)
}

func (h *CRMHandler) suggestParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	first, err := intParam(r.URL.Query().Get("first"), 10)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "VALIDATION", "invalid first")
		return "", 0, false
	}
	return r.URL.Query().Get("q"), first, true
}

func (h *CRMHandler) writeJSON(w http.ResponseWriter, data any) {
	if err := WriteJSON(w, http.StatusOK, data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *CRMHandler) writeError(w http.ResponseWriter, err error, op string) {
	h.logger.Warn("Request failed", zap.String("op", op), zap.Error(err))
	if werr := WriteError(w, err); werr != nil {
		h.logger.Error("Failed to encode error response", zap.Error(werr))
	}
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
