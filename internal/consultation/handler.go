package consultation

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cardiovision/internal/identity"
	"cardiovision/internal/risk"
	"cardiovision/pkg/logging"
)

const maxBodyBytes = 1 << 20

// ReportRenderer turns a stored assessment into a PDF.
type ReportRenderer interface {
	Render(a Assessment) ([]byte, error)
}

type Handler struct {
	svc     Service
	reports ReportRenderer
	logger  *logging.Logger
}

// NewHandler wires the HTTP surface. reports may be nil, in which case the
// PDF route answers 503.
func NewHandler(svc Service, reports ReportRenderer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, reports: reports, logger: logger}
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/assessments/heart", h.assessHandler(risk.KindHeart))
	r.Post("/assessments/stroke", h.assessHandler(risk.KindStroke))
	r.Get("/assessments", h.ListAssessments)
	r.Get("/assessments/{id}", h.GetAssessment)
	r.Get("/assessments/{id}/report.pdf", h.AssessmentReport)

	r.Post("/medications/analysis", h.AnalyzeMedications)
	r.Get("/medications/analysis", h.ListMedicationAnalyses)

	r.Post("/chat", h.Chat)
	r.Get("/chat", h.ChatHistory)
	r.Delete("/chat", h.ClearChat)
}

func (h *Handler) assessHandler(kind risk.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := identity.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		raw, err := readFields(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request")
			return
		}

		res, err := h.svc.Assess(r.Context(), owner, kind, raw)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	owner, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	kind := risk.Kind(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind"))))
	items, err := h.svc.RecentAssessments(r.Context(), owner, kind, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []*Assessment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"assessments": items})
}

func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAssessment(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) AssessmentReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "reports are not available")
		return
	}
	a, ok := h.loadAssessment(w, r)
	if !ok {
		return
	}

	pdf, err := h.reports.Render(*a)
	if err != nil {
		h.logger.Error("failed to render report", "id", a.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_assessment_%s.pdf"`, a.Kind, a.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) loadAssessment(w http.ResponseWriter, r *http.Request) (*Assessment, bool) {
	owner, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "assessment not found")
		return nil, false
	}
	a, err := h.svc.Assessment(r.Context(), owner, id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return a, true
}

func (h *Handler) AnalyzeMedications(w http.ResponseWriter, r *http.Request) {
	owner, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	fields, err := readFields(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	m, err := h.svc.AnalyzeMedications(r.Context(), owner, fields["medications"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) ListMedicationAnalyses(w http.ResponseWriter, r *http.Request) {
	owner, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.svc.RecentMedicationAnalyses(r.Context(), owner, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []*MedicationAnalysis{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": items})
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	owner, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	fields, err := readFields(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	res, err := h.svc.Chat(r.Context(), owner, fields["message"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	owner, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.svc.ChatHistory(r.Context(), owner, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []*ChatExchange{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": items})
}

func (h *Handler) ClearChat(w http.ResponseWriter, r *http.Request) {
	owner, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	n, err := h.svc.ClearChat(r.Context(), owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, verr.Message)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "assessment not found")
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "method", r.Method, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// readFields flattens a JSON object or a form body into string fields. Form
// keys keep their first value; JSON booleans become "yes"/"no".
func readFields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, err
		}
		if nested, ok := body["answers"].(map[string]any); ok {
			body = nested
		}
		out := make(map[string]string, len(body))
		for k, v := range body {
			switch val := v.(type) {
			case string:
				out[k] = val
			case bool:
				if val {
					out[k] = "yes"
				} else {
					out[k] = "no"
				}
			}
		}
		return out, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(r.PostForm))
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out, nil
}

func limitParam(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid("limit must be a whole number")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
