package consultation

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardiovision/internal/identity"
	"cardiovision/pkg/logging"
)

type stubRenderer struct {
	err error
}

func (s stubRenderer) Render(a Assessment) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-1.4 " + a.ID.String()), nil
}

type handlerEnv struct {
	router http.Handler
	repo   *memoryRepo
	ai     *fakeAI
}

func newHandlerEnv(t *testing.T, renderer ReportRenderer) *handlerEnv {
	t.Helper()
	repo := &memoryRepo{}
	ai := okAI("generated narrative")
	svc := newTestService(repo, ai, nil)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(identity.Middleware(identity.HeaderProvider{}, logging.Discard()))
		RegisterRoutes(r, NewHandler(svc, renderer, logging.Discard()))
	})
	return &handlerEnv{router: r, repo: repo, ai: ai}
}

func (e *handlerEnv) do(t *testing.T, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(identity.HeaderUserID, "user-1")
	req.Header.Set(identity.HeaderUserName, "Ada Lovelace")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandlerHeartAssessmentForm(t *testing.T) {
	env := newHandlerEnv(t, nil)
	form := url.Values{"chest_pain": {"yes", "no"}, "high_bp": {"yes"}, "smoking": {"yes"}, "fatigue": {"no"}}

	rec := env.do(t, http.MethodPost, "/api/assessments/heart", "application/x-www-form-urlencoded", form.Encode())

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 40, body["score"])
	assert.Equal(t, "Moderate", body["tier"])
	assert.Equal(t, "generated narrative", body["narrative"])
	assert.Equal(t, "ok", body["ai_status"])
	assert.NotEmpty(t, body["record_id"])
	require.Len(t, env.repo.assessments, 1)
	assert.Equal(t, "user-1", env.repo.assessments[0].OwnerID)
}

func TestHandlerStrokeAssessmentJSON(t *testing.T) {
	env := newHandlerEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/assessments/stroke", "application/json",
		`{"answers": {"weakness_numbness": "yes", "speech_difficulty": true, "vision_problems": false}}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 45, body["score"])
	assert.Equal(t, "stroke", body["kind"])
}

func TestHandlerMalformedJSON(t *testing.T) {
	env := newHandlerEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/assessments/heart", "application/json", `{"chest_pain":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.repo.assessments)
}

func TestHandlerRequiresIdentity(t *testing.T) {
	env := newHandlerEnv(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerMedicationValidation(t *testing.T) {
	env := newHandlerEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/medications/analysis", "application/x-www-form-urlencoded", "medications=+++")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Please enter at least one medication.", decodeBody(t, rec)["error"])
	assert.Zero(t, env.ai.calls)
}

func TestHandlerMedicationAnalysis(t *testing.T) {
	env := newHandlerEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/medications/analysis", "application/json", `{"medications":"aspirin, metoprolol"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "aspirin, metoprolol", decodeBody(t, rec)["medications"])

	rec = env.do(t, http.MethodGet, "/api/medications/analysis", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["analyses"], 1)
}

func TestHandlerChatRoundTrip(t *testing.T) {
	env := newHandlerEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/chat", "application/json", `{"message":"Is salt bad?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "generated narrative", decodeBody(t, rec)["response"])

	rec = env.do(t, http.MethodGet, "/api/chat", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["messages"], 1)

	rec = env.do(t, http.MethodDelete, "/api/chat", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["deleted"])
}

func TestHandlerChatEmptyMessage(t *testing.T) {
	env := newHandlerEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/chat", "application/json", `{"message":"  "}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Please enter a message", decodeBody(t, rec)["error"])
}

func TestHandlerListAssessments(t *testing.T) {
	env := newHandlerEnv(t, nil)
	env.do(t, http.MethodPost, "/api/assessments/heart", "application/json", `{"chest_pain":"yes"}`)
	env.do(t, http.MethodPost, "/api/assessments/stroke", "application/json", `{}`)

	rec := env.do(t, http.MethodGet, "/api/assessments?kind=heart&limit=10", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["assessments"], 1)

	rec = env.do(t, http.MethodGet, "/api/assessments?kind=lungs", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/assessments?kind=heart&limit=ten", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerGetAssessment(t *testing.T) {
	env := newHandlerEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/api/assessments/heart", "application/json", `{"chest_pain":"yes"}`)
	id := decodeBody(t, rec)["record_id"].(string)

	rec = env.do(t, http.MethodGet, "/api/assessments/"+id, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decodeBody(t, rec)["id"])

	rec = env.do(t, http.MethodGet, "/api/assessments/not-a-uuid", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/assessments/00000000-0000-0000-0000-000000000001", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerAssessmentReport(t *testing.T) {
	env := newHandlerEnv(t, stubRenderer{})
	rec := env.do(t, http.MethodPost, "/api/assessments/heart", "application/json", `{"chest_pain":"yes"}`)
	id := decodeBody(t, rec)["record_id"].(string)

	rec = env.do(t, http.MethodGet, "/api/assessments/"+id+"/report.pdf", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "heart_assessment_"+id+".pdf")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
}

func TestHandlerAssessmentReportFailures(t *testing.T) {
	t.Run("no renderer", func(t *testing.T) {
		env := newHandlerEnv(t, nil)
		rec := env.do(t, http.MethodGet, "/api/assessments/00000000-0000-0000-0000-000000000001/report.pdf", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("render error", func(t *testing.T) {
		env := newHandlerEnv(t, stubRenderer{err: errors.New("font missing")})
		rec := env.do(t, http.MethodPost, "/api/assessments/stroke", "application/json", `{}`)
		id := decodeBody(t, rec)["record_id"].(string)

		rec = env.do(t, http.MethodGet, "/api/assessments/"+id+"/report.pdf", "", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandlerStorageFailure(t *testing.T) {
	env := newHandlerEnv(t, nil)
	env.repo.saveErr = errors.New("db down")

	rec := env.do(t, http.MethodPost, "/api/assessments/heart", "application/json", `{}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeBody(t, rec)["error"])
}

func TestReadFieldsFirstFormValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("chest_pain=yes&chest_pain=no"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	fields, err := readFields(httptest.NewRecorder(), req)

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"chest_pain": "yes"}, fields)
}
