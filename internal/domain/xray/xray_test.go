package xray

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavankad/healthcare-ai-assistant/internal/domain/clinical"
	"github.com/pavankad/healthcare-ai-assistant/internal/domain/notes"
	"github.com/pavankad/healthcare-ai-assistant/internal/domain/patient"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/blobstore"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/llm"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/middleware"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

type fakeScorer struct {
	scores map[string]float64
	err    error
	gotID  string
}

func (f *fakeScorer) Predict(_ context.Context, fileName string, _ []byte) (map[string]float64, error) {
	f.gotID = fileName
	return f.scores, f.err
}

type fakeInterpreter struct {
	text string
	err  error
	msgs []llm.Message
}

func (f *fakeInterpreter) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	f.msgs = msgs
	return f.text, f.err
}

type countingSeverities map[string]int

func (c countingSeverities) CountFinding(severity string) { c[severity]++ }

type fixture struct {
	svc         *Service
	patientID   int64
	blobs       *blobstore.InMemoryBlobStore
	scorer      *fakeScorer
	interpreter *fakeInterpreter
	conditions  *record.Service
	notes       *record.Service
	counts      countingSeverities
}

func newFixture(t *testing.T, scores map[string]float64) *fixture {
	t.Helper()
	patients := patient.NewService(patient.NewMemoryRepo(), patient.Sections{}, zerolog.Nop())
	pid, err := patients.Create(context.Background(), record.Fields{
		"first_name": "Maria", "last_name": "Garcia", "date_of_birth": "1970-03-20", "gender": "Female",
	})
	require.NoError(t, err)

	f := &fixture{
		patientID:   pid,
		blobs:       blobstore.NewInMemoryBlobStore(),
		scorer:      &fakeScorer{scores: scores},
		interpreter: &fakeInterpreter{text: "Findings consistent with pleural effusion."},
		conditions:  record.NewService(clinical.ConditionSchema, record.NewMemoryRepo(), zerolog.Nop()),
		notes:       notes.NewService(record.NewMemoryRepo(), zerolog.Nop()),
		counts:      countingSeverities{},
	}
	f.svc = NewService(Deps{
		Patients:    patients,
		Blobs:       f.blobs,
		Scorer:      f.scorer,
		Interpreter: f.interpreter,
		Conditions:  f.conditions,
		Notes:       f.notes,
		Counter:     f.counts,
	}, zerolog.Nop())
	f.svc.now = func() time.Time { return time.Date(2024, 5, 6, 14, 30, 0, 0, time.UTC) }
	return f
}

func (f *fixture) request() Request {
	return Request{PatientID: f.patientID, FileName: "chest.png", Image: []byte("png-bytes")}
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, "Severe", Severity(0.82))
	assert.Equal(t, "Severe", Severity(0.7))
	assert.Equal(t, "Moderate", Severity(0.69))
	assert.Equal(t, "Moderate", Severity(0.5))
	assert.Equal(t, "Mild", Severity(0.31))
}

func TestFindings_ThresholdAndOrder(t *testing.T) {
	findings := Findings(map[string]float64{
		"Effusion":     0.82,
		"Atelectasis":  0.45,
		"Cardiomegaly": 0.45,
		"Nodule":       0.3,
		"Mass":         0.05,
	})
	require.Len(t, findings, 3)
	assert.Equal(t, "Effusion", findings[0].Pathology)
	assert.Equal(t, "Atelectasis", findings[1].Pathology)
	assert.Equal(t, "Cardiomegaly", findings[2].Pathology)
	assert.Equal(t, "Mild", findings[2].Severity)
}

func TestFindings_NoneIsEmptySlice(t *testing.T) {
	findings := Findings(map[string]float64{"Mass": 0.1})
	assert.NotNil(t, findings)
	assert.Empty(t, findings)
}

func TestAllowed(t *testing.T) {
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".dcm"} {
		assert.True(t, Allowed(ext), ext)
	}
	assert.False(t, Allowed(".gif"))
	assert.False(t, Allowed(""))
}

func TestAnalyze_SevereFinding(t *testing.T) {
	f := newFixture(t, map[string]float64{"Effusion": 0.82, "Mass": 0.12})
	ctx := context.Background()

	res, err := f.svc.Analyze(ctx, f.request())
	require.NoError(t, err)

	require.Len(t, res.ConditionIDs, 1)
	cond, err := f.conditions.Get(ctx, res.ConditionIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "Effusion", cond["name"])
	assert.Equal(t, "Severe", cond["severity"])
	assert.Equal(t, "Active", cond["status"])
	assert.Equal(t, "2024-05-06", cond["date_diagnosed"])

	note, err := f.notes.Get(ctx, res.NoteID)
	require.NoError(t, err)
	assert.Equal(t, notes.TypeXRayAnalysis, note["type"])
	assert.Equal(t, DefaultProvider, note["provider"])
	text := note.String("note")
	assert.Contains(t, text, "CHEST X-RAY ANALYSIS REPORT")
	assert.Contains(t, text, "Analysis Date: 2024-05-06 14:30:00")
	assert.Contains(t, text, "RAW MODEL RESULTS")
	assert.Contains(t, text, "Mass: 0.1200")
	assert.Contains(t, text, "- Effusion: 0.8200 (Severe)")
	assert.Contains(t, text, "Findings consistent with pleural effusion.")
	assert.Contains(t, text, "DISCLAIMER")

	assert.Equal(t, 1, f.counts["Severe"])
	assert.Equal(t, 1, f.blobs.Count())
	assert.True(t, strings.HasSuffix(f.scorer.gotID, ".png"))
}

func TestAnalyze_PromptCarriesScoresAndPatient(t *testing.T) {
	f := newFixture(t, map[string]float64{"Effusion": 0.82, "Atelectasis": 0.2})
	req := f.request()
	req.PatientInfo = "Smoker, 30 pack-years"

	_, err := f.svc.Analyze(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, f.interpreter.msgs, 2)
	assert.Equal(t, llm.RoleSystem, f.interpreter.msgs[0].Role)
	prompt := f.interpreter.msgs[1].Content
	assert.Contains(t, prompt, "- Atelectasis: 0.2000\n- Effusion: 0.8200")
	assert.Contains(t, prompt, "Name: Maria Garcia")
	assert.Contains(t, prompt, "Age: 54")
	assert.Contains(t, prompt, "Gender: Female")
	assert.Contains(t, prompt, "Smoker, 30 pack-years")
}

func TestAnalyze_NoFindings(t *testing.T) {
	f := newFixture(t, map[string]float64{"Mass": 0.1})
	ctx := context.Background()

	res, err := f.svc.Analyze(ctx, f.request())
	require.NoError(t, err)
	assert.Empty(t, res.ConditionIDs)

	note, err := f.notes.Get(ctx, res.NoteID)
	require.NoError(t, err)
	assert.Contains(t, note.String("note"), "No significant findings")
}

func TestAnalyze_UnsupportedType(t *testing.T) {
	f := newFixture(t, nil)
	req := f.request()
	req.FileName = "scan.gif"

	_, err := f.svc.Analyze(context.Background(), req)
	var ve *record.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "image", ve.Field)
	assert.Equal(t, 0, f.blobs.Count())
}

func TestAnalyze_UnknownPatient(t *testing.T) {
	f := newFixture(t, nil)
	req := f.request()
	req.PatientID = 404

	_, err := f.svc.Analyze(context.Background(), req)
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestAnalyze_ScorerFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.scorer.err = errors.New("connection refused")

	_, err := f.svc.Analyze(context.Background(), f.request())
	var ae *AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "X-ray analysis failed: connection refused", err.Error())

	code, msg := middleware.StatusFor(err)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "X-ray analysis failed: connection refused", msg)
}

func TestAnalyze_InterpreterFailureFilesNothing(t *testing.T) {
	f := newFixture(t, map[string]float64{"Effusion": 0.82})
	f.interpreter.err = llm.ErrMissingAPIKey
	ctx := context.Background()

	_, err := f.svc.Analyze(ctx, f.request())
	require.ErrorIs(t, err, llm.ErrMissingAPIKey)

	rows, err := f.notes.List(ctx, f.patientID)
	require.NoError(t, err)
	assert.Empty(t, rows)
	rows, err = f.conditions.List(ctx, f.patientID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func multipartRequest(t *testing.T, fileName string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if fileName != "" {
		part, err := w.CreateFormFile("image", fileName)
		require.NoError(t, err)
		part.Write([]byte("image-bytes"))
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/patients/1/xray", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestHandler_Analyze(t *testing.T) {
	f := newFixture(t, map[string]float64{"Effusion": 0.82})
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(multipartRequest(t, "chest.jpg", map[string]string{"provider": "Dr. Reyes"}), rec)
	c.SetParamNames("patient_id")
	c.SetParamValues("1")

	require.NoError(t, NewHandler(f.svc).Analyze(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
	assert.Contains(t, rec.Body.String(), `"findings":[{"pathology":"Effusion","score":0.82,"severity":"Severe"}]`)

	note, err := f.notes.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Reyes", note["provider"])
}

func TestHandler_MissingImage(t *testing.T) {
	f := newFixture(t, nil)
	e := echo.New()
	c := e.NewContext(multipartRequest(t, "", map[string]string{"provider": "Dr. Reyes"}), httptest.NewRecorder())
	c.SetParamNames("patient_id")
	c.SetParamValues("1")

	err := NewHandler(f.svc).Analyze(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}
