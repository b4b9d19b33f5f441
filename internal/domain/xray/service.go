package xray

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pavankad/healthcare-ai-assistant/internal/domain/notes"
	"github.com/pavankad/healthcare-ai-assistant/internal/domain/patient"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/blobstore"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/llm"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

// Scorer returns a probability per pathology for an image.
type Scorer interface {
	Predict(ctx context.Context, fileName string, image []byte) (map[string]float64, error)
}

// Interpreter turns a chat transcript into a completion.
type Interpreter interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Patients looks up the patient an image belongs to.
type Patients interface {
	Get(ctx context.Context, id int64) (*patient.Patient, error)
}

// FindingCounter is told the severity of every finding filed.
type FindingCounter interface {
	CountFinding(severity string)
}

// Request is one uploaded image.
type Request struct {
	PatientID   int64
	FileName    string
	Image       []byte
	Provider    string
	PatientInfo string
}

type Service struct {
	patients    Patients
	blobs       blobstore.BlobStore
	scorer      Scorer
	interpreter Interpreter
	conditions  *record.Service
	notes       *record.Service
	counter     FindingCounter
	log         zerolog.Logger
	now         func() time.Time
}

type Deps struct {
	Patients    Patients
	Blobs       blobstore.BlobStore
	Scorer      Scorer
	Interpreter Interpreter
	Conditions  *record.Service
	Notes       *record.Service
	Counter     FindingCounter
}

func NewService(d Deps, logger zerolog.Logger) *Service {
	return &Service{
		patients:    d.Patients,
		blobs:       d.Blobs,
		scorer:      d.Scorer,
		interpreter: d.Interpreter,
		conditions:  d.Conditions,
		notes:       d.Notes,
		counter:     d.Counter,
		log:         logger.With().Str("component", "xray").Logger(),
		now:         time.Now,
	}
}

// Analyze runs the pipeline for one image. Conditions filed before a later
// stage fails are kept.
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	if !Allowed(blobstore.Ext(req.FileName)) {
		return nil, &record.ValidationError{Field: "image", Reason: "unsupported file type"}
	}
	if len(req.Image) == 0 {
		return nil, &record.ValidationError{Field: "image", Reason: "file is empty"}
	}

	p, err := s.patients.Get(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		provider = DefaultProvider
	}

	log := s.log.With().Int64("patient_id", req.PatientID).Logger()
	fail := func(stage string, err error) error {
		log.Error().Err(err).Str("stage", stage).Msg("x-ray analysis failed")
		return &AnalysisError{Err: err}
	}

	meta, err := s.blobs.Save(ctx, blobstore.CategoryXRay, req.FileName, bytes.NewReader(req.Image))
	if err != nil {
		return nil, fail("store", err)
	}
	log = log.With().Str("blob_id", meta.ID).Logger()

	scores, err := s.scorer.Predict(ctx, meta.ID, req.Image)
	if err != nil {
		return nil, fail("score", err)
	}

	now := s.now()
	interpretation, err := s.interpreter.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: userPrompt(scores, patientContext(p, req.PatientInfo, now))},
	})
	if err != nil {
		return nil, fail("interpret", err)
	}

	today := now.Format("2006-01-02")
	findings := Findings(scores)
	conditionIDs := make([]int64, 0, len(findings))
	for _, f := range findings {
		id, err := s.conditions.Create(ctx, req.PatientID, record.Fields{
			"name":           f.Pathology,
			"status":         "Active",
			"date_diagnosed": today,
			"severity":       f.Severity,
		})
		if err != nil {
			return nil, fail("condition", err)
		}
		conditionIDs = append(conditionIDs, id)
		if s.counter != nil {
			s.counter.CountFinding(f.Severity)
		}
	}

	noteID, err := s.notes.Create(ctx, req.PatientID, record.Fields{
		"date":     today,
		"provider": provider,
		"type":     notes.TypeXRayAnalysis,
		"note":     report(now, fmt.Sprintf("%s (%s)", meta.OriginalName, meta.ID), scores, findings, interpretation),
	})
	if err != nil {
		return nil, fail("note", err)
	}

	log.Info().Int64("note_id", noteID).Int("findings", len(findings)).Msg("x-ray analysis filed")
	return &Result{NoteID: noteID, ConditionIDs: conditionIDs, Findings: findings, Scores: scores}, nil
}

func patientContext(p *patient.Patient, extra string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", p.Name())
	if age := p.Age(now); age >= 0 {
		fmt.Fprintf(&b, "Age: %d\n", age)
	}
	fmt.Fprintf(&b, "Gender: %s", p.Gender)
	if extra = strings.TrimSpace(extra); extra != "" {
		b.WriteString("\n" + extra)
	}
	return b.String()
}
