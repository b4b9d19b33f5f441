// Package sandbox generates reproducible synthetic patients with complete
// charts for demos, UI work and local development.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

// SeedConfig controls the volume of generated data. Per-patient counts are
// drawn uniformly from [Min, Max].
type SeedConfig struct {
	PatientCount int   `json:"patientCount"`
	Seed         int64 `json:"seed"`
	// Today anchors every generated date; zero means time.Now().
	Today time.Time `json:"-"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{PatientCount: 10}
}

// SeedResult summarizes one seed run.
type SeedResult struct {
	Patients      int           `json:"patients"`
	Medications   int           `json:"medications"`
	Conditions    int           `json:"conditions"`
	Diagnoses     int           `json:"diagnoses"`
	Notes         int           `json:"notes"`
	Allergies     int           `json:"allergies"`
	Immunizations int           `json:"immunizations"`
	Appointments  int           `json:"appointments"`
	PatientIDs    []int64       `json:"patientIds"`
	Duration      time.Duration `json:"duration"`
}

// Total returns the number of rows written.
func (r *SeedResult) Total() int {
	return r.Patients + r.Medications + r.Conditions + r.Diagnoses + r.Notes +
		r.Allergies + r.Immunizations + r.Appointments
}

// ---------------------------------------------------------------------------
// Code pools
// ---------------------------------------------------------------------------

type medicationDef struct {
	Name        string
	Dosages     []string
	Frequencies []string
}

type conditionDef struct {
	Name       string
	ICD        string
	Severities []string
}

type allergyDef struct {
	Allergen   string
	Reactions  []string
	Severities []string
}

type vaccineDef struct {
	Vaccine     string
	LotPrefixes []string
}

var (
	firstNamesMale = []string{
		"James", "Robert", "John", "Michael", "David", "William", "Richard",
		"Charles", "Joseph", "Thomas", "Christopher", "Daniel", "Paul", "Mark",
		"Donald", "Steven", "Andrew", "Joshua", "Kenneth", "Kevin",
	}
	firstNamesFemale = []string{
		"Mary", "Patricia", "Jennifer", "Linda", "Elizabeth", "Barbara",
		"Susan", "Jessica", "Sarah", "Karen", "Lisa", "Nancy", "Betty",
		"Helen", "Sandra", "Donna", "Carol", "Ruth", "Sharon", "Michelle",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia",
		"Miller", "Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez",
		"Gonzalez", "Wilson", "Anderson", "Thomas", "Taylor", "Moore",
		"Jackson", "Martin",
	}

	streetNames = []string{"Main", "Oak", "Pine", "Elm", "First", "Second"}
	streetTypes = []string{"St", "Ave", "Dr", "Ln"}
	cities      = []string{
		"New York", "Los Angeles", "Chicago", "Houston", "Phoenix",
		"Philadelphia", "San Antonio", "San Diego", "Dallas", "San Jose",
		"Austin", "Jacksonville", "Columbus", "Charlotte", "Seattle", "Denver",
	}
	states   = []string{"NY", "CA", "IL", "TX", "AZ", "PA", "FL", "OH", "NC", "WA", "CO", "DC"}
	insurers = []struct{ Name, Prefix string }{
		{"BlueCross BlueShield", "BC"}, {"Aetna", "AE"}, {"Cigna", "CG"},
		{"United Healthcare", "UH"}, {"Kaiser Permanente", "KP"},
	}

	medications = []medicationDef{
		{"Lisinopril", []string{"5mg", "10mg", "20mg"}, []string{"Once daily", "Twice daily"}},
		{"Metformin", []string{"500mg", "850mg", "1000mg"}, []string{"Once daily", "Twice daily"}},
		{"Atorvastatin", []string{"10mg", "20mg", "40mg"}, []string{"Once daily"}},
		{"Amlodipine", []string{"2.5mg", "5mg", "10mg"}, []string{"Once daily"}},
		{"Omeprazole", []string{"20mg", "40mg"}, []string{"Once daily", "Twice daily"}},
		{"Hydrochlorothiazide", []string{"12.5mg", "25mg"}, []string{"Once daily"}},
		{"Aspirin", []string{"81mg", "325mg"}, []string{"Once daily"}},
		{"Levothyroxine", []string{"25mcg", "50mcg", "75mcg", "100mcg"}, []string{"Once daily"}},
		{"Sertraline", []string{"25mg", "50mg", "100mg"}, []string{"Once daily"}},
		{"Losartan", []string{"25mg", "50mg", "100mg"}, []string{"Once daily"}},
	}

	conditions = []conditionDef{
		{"Hypertension", "I10", []string{"Mild", "Moderate", "Severe"}},
		{"Type 2 Diabetes", "E11", []string{"Controlled", "Moderate", "Severe"}},
		{"Hyperlipidemia", "E78.5", []string{"Mild", "Moderate", "Severe"}},
		{"Obesity", "E66.9", []string{"Mild", "Moderate", "Severe"}},
		{"Depression", "F32.9", []string{"Mild", "Moderate", "Severe"}},
		{"Asthma", "J45.9", []string{"Mild", "Moderate", "Severe"}},
		{"Hypothyroidism", "E03.9", []string{"Mild", "Moderate"}},
		{"Osteoarthritis", "M19.9", []string{"Mild", "Moderate", "Severe"}},
		{"GERD", "K21.9", []string{"Mild", "Moderate", "Severe"}},
		{"Anxiety Disorder", "F41.9", []string{"Mild", "Moderate", "Severe"}},
	}

	allergies = []allergyDef{
		{"Penicillin", []string{"Rash", "Hives", "Swelling"}, []string{"Mild", "Moderate", "Severe"}},
		{"Shellfish", []string{"Swelling", "Difficulty breathing", "Anaphylaxis"}, []string{"Moderate", "Severe"}},
		{"Latex", []string{"Contact dermatitis", "Rash"}, []string{"Mild", "Moderate"}},
		{"Sulfa drugs", []string{"Rash", "Nausea"}, []string{"Mild", "Moderate"}},
		{"Nuts", []string{"Swelling", "Breathing difficulty"}, []string{"Moderate", "Severe"}},
		{"Iodine", []string{"Rash", "Swelling"}, []string{"Mild", "Moderate"}},
		{"Eggs", []string{"Hives", "Digestive issues"}, []string{"Mild", "Moderate"}},
		{"Pollen", []string{"Sneezing", "Itchy eyes"}, []string{"Mild", "Moderate"}},
		{"Codeine", []string{"Nausea", "Dizziness"}, []string{"Mild", "Moderate"}},
	}

	vaccines = []vaccineDef{
		{"COVID-19", []string{"CV", "PF", "MD"}},
		{"Influenza", []string{"FL", "IN", "FU"}},
		{"Tetanus", []string{"TT", "TD", "TP"}},
		{"Pneumonia", []string{"PN", "PC", "PP"}},
		{"Shingles", []string{"SH", "ZO", "HZ"}},
		{"Hepatitis B", []string{"HB", "HP", "HE"}},
		{"MMR", []string{"MM", "MR", "MS"}},
		{"HPV", []string{"HP", "GR", "CV"}},
	}

	providers = []string{
		"Dr. Smith", "Dr. Johnson", "Dr. Williams", "Dr. Brown", "Dr. Jones",
		"Dr. Garcia", "Dr. Miller", "Dr. Davis", "Dr. Rodriguez", "Dr. Martinez",
		"Dr. Wilson", "Dr. Anderson", "Dr. Taylor", "Dr. Thomas", "Dr. Moore",
	}

	appointmentTypes = []string{
		"Annual Physical", "Follow-up", "Consultation", "Urgent Care", "Specialist Referral",
		"Lab Review", "Procedure", "Screening", "Preventive Care", "Chronic Care Management",
	}
	pastAppointmentStatuses = []string{"Completed", "Cancelled", "No-show"}

	noteTypes = []string{"Progress Note", "Consultation", "Assessment", "Discharge Summary", "History"}
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic request bodies for every record type.
type DataGenerator struct {
	rng   *rand.Rand
	today time.Time
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64, today time.Time) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if today.IsZero() {
		today = time.Now()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed)), today: today}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) between(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

func (g *DataGenerator) daysAgo(max int) string {
	return g.today.AddDate(0, 0, -g.between(1, max)).Format("2006-01-02")
}

func (g *DataGenerator) daysAhead(max int) string {
	return g.today.AddDate(0, 0, g.between(1, max)).Format("2006-01-02")
}

func (g *DataGenerator) phone() string {
	return fmt.Sprintf("(%03d) %03d-%04d", g.between(200, 999), g.between(200, 999), g.between(1000, 9999))
}

// sample returns n distinct indexes below size.
func (g *DataGenerator) sample(size, n int) []int {
	if n > size {
		n = size
	}
	return g.rng.Perm(size)[:n]
}

// GeneratePatient returns a patient body. Patients are adults aged 18 to 85.
func (g *DataGenerator) GeneratePatient() record.Fields {
	gender := "Male"
	first := g.pick(firstNamesMale)
	if g.rng.Intn(2) == 0 {
		gender = "Female"
		first = g.pick(firstNamesFemale)
	}
	last := g.pick(lastNames)
	dob := g.today.AddDate(-g.between(18, 85), 0, -g.rng.Intn(365))
	ins := insurers[g.rng.Intn(len(insurers))]

	return record.Fields{
		"first_name":    first,
		"last_name":     last,
		"date_of_birth": dob.Format("2006-01-02"),
		"gender":        gender,
		"phone":         g.phone(),
		"email":         fmt.Sprintf("%s.%s@email.com", first, last),
		"address": fmt.Sprintf("%d %s %s, %s, %s %05d",
			g.between(100, 9999), g.pick(streetNames), g.pick(streetTypes),
			g.pick(cities), g.pick(states), g.between(10000, 99999)),
		"emergency_contact": fmt.Sprintf("%s %s - %s", g.pick(firstNamesFemale), last, g.phone()),
		"insurance":         fmt.Sprintf("%s - Policy #%s%06d", ins.Name, ins.Prefix, g.between(100000, 999999)),
	}
}

func (g *DataGenerator) conditionFields(c conditionDef) record.Fields {
	return record.Fields{
		"name":           c.Name,
		"icd_code":       c.ICD,
		"status":         "Active",
		"date_diagnosed": g.daysAgo(5 * 365),
		"severity":       g.pick(c.Severities),
	}
}

func (g *DataGenerator) medicationFields(m medicationDef) record.Fields {
	return record.Fields{
		"name":               m.Name,
		"dosage":             g.pick(m.Dosages),
		"frequency":          g.pick(m.Frequencies),
		"start_date":         g.daysAgo(2 * 365),
		"prescribing_doctor": g.pick(providers),
		"status":             "Active",
	}
}

func (g *DataGenerator) allergyFields(a allergyDef) record.Fields {
	return record.Fields{
		"allergen":        a.Allergen,
		"reaction":        g.pick(a.Reactions),
		"severity":        g.pick(a.Severities),
		"date_identified": g.daysAgo(10 * 365),
	}
}

func (g *DataGenerator) immunizationFields(v vaccineDef) record.Fields {
	return record.Fields{
		"vaccine":           v.Vaccine,
		"date_administered": g.daysAgo(3 * 365),
		"provider":          g.pick(providers),
		"lot_number":        fmt.Sprintf("%s%06d", g.pick(v.LotPrefixes), g.between(100000, 999999)),
	}
}

// GenerateDiagnosis builds a diagnosis from the patient's condition names.
func (g *DataGenerator) GenerateDiagnosis(conditionNames []string) record.Fields {
	primary := g.pick(conditionNames)
	f := record.Fields{
		"date":              g.daysAgo(365),
		"primary_diagnosis": primary,
		"provider":          g.pick(providers),
		"notes": fmt.Sprintf("Patient showing %s with current treatment plan.",
			g.pick([]string{"improvement", "stable condition", "good response to treatment"})),
	}
	if secondary := g.pick(conditionNames); secondary != primary && g.rng.Intn(2) == 0 {
		f["secondary_diagnosis"] = secondary
	}
	return f
}

func (g *DataGenerator) GenerateNote() record.Fields {
	texts := []string{
		fmt.Sprintf("Patient reports feeling %s. %s.",
			g.pick([]string{"well", "better", "stable", "improved"}),
			g.pick([]string{"Continue current medications", "Adjusting dosage as needed", "Monitoring closely", "No changes to treatment plan"})),
		fmt.Sprintf("%s %s. %s.",
			g.pick([]string{"Blood pressure", "Blood sugar", "Cholesterol levels", "Vital signs"}),
			g.pick([]string{"stable", "improving", "within normal range", "well controlled"}),
			g.pick([]string{"Patient compliant with medication", "Good adherence to treatment", "Following dietary recommendations"})),
		fmt.Sprintf("Follow-up %s. %s.",
			g.pick([]string{"in 3 months", "in 6 months", "as needed", "in 1 month"}),
			g.pick([]string{"Continue monitoring", "Lab work ordered", "Referral discussed", "Patient education provided"})),
	}
	return record.Fields{
		"date":     g.daysAgo(365),
		"provider": g.pick(providers),
		"type":     g.pick(noteTypes),
		"note":     g.pick(texts),
	}
}

// GenerateAppointment mixes past appointments with a final status and
// upcoming scheduled ones.
func (g *DataGenerator) GenerateAppointment() record.Fields {
	date, status := g.daysAhead(180), "Scheduled"
	if g.rng.Intn(2) == 0 {
		date, status = g.daysAgo(180), g.pick(pastAppointmentStatuses)
	}
	kind := g.pick(appointmentTypes)
	return record.Fields{
		"date":     date,
		"time":     fmt.Sprintf("%02d:%s", g.between(8, 17), g.pick([]string{"00", "15", "30", "45"})),
		"provider": g.pick(providers),
		"type":     kind,
		"status":   status,
		"notes": fmt.Sprintf("%s appointment for %s", kind,
			g.pick([]string{"routine care", "follow-up", "assessment", "monitoring"})),
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// PatientCreator stores a patient body and returns its id.
type PatientCreator interface {
	Create(ctx context.Context, f record.Fields) (int64, error)
}

// RecordCreator stores a record body for a patient and returns its id.
type RecordCreator interface {
	Create(ctx context.Context, patientID int64, f record.Fields) (int64, error)
}

// Targets are the services the seeder writes through, so generated rows go
// through the same validation as API requests.
type Targets struct {
	Patients      PatientCreator
	Medications   RecordCreator
	Conditions    RecordCreator
	Diagnoses     RecordCreator
	Notes         RecordCreator
	Allergies     RecordCreator
	Immunizations RecordCreator
	Appointments  RecordCreator
}

type Seeder struct {
	generator *DataGenerator
	config    SeedConfig
	log       zerolog.Logger
}

func NewSeeder(config SeedConfig, logger zerolog.Logger) *Seeder {
	return &Seeder{
		generator: NewDataGenerator(config.Seed, config.Today),
		config:    config,
		log:       logger,
	}
}

// Run creates PatientCount patients, each with a full chart. It stops at the
// first failed write.
func (s *Seeder) Run(ctx context.Context, t Targets) (*SeedResult, error) {
	start := time.Now()
	g := s.generator
	result := &SeedResult{}

	for i := 0; i < s.config.PatientCount; i++ {
		body := g.GeneratePatient()
		pid, err := t.Patients.Create(ctx, body)
		if err != nil {
			return result, fmt.Errorf("seed patient %d: %w", i+1, err)
		}
		result.Patients++
		result.PatientIDs = append(result.PatientIDs, pid)

		create := func(target RecordCreator, kind string, f record.Fields, count *int) error {
			if _, err := target.Create(ctx, pid, f); err != nil {
				return fmt.Errorf("seed %s for patient %d: %w", kind, pid, err)
			}
			*count++
			return nil
		}

		var conditionNames []string
		for _, idx := range g.sample(len(conditions), g.between(1, 4)) {
			c := conditions[idx]
			conditionNames = append(conditionNames, c.Name)
			if err := create(t.Conditions, "condition", g.conditionFields(c), &result.Conditions); err != nil {
				return result, err
			}
		}
		for _, idx := range g.sample(len(medications), g.between(1, 5)) {
			if err := create(t.Medications, "medication", g.medicationFields(medications[idx]), &result.Medications); err != nil {
				return result, err
			}
		}
		for _, idx := range g.sample(len(allergies), g.between(0, 3)) {
			if err := create(t.Allergies, "allergy", g.allergyFields(allergies[idx]), &result.Allergies); err != nil {
				return result, err
			}
		}
		for _, idx := range g.sample(len(vaccines), g.between(2, 6)) {
			if err := create(t.Immunizations, "immunization", g.immunizationFields(vaccines[idx]), &result.Immunizations); err != nil {
				return result, err
			}
		}
		for n := g.between(1, 3); n > 0; n-- {
			if err := create(t.Diagnoses, "diagnosis", g.GenerateDiagnosis(conditionNames), &result.Diagnoses); err != nil {
				return result, err
			}
		}
		for n := g.between(2, 5); n > 0; n-- {
			if err := create(t.Notes, "note", g.GenerateNote(), &result.Notes); err != nil {
				return result, err
			}
		}
		for n := g.between(2, 4); n > 0; n-- {
			if err := create(t.Appointments, "appointment", g.GenerateAppointment(), &result.Appointments); err != nil {
				return result, err
			}
		}

		s.log.Debug().Int64("patient_id", pid).
			Str("name", fmt.Sprint(body["first_name"], " ", body["last_name"])).
			Msg("seeded patient")
	}

	result.Duration = time.Since(start)
	s.log.Info().Int("patients", result.Patients).Int("rows", result.Total()).
		Dur("duration", result.Duration).Msg("seed complete")
	return result, nil
}
