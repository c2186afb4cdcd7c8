package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
	"github.com/Project-DevX/healthmate-sub000/internal/service"
)

var assessFlags struct {
	records         string
	from            string
	to              string
	output          string
	skipSpecialists bool
	noArchive       bool
}

var assessCmd = &cobra.Command{
	Use:   "assess <patient-id>",
	Short: "Run a lab-trend assessment for one patient",
	Long: `Assess reads a patient's laboratory history, computes trend statistics,
correlations and clinical patterns, consults the specialist panel and prints
the consolidated report as JSON.

Records come from a JSON file keyed by patient id (--records) or, when no
file is given, from the MongoDB document store named by CCAS_MONGO_URI.
Finished case files are kept in the local archive unless --no-archive is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runAssess,
}

func init() {
	f := assessCmd.Flags()
	f.StringVar(&assessFlags.records, "records", "", "JSON record file keyed by patient id")
	f.StringVar(&assessFlags.from, "from", "", "Only use records from this date (YYYY-MM-DD)")
	f.StringVar(&assessFlags.to, "to", "", "Only use records up to this date (YYYY-MM-DD)")
	f.StringVarP(&assessFlags.output, "output", "o", "", "Write the report to a file instead of stdout")
	f.BoolVar(&assessFlags.skipSpecialists, "skip-specialists", false, "Skip the specialist panel")
	f.BoolVar(&assessFlags.noArchive, "no-archive", false, "Do not archive the case file")
}

// assessmentReport is the printed form of a case file; raw records are omitted
type assessmentReport struct {
	CaseID           string                                   `json:"case_id"`
	PatientID        string                                   `json:"patient_id"`
	CreatedAt        time.Time                                `json:"created_at"`
	Observations     int                                      `json:"observations"`
	Interpretations  map[string]domain.ClinicalInterpretation `json:"interpretations"`
	Correlations     []domain.CorrelationResult               `json:"correlations"`
	Patterns         []domain.ClinicalPattern                 `json:"patterns"`
	InsufficientData []string                                 `json:"insufficient_data"`
	Opinions         map[string]domain.SpecialistOpinion      `json:"opinions"`
	Synthesis        *domain.Synthesis                        `json:"synthesis"`
}

func newAssessmentReport(pc *domain.PatientContext) assessmentReport {
	return assessmentReport{
		CaseID:           pc.CaseID,
		PatientID:        pc.PatientID,
		CreatedAt:        pc.CreatedAt,
		Observations:     pc.ObservationCount(),
		Interpretations:  pc.Features.Interpretations,
		Correlations:     pc.Features.Correlations,
		Patterns:         pc.Features.Patterns,
		InsufficientData: pc.Features.InsufficientData,
		Opinions:         pc.Opinions,
		Synthesis:        pc.Synthesis,
	}
}

func runAssess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	tr, err := domain.ParseDateRange(assessFlags.from, assessFlags.to)
	if err != nil {
		return err
	}

	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	records, closeRecords, err := env.openRecordSource(ctx, assessFlags.records)
	if err != nil {
		return err
	}
	defer closeRecords()

	var snapshots domain.SnapshotArchive
	if !assessFlags.noArchive {
		store, err := env.openArchive("")
		if err != nil {
			return err
		}
		defer store.Close()
		snapshots = store
	}

	svc, err := env.newAssessmentService(records, snapshots)
	if err != nil {
		return err
	}

	pc, err := svc.Assess(ctx, service.AssessmentRequest{
		PatientID:       args[0],
		TimeRange:       tr,
		SkipSpecialists: assessFlags.skipSpecialists,
	})
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(assessFlags.output, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := writeJSON(out, newAssessmentReport(pc)); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}
