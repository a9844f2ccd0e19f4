package plan

// Plan identifies a subscription tier.
type Plan string

const (
	Gratuito     Plan = "gratuito"
	Professor    Plan = "professor"
	GrupoEscolar Plan = "grupo_escolar"
	Admin        Plan = "admin"
)

const (
	// Unlimited indicates no monthly quota for a plan (-1 chosen for SQL compatibility).
	Unlimited int64 = -1
)

// Feature represents a plan-specific capability that can be enabled/disabled.
type Feature string

const (
	FeatureExportPDF     Feature = "export_pdf"
	FeatureExportWord    Feature = "export_word"
	FeatureEditing       Feature = "editing"
	FeatureCalendar      Feature = "calendar"
	FeatureCollaboration Feature = "collaboration"
)

// Entry holds the catalog data for a single plan.
type Entry struct {
	Quota    int64     `yaml:"quota"`
	Label    string    `yaml:"label"`
	Features []Feature `yaml:"features"`
}

// Limits is a snapshot of monthly quotas keyed by plan, suitable for
// passing into a store-level conditional update.
type Limits map[Plan]int64

// QuotaFor returns the monthly quota for a plan, failing closed to zero
// for plans the snapshot does not know.
func (l Limits) QuotaFor(p Plan) int64 {
	if q, ok := l[p]; ok {
		return q
	}
	return 0
}
