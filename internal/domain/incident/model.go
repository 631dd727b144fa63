package incident

import (
	"time"

	"github.com/kalinga/kalinga/internal/domain/triage"
)

// AllFacilities is the filter value that matches every incident.
const AllFacilities = "All"

// StatusUnassigned is the only response status a generated incident carries.
const StatusUnassigned = "Unassigned"

// Record is a read-only projection of one generated patient.
type Record struct {
	ID             string       `json:"id"`
	ComplaintType  string       `json:"complaintType"`
	Facility       string       `json:"facility"`
	Location       string       `json:"location"`
	Reporter       string       `json:"reporter"`
	ReporterRole   string       `json:"role"`
	LoggedAt       time.Time    `json:"loggedAt"`
	Severity       triage.Level `json:"severity"`
	ResponseStatus string       `json:"responseStatus"`
}
