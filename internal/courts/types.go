// Package courts defines the core types and collaborator interfaces for the
// court-records scraping engine. It owns the data model shared across the
// session state machine, the worker pool, and the export pipeline.
package courts

// AttorneyQuery identifies one attorney to search for. It is read-only input
// and one instance is handed to each scraping session.
type AttorneyQuery struct {
	FirstName string `mapstructure:"first_name" json:"first_name"`
	LastName  string `mapstructure:"last_name" json:"last_name"`
}

// FullName returns "FIRST LAST" as shown on the portal.
func (q AttorneyQuery) FullName() string {
	return q.FirstName + " " + q.LastName
}

// CaseRecord is the result of extracting a single case detail page.
// CaseNumber, FileDate, JudicialOfficer and CaseStatus are required; a
// record missing any of them is invalid and must not be stored.
type CaseRecord struct {
	CaseNumber        string `json:"case_number"`
	FileDate          string `json:"file_date"`
	JudicialOfficer   string `json:"judicial_officer"`
	CaseStatus        string `json:"case_status"`
	CaseType          string `json:"case_type,omitempty"`
	ChargeDescription string `json:"charge_description,omitempty"`
	BondAmount        string `json:"bond_amount,omitempty"`
	Disposition       string `json:"disposition,omitempty"`
	SentencingInfo    string `json:"sentencing_info,omitempty"`

	// Denormalized attorney fields, attached by the session before storage.
	AttorneyName      string `json:"attorney_name"`
	AttorneyFirstName string `json:"attorney_first_name"`
	AttorneyLastName  string `json:"attorney_last_name"`
}

// MissingFields lists the required fields that are empty.
func (r CaseRecord) MissingFields() []string {
	var missing []string
	if r.CaseNumber == "" {
		missing = append(missing, "case_number")
	}
	if r.FileDate == "" {
		missing = append(missing, "file_date")
	}
	if r.JudicialOfficer == "" {
		missing = append(missing, "judicial_officer")
	}
	if r.CaseStatus == "" {
		missing = append(missing, "case_status")
	}
	return missing
}

// Valid reports whether all required fields are present.
func (r CaseRecord) Valid() bool {
	return len(r.MissingFields()) == 0
}

// AttachAttorney denormalizes the attorney identity onto the record.
func (r *CaseRecord) AttachAttorney(q AttorneyQuery) {
	r.AttorneyName = q.FullName()
	r.AttorneyFirstName = q.FirstName
	r.AttorneyLastName = q.LastName
}

// CaseRow is one visible row in the search results grid. Rows are
// re-resolved after every navigation because the grid may be refreshed
// server-side between views.
type CaseRow struct {
	Index      int
	CaseNumber string
	Text       string
}

// ProcessedCaseSet tracks case numbers a session has already visited. It is
// owned exclusively by one session, grows monotonically, and survives
// recovery restarts so that no case is extracted twice.
type ProcessedCaseSet map[string]struct{}

// NewProcessedCaseSet returns an empty set.
func NewProcessedCaseSet() ProcessedCaseSet {
	return make(ProcessedCaseSet)
}

// Add marks a case number as processed. Empty case numbers are ignored.
func (s ProcessedCaseSet) Add(caseNumber string) {
	if caseNumber == "" {
		return
	}
	s[caseNumber] = struct{}{}
}

// Contains reports whether the case number was already processed.
func (s ProcessedCaseSet) Contains(caseNumber string) bool {
	_, ok := s[caseNumber]
	return ok
}

// Len returns the number of processed case numbers.
func (s ProcessedCaseSet) Len() int {
	return len(s)
}

// WorkerResult is the unit a session returns to the pool. It is immutable
// once produced; partial records are always carried even on failure.
type WorkerResult struct {
	AttorneyIndex int
	Attorney      AttorneyQuery
	Records       []CaseRecord
	Success       bool
	Err           error
}

// RunSummary aggregates per-attorney outcomes for reporting.
type RunSummary struct {
	RunID        string
	Attorneys    int
	Succeeded    int
	Failed       int
	TotalRecords int
}

// Productive reports whether the run produced at least one record. A run
// with zero records everywhere is a distinct, non-fatal outcome from a run
// where some attorneys errored.
func (s RunSummary) Productive() bool {
	return s.TotalRecords > 0
}
