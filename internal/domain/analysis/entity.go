package analysis

// Bureau enum
type Bureau string

const (
	BureauExperian   Bureau = "experian"
	BureauEquifax    Bureau = "equifax"
	BureauTransUnion Bureau = "transunion"
)

// Label is the bureau name the way it is spelled inside the model request and
// in caller-facing messages.
func (b Bureau) Label() string {
	switch b {
	case BureauExperian:
		return "Experian"
	case BureauEquifax:
		return "Equifax"
	case BureauTransUnion:
		return "TransUnion"
	}
	return string(b)
}

// Report is one uploaded credit report bound to its source bureau.
type Report struct {
	Bureau Bureau
	Data   []byte
}

// Job is one analysis request cycle. It exists only for the duration of a
// single stream and is never persisted.
type Job struct {
	Reports   []Report
	LeadName  string
	LeadEmail string
	ClientIP  string
}

// Result is the model's structured reply, passed through after syntactic
// validation only. Its internal semantics belong to the model, not to us.
type Result map[string]any

// Status enum for stream events
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Event is one frame of the analysis stream. Progress is monotonically
// non-decreasing across the events of one job; Result is set only on the
// final completed event.
type Event struct {
	Status   Status `json:"status"`
	Progress int    `json:"progress,omitempty"`
	Message  string `json:"message,omitempty"`
	Result   Result `json:"result,omitempty"`
}
