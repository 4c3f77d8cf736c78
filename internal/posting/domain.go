package posting

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/majestrate/infinity-next/internal/bans"
)

// Submission is one post attempt as received from the client. Attachment
// refs point at transient uploads that are only promoted on admission.
type Submission struct {
	IP           netip.Addr
	ThreadID     int64
	Subject      string
	Name         string
	Body         string
	CaptchaToken string
	CapcodeRole  int64
	Attachments  []Attachment
}

// Attachment references a previously uploaded artifact by its transient id.
type Attachment struct {
	Ref  uuid.UUID
	Name string
	Size int64
}

// Post is an admitted post as persisted.
type Post struct {
	ID          int64
	BoardURI    string
	ThreadID    int64
	AuthorID    int64
	Subject     string
	Name        string
	Body        string
	Capcode     string
	AuthorIP    netip.Addr
	CreatedAt   time.Time
	Attachments []Attachment
}

// Outcome classifies an admission decision.
type Outcome int

const (
	// OutcomeAdmitted means the post was persisted.
	OutcomeAdmitted Outcome = iota
	// OutcomeRejected means the submission failed one or more gates.
	OutcomeRejected
	// OutcomeBanned means an active ban terminated the attempt.
	OutcomeBanned
)

// String names the outcome for logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeAdmitted:
		return "admitted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeBanned:
		return "banned"
	default:
		return "unknown"
	}
}

// FieldError is one machine-readable validation failure tied to a field.
type FieldError struct {
	Field  string `json:"field"`
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("posting: field %s: %s", e.Field, e.Code)
}

// Decision is the single result of running a submission through the
// admission gates. Exactly one of Post, FieldErrors or Ban is meaningful,
// selected by Outcome.
type Decision struct {
	Outcome     Outcome
	Post        *Post
	FieldErrors []FieldError
	Ban         *bans.Ban
}

func admitted(post *Post) Decision {
	return Decision{Outcome: OutcomeAdmitted, Post: post}
}

func rejected(errs ...FieldError) Decision {
	return Decision{Outcome: OutcomeRejected, FieldErrors: errs}
}

func banned(ban *bans.Ban) Decision {
	return Decision{Outcome: OutcomeBanned, Ban: ban}
}
