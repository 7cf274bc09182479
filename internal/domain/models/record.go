// internal/domain/models/record.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind identifies one of the reviewable document variants. Each kind lives
// in its own collection but shares the approval sub-object and comment ledger.
type Kind string

const (
	KindClassFile      Kind = "class_file"
	KindGroupPlan      Kind = "group_plan"
	KindOfficeDocument Kind = "office_document"
)

// Kinds lists every record kind in display order.
var Kinds = []Kind{KindClassFile, KindGroupPlan, KindOfficeDocument}

// Collection returns the Mongo collection name backing the kind.
func (k Kind) Collection() string {
	switch k {
	case KindClassFile:
		return "class_files"
	case KindGroupPlan:
		return "group_plans"
	case KindOfficeDocument:
		return "office_documents"
	}
	return ""
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k.Collection() != ""
}

// ParseKind accepts the URL form of a kind ("class-files", "class_file", ...).
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "class_file", "class-file", "class_files", "class-files":
		return KindClassFile, true
	case "group_plan", "group-plan", "group_plans", "group-plans", "meeting-minutes":
		return KindGroupPlan, true
	case "office_document", "office-document", "office_documents", "office-documents":
		return KindOfficeDocument, true
	}
	return "", false
}

// Status is the approval workflow state of a Record.
type Status string

const (
	StatusPending       Status = "pending"
	StatusApproved      Status = "approved"
	StatusNeedsRevision Status = "needs_revision"
	StatusResponded     Status = "responded" // legacy group-plan value, read as pending
	StatusRejected      Status = "rejected"  // reserved; no transition produces it
)

// Approval is the review state embedded on a Record.
type Approval struct {
	Status          Status              `bson:"status" json:"status"`
	ReviewerID      *primitive.ObjectID `bson:"reviewer_id,omitempty" json:"reviewer_id,omitempty"`
	ReviewerName    string              `bson:"reviewer_name,omitempty" json:"reviewer_name,omitempty"`
	ReviewerRole    string              `bson:"reviewer_role,omitempty" json:"reviewer_role,omitempty"`
	ReviewedAt      *time.Time          `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
	RejectionReason *string             `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
}

// CommentType distinguishes plain discussion from revision requests and
// the author's answers to them.
type CommentType string

const (
	CommentPlain    CommentType = "comment"
	CommentRequest  CommentType = "request"
	CommentResponse CommentType = "response"
)

// Comment is one entry in a Record's ledger. Ledger order is append order.
type Comment struct {
	ID        string             `bson:"id" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	UserName  string             `bson:"user_name" json:"user_name"`
	UserRole  string             `bson:"user_role" json:"user_role"`
	Content   string             `bson:"content" json:"content"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	EditedAt  *time.Time         `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
	Type      CommentType        `bson:"type,omitempty" json:"type"`
}

// EntryType returns the comment type, defaulting legacy entries to plain comments.
func (c Comment) EntryType() CommentType {
	if c.Type == "" {
		return CommentPlain
	}
	return c.Type
}

// Record is a reviewable document: a class file, a group plan (meeting
// minute), or an office document.
//
// CommentCount mirrors len(Comments) and Version increments on every
// workflow write; stores use it for compare-and-swap updates.
type Record struct {
	ID   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind Kind               `bson:"kind" json:"kind"`

	Title   string `bson:"title" json:"title"`
	TitleCI string `bson:"title_ci" json:"-"`

	// Class file descriptors
	ClassName string `bson:"class_name,omitempty" json:"class_name,omitempty"`
	Subject   string `bson:"subject,omitempty" json:"subject,omitempty"`

	// Group plan / meeting minute descriptors
	GroupName   string     `bson:"group_name,omitempty" json:"group_name,omitempty"`
	MeetingDate *time.Time `bson:"meeting_date,omitempty" json:"meeting_date,omitempty"`

	// Office document descriptors
	Folder string `bson:"folder,omitempty" json:"folder,omitempty"`

	// Uploaded file
	FilePath string `bson:"file_path,omitempty" json:"-"`
	FileName string `bson:"file_name,omitempty" json:"file_name,omitempty"`
	FileSize int64  `bson:"file_size,omitempty" json:"file_size,omitempty"`
	FileURL  string `bson:"file_url,omitempty" json:"file_url,omitempty"`

	// Ownership. UploaderID is unset on legacy records; ownership then
	// falls back to a case-insensitive Uploader name match.
	UploaderID   *primitive.ObjectID `bson:"uploader_id,omitempty" json:"uploader_id,omitempty"`
	Uploader     string              `bson:"uploader" json:"uploader"`
	UploaderRole string              `bson:"uploader_role" json:"uploader_role"`

	Approval       *Approval `bson:"approval,omitempty" json:"approval,omitempty"`
	Comments       []Comment `bson:"comments" json:"comments"`
	CommentCount   int       `bson:"comment_count" json:"comment_count"`
	HasNewComments bool      `bson:"has_new_comments" json:"has_new_comments"`

	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Status returns the approval status, treating a missing approval as pending.
func (r *Record) Status() Status {
	if r.Approval == nil || r.Approval.Status == "" {
		return StatusPending
	}
	return r.Approval.Status
}

// HasFile reports whether the record has an uploaded file.
func (r *Record) HasFile() bool {
	return r.FilePath != ""
}

// Clone returns a deep copy so workflow transitions never alias the
// caller's snapshot.
func (r Record) Clone() Record {
	out := r
	if r.Approval != nil {
		a := *r.Approval
		if a.ReviewerID != nil {
			id := *a.ReviewerID
			a.ReviewerID = &id
		}
		if a.ReviewedAt != nil {
			t := *a.ReviewedAt
			a.ReviewedAt = &t
		}
		if a.RejectionReason != nil {
			s := *a.RejectionReason
			a.RejectionReason = &s
		}
		out.Approval = &a
	}
	if r.UploaderID != nil {
		id := *r.UploaderID
		out.UploaderID = &id
	}
	if r.MeetingDate != nil {
		t := *r.MeetingDate
		out.MeetingDate = &t
	}
	if r.Comments != nil {
		out.Comments = make([]Comment, len(r.Comments))
		for i, c := range r.Comments {
			if c.EditedAt != nil {
				t := *c.EditedAt
				c.EditedAt = &t
			}
			out.Comments[i] = c
		}
	}
	return out
}
