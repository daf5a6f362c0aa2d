package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Canonical field names for the fingerprinted subset of a certificate.
const (
	FieldStudentName      = "student_name"
	FieldRollNumber       = "roll_number"
	FieldCourse           = "course"
	FieldInstitution      = "institution"
	FieldGrade            = "grade"
	FieldDateOfCompletion = "date_of_completion"
)

// ExtractedRecord holds the structured fields the extractor pulled out of an
// uploaded document. Extra carries any additional fields the extractor found;
// they are kept for display but never contribute to the fingerprint.
// Immutable once produced.
type ExtractedRecord struct {
	StudentName      string    `json:"student_name" gorm:"column:student_name"`
	RollNumber       string    `json:"roll_number" gorm:"column:roll_number"`
	Course           string    `json:"course" gorm:"column:course"`
	Institution      string    `json:"institution" gorm:"column:institution"`
	Grade            string    `json:"grade" gorm:"column:grade"`
	DateOfCompletion string    `json:"date_of_completion" gorm:"column:date_of_completion"`
	RawText          string    `json:"raw_text,omitempty" gorm:"column:raw_text;type:text"`
	Extra            StringMap `json:"extra,omitempty" gorm:"column:extra;type:jsonb"`
}

// Field returns the value for one of the canonical field names. Unknown names
// return the empty string, same as a field the extractor never produced.
func (r ExtractedRecord) Field(name string) string {
	switch name {
	case FieldStudentName:
		return r.StudentName
	case FieldRollNumber:
		return r.RollNumber
	case FieldCourse:
		return r.Course
	case FieldInstitution:
		return r.Institution
	case FieldGrade:
		return r.Grade
	case FieldDateOfCompletion:
		return r.DateOfCompletion
	}
	return ""
}

// SetField assigns a value to one of the canonical field names. Unknown names
// land in Extra so nothing the extractor found is silently dropped.
func (r *ExtractedRecord) SetField(name, value string) {
	switch name {
	case FieldStudentName:
		r.StudentName = value
	case FieldRollNumber:
		r.RollNumber = value
	case FieldCourse:
		r.Course = value
	case FieldInstitution:
		r.Institution = value
	case FieldGrade:
		r.Grade = value
	case FieldDateOfCompletion:
		r.DateOfCompletion = value
	default:
		if r.Extra == nil {
			r.Extra = StringMap{}
		}
		r.Extra[name] = value
	}
}

// Empty reports whether extraction produced nothing usable at all: no
// canonical fields and no raw text.
func (r ExtractedRecord) Empty() bool {
	return r.StudentName == "" && r.RollNumber == "" && r.Course == "" &&
		r.Institution == "" && r.Grade == "" && r.DateOfCompletion == "" &&
		r.RawText == ""
}

// StringMap is a string-to-string map stored as JSON in the database.
type StringMap map[string]string

func (m StringMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *StringMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringMap", src)
	}
	return json.Unmarshal(data, m)
}

// CertificateRecord is the persisted registration of a certificate, keyed by
// its content fingerprint. Created once at registration; only the Verified
// flag may change afterwards, through the admin endpoint.
type CertificateRecord struct {
	HashKey   string          `json:"hash_key" gorm:"column:hash_key;primaryKey;size:64"`
	Fields    ExtractedRecord `json:"fields" gorm:"embedded"`
	Verified  bool            `json:"verified" gorm:"column:verified"`
	CreatedAt time.Time       `json:"created_at" gorm:"column:created_at"`
}

func (CertificateRecord) TableName() string { return "certificates" }

// Verdict codes distinguish the reasons a verification did or did not pass.
// Unreadable input is a different answer from "no such registration".
const (
	VerdictVerified   = "verified"
	VerdictNoMatch    = "no_match"
	VerdictUnreadable = "unreadable"
)

// MatchDetails describes the registered record a verification matched.
type MatchDetails struct {
	HashKey   string          `json:"hash_key"`
	Fields    ExtractedRecord `json:"fields"`
	Verified  bool            `json:"verified"`
	HashMatch bool            `json:"hash_match"`
}

// VerificationVerdict is the transient outcome of a verification request.
// Never persisted; built fresh per request.
type VerificationVerdict struct {
	Verified bool          `json:"verified"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Match    *MatchDetails `json:"match,omitempty"`
}
