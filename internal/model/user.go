package model

import "time"

// Columns lists the nine column names an uploaded file must declare, in the
// canonical CSV order. Header validation compares against this set.
var Columns = []string{
	"first_name",
	"last_name",
	"national_id",
	"birth_date",
	"address",
	"country",
	"phone_number",
	"email",
	"finger_print_signature",
}

// UserRecord is one validated row of an uploaded file. Records are created
// only by the ingestion worker and are immutable afterwards; the fingerprint
// signature is globally unique across all records.
type UserRecord struct {
	ID                   int64     `json:"-"`
	FirstName            string    `json:"first_name"`
	LastName             string    `json:"last_name"`
	NationalID           string    `json:"national_id"`
	BirthDate            time.Time `json:"-"`
	Address              string    `json:"address"`
	Country              string    `json:"country"`
	PhoneNumber          string    `json:"phone_number"`
	Email                string    `json:"email"`
	FingerPrintSignature string    `json:"finger_print_signature"`
	TimeAdded            time.Time `json:"-"`
}

// BirthDateString renders the birth date in the wire format used by the API
// and the uploaded files.
func (u UserRecord) BirthDateString() string {
	return u.BirthDate.Format("2006-01-02")
}
