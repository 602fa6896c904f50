package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/model"
)

// DefaultSignaturePattern is the canonical fingerprint signature encoding: a
// lowercase hex digest between 32 and 64 characters, covering anything from
// an MD5 to a SHA-256 hex string.
const DefaultSignaturePattern = `^[0-9a-f]{32,64}$`

const birthDateLayout = "2006-01-02"

var (
	alphaRe  = regexp.MustCompile(`^[A-Za-z]+$`)
	digitsRe = regexp.MustCompile(`^[0-9]+$`)
	emailRe  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// SignatureIndex looks up whether a fingerprint signature already exists among
// persisted user records.
type SignatureIndex interface {
	SignatureExists(ctx context.Context, signature string) (bool, error)
}

// RowValidator decides, per raw record, whether the row becomes a UserRecord.
// Rejection is all-or-nothing and silent: the caller simply does not receive
// the row. The signature encoding is a configuration parameter.
type RowValidator struct {
	signature  *regexp.Regexp
	signatures SignatureIndex
}

// NewRowValidator builds a validator. pattern selects the accepted signature
// encoding; an empty pattern means DefaultSignaturePattern.
func NewRowValidator(pattern string, signatures SignatureIndex) (*RowValidator, error) {
	if pattern == "" {
		pattern = DefaultSignaturePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile signature pattern: %w", err)
	}
	return &RowValidator{signature: re, signatures: signatures}, nil
}

// Validate decodes raw into a UserRecord and reports whether the row is
// accepted. A non-nil error means the uniqueness lookup itself failed; that is
// an infrastructure fault, not a rejection, and must propagate to the run.
func (v *RowValidator) Validate(ctx context.Context, raw model.RawRecord) (model.UserRecord, bool, error) {
	var rec model.UserRecord

	first := strings.TrimSpace(raw["first_name"])
	last := strings.TrimSpace(raw["last_name"])
	if !alphaRe.MatchString(first) || !alphaRe.MatchString(last) {
		return rec, false, nil
	}

	nationalID := strings.TrimSpace(raw["national_id"])
	phone := strings.TrimSpace(raw["phone_number"])
	if !digitsRe.MatchString(nationalID) || !digitsRe.MatchString(phone) {
		return rec, false, nil
	}

	birth, err := time.Parse(birthDateLayout, strings.TrimSpace(raw["birth_date"]))
	if err != nil {
		return rec, false, nil
	}

	address := strings.TrimSpace(raw["address"])
	country := strings.TrimSpace(raw["country"])
	if address == "" || country == "" {
		return rec, false, nil
	}

	email := strings.TrimSpace(raw["email"])
	if !emailRe.MatchString(email) {
		return rec, false, nil
	}

	signature := strings.TrimSpace(raw["finger_print_signature"])
	if !v.signature.MatchString(signature) {
		return rec, false, nil
	}
	exists, err := v.signatures.SignatureExists(ctx, signature)
	if err != nil {
		return rec, false, fmt.Errorf("signature lookup: %w", err)
	}
	if exists {
		return rec, false, nil
	}

	rec = model.UserRecord{
		FirstName:            first,
		LastName:             last,
		NationalID:           nationalID,
		BirthDate:            birth,
		Address:              address,
		Country:              country,
		PhoneNumber:          phone,
		Email:                email,
		FingerPrintSignature: signature,
	}
	return rec, true, nil
}
