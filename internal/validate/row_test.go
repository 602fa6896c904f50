package validate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/model"
)

type fakeIndex struct {
	existing map[string]bool
	err      error
}

func (f *fakeIndex) SignatureExists(ctx context.Context, signature string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.existing[signature], nil
}

var validSignature = strings.Repeat("ab", 32) // 64 hex chars

func validRow() model.RawRecord {
	return model.RawRecord{
		"first_name":             "John",
		"last_name":              "Doe",
		"national_id":            "123",
		"birth_date":             "2000-01-01",
		"address":                "X",
		"country":                "USA",
		"phone_number":           "555",
		"email":                  "a@b.com",
		"finger_print_signature": validSignature,
	}
}

func newValidator(t *testing.T, idx SignatureIndex) *RowValidator {
	t.Helper()
	v, err := NewRowValidator("", idx)
	require.NoError(t, err)
	return v
}

func TestValidateAccepts(t *testing.T) {
	t.Parallel()

	v := newValidator(t, &fakeIndex{})
	rec, ok, err := v.Validate(context.Background(), validRow())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "John", rec.FirstName)
	assert.Equal(t, "Doe", rec.LastName)
	assert.Equal(t, "2000-01-01", rec.BirthDateString())
	assert.Equal(t, validSignature, rec.FingerPrintSignature)
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	mutations := []struct {
		name  string
		field string
		value string
	}{
		{"empty first name", "first_name", ""},
		{"numeric first name", "first_name", "J0hn"},
		{"hyphenated last name", "last_name", "Doe-Smith"},
		{"empty national id", "national_id", ""},
		{"alpha national id", "national_id", "12a"},
		{"slash date format", "birth_date", "01/01/2000"},
		{"non-date", "birth_date", "yesterday"},
		{"blank address", "address", "   "},
		{"blank country", "country", ""},
		{"formatted phone", "phone_number", "555-1234"},
		{"email missing at", "email", "a.b.com"},
		{"email missing tld dot", "email", "a@bcom"},
		{"email double at", "email", "a@@b.com"},
		{"short signature", "finger_print_signature", "abc123"},
		{"uppercase signature", "finger_print_signature", strings.ToUpper(validSignature)},
		{"missing signature", "finger_print_signature", ""},
	}

	for _, tt := range mutations {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := newValidator(t, &fakeIndex{})
			row := validRow()
			row[tt.field] = tt.value
			_, ok, err := v.Validate(context.Background(), row)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestValidateRejectsExistingSignature(t *testing.T) {
	t.Parallel()

	v := newValidator(t, &fakeIndex{existing: map[string]bool{validSignature: true}})
	_, ok, err := v.Validate(context.Background(), validRow())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateLookupErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	v := newValidator(t, &fakeIndex{err: boom})
	_, ok, err := v.Validate(context.Background(), validRow())
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestValidateCustomSignaturePattern(t *testing.T) {
	t.Parallel()

	// Salted-hash-with-prefix format instead of the default hex digest.
	v, err := NewRowValidator(`^sha256\$[0-9a-f]{64}$`, &fakeIndex{})
	require.NoError(t, err)

	row := validRow()
	row["finger_print_signature"] = "sha256$" + validSignature
	_, ok, err := v.Validate(context.Background(), row)
	require.NoError(t, err)
	assert.True(t, ok)

	row["finger_print_signature"] = validSignature
	_, ok, err = v.Validate(context.Background(), row)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRowValidatorBadPattern(t *testing.T) {
	t.Parallel()

	_, err := NewRowValidator("[", &fakeIndex{})
	assert.Error(t, err)
}
