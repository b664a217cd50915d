package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRecord_UnmarshalTypedFields(t *testing.T) {
	payload := `{
		"id": "abc",
		"title": "Driver",
		"company_name": "Acme",
		"job_category": "Transport",
		"primary_details": {"Place": "Pune", "Salary": "₹15000"},
		"whatsapp_no": "+911234567890"
	}`

	var rec JobRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))

	assert.Equal(t, "abc", rec.ID)
	assert.Equal(t, "Driver", rec.Title)
	assert.Equal(t, "Acme", rec.CompanyName)
	assert.Equal(t, "Transport", rec.JobCategory)
	assert.Equal(t, "+911234567890", rec.ContactNumber)
	require.NotNil(t, rec.PrimaryDetails)
	assert.Equal(t, "Pune", rec.PrimaryDetails.Place)
	assert.Equal(t, "₹15000", rec.PrimaryDetails.Salary)
	assert.Nil(t, rec.Extra, "no unknown fields expected")
}

func TestJobRecord_PreservesUnknownFields(t *testing.T) {
	payload := `{"id":"7","title":"Cook","views":12,"tags":["a","b"],"primary_details":{"Place":"Goa","Experience":"2y"}}`

	var rec JobRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))
	require.Contains(t, rec.Extra, "views")
	require.Contains(t, rec.Extra, "tags")
	require.NotNil(t, rec.PrimaryDetails)
	require.Contains(t, rec.PrimaryDetails.Extra, "Experience")

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(out))
}

func TestJobRecord_NumericIDRoundTrip(t *testing.T) {
	payload := `{"id":1024,"title":"Helper"}`

	var rec JobRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))
	assert.Equal(t, "1024", rec.ID)

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(out), "numeric id should be written back as a number")

	rec.ID = "2048"
	out, err = json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"2048","title":"Helper"}`, string(out), "a changed id replaces the raw token")
}

func TestJobRecord_ToleratesMistypedOptionalFields(t *testing.T) {
	payload := `{"id":"9","title":null,"company_name":42,"primary_details":"n/a"}`

	var rec JobRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))
	assert.Equal(t, "9", rec.ID)
	assert.Empty(t, rec.Title)
	assert.Empty(t, rec.CompanyName)
	assert.Nil(t, rec.PrimaryDetails)

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(out))
}

func TestJobRecord_RejectsNonObject(t *testing.T) {
	var rec JobRecord
	assert.Error(t, json.Unmarshal([]byte(`"just a string"`), &rec))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &rec))
}

func TestJobRecord_NullIsNoOp(t *testing.T) {
	rec := JobRecord{ID: "3", Title: "Cook"}
	require.NoError(t, json.Unmarshal([]byte(`null`), &rec))
	assert.Equal(t, JobRecord{ID: "3", Title: "Cook"}, rec)

	var list []JobRecord
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"1"},null]`), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].ID)
	assert.Equal(t, JobRecord{}, list[1])

	payload := `{"id":"4","primary_details":null}`
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))
	assert.Nil(t, rec.PrimaryDetails)
	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(out), "a null details block is kept as sent")
}

func TestError_KindMatching(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("load page 3: %w", &Error{Kind: FetchFailed, Msg: "try again", Err: base})

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, base)
	assert.NotErrorIs(t, err, ErrDecodeFailed)
	assert.Equal(t, FetchFailed, KindOf(err))
	assert.Equal(t, "try again", UserMessage(err))
	assert.Equal(t, ErrorKind(0), KindOf(base))
}
