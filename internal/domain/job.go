package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JobRecord represents one job listing as served by the remote jobs endpoint.
//
// Only the fields the application reads are typed. Every other field of the
// payload is kept in Extra as raw JSON so a record survives a storage round
// trip without losing data.
type JobRecord struct {
	// ID is the stable, opaque identifier of the listing. Required for
	// bookmarking and lookup.
	ID string

	Title       string
	CompanyName string
	JobCategory string

	// PrimaryDetails carries the place and salary shown on a job card.
	PrimaryDetails *PrimaryDetails

	// ContactNumber is the WhatsApp number published with the listing.
	ContactNumber string

	// Extra holds every field not captured above, keyed by its JSON name.
	// When the id arrived as something other than a JSON string (the API
	// sometimes sends numbers), the original token is retained here too.
	Extra map[string]json.RawMessage
}

// PrimaryDetails is the nested display block of a listing.
type PrimaryDetails struct {
	Place  string
	Salary string
	Extra  map[string]json.RawMessage
}

const (
	keyID             = "id"
	keyTitle          = "title"
	keyCompanyName    = "company_name"
	keyJobCategory    = "job_category"
	keyPrimaryDetails = "primary_details"
	keyContactNumber  = "whatsapp_no"
	keyPlace          = "Place"
	keySalary         = "Salary"
)

// UnmarshalJSON decodes a listing, tolerating missing and mistyped optional
// fields. Anything that does not fit a typed field is kept in Extra. A JSON
// null leaves the record unchanged.
func (r *JobRecord) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode job record: %w", err)
	}

	var out JobRecord
	if raw, ok := fields[keyID]; ok {
		id, isString := idText(raw)
		out.ID = id
		if isString && id != "" {
			delete(fields, keyID)
		}
	}
	out.Title = takeString(fields, keyTitle)
	out.CompanyName = takeString(fields, keyCompanyName)
	out.JobCategory = takeString(fields, keyJobCategory)
	out.ContactNumber = takeString(fields, keyContactNumber)

	if raw, ok := fields[keyPrimaryDetails]; ok && !isNull(raw) {
		var pd PrimaryDetails
		if err := json.Unmarshal(raw, &pd); err == nil {
			out.PrimaryDetails = &pd
			delete(fields, keyPrimaryDetails)
		}
	}

	if len(fields) > 0 {
		out.Extra = fields
	}
	*r = out
	return nil
}

// MarshalJSON encodes the typed fields on top of Extra, so typed values win
// over stale raw copies.
func (r JobRecord) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(r.Extra)+6)
	for k, v := range r.Extra {
		fields[k] = v
	}

	if r.ID != "" {
		if raw, ok := fields[keyID]; !ok || rawID(raw) != r.ID {
			if err := putString(fields, keyID, r.ID); err != nil {
				return nil, err
			}
		}
	}
	for _, kv := range []struct{ key, val string }{
		{keyTitle, r.Title},
		{keyCompanyName, r.CompanyName},
		{keyJobCategory, r.JobCategory},
		{keyContactNumber, r.ContactNumber},
	} {
		if err := putString(fields, kv.key, kv.val); err != nil {
			return nil, err
		}
	}
	if r.PrimaryDetails != nil {
		raw, err := json.Marshal(r.PrimaryDetails)
		if err != nil {
			return nil, fmt.Errorf("encode primary details: %w", err)
		}
		fields[keyPrimaryDetails] = raw
	}

	return json.Marshal(fields)
}

// UnmarshalJSON decodes the nested details block. A JSON null is a no-op.
func (p *PrimaryDetails) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode primary details: %w", err)
	}

	var out PrimaryDetails
	out.Place = takeString(fields, keyPlace)
	out.Salary = takeString(fields, keySalary)
	if len(fields) > 0 {
		out.Extra = fields
	}
	*p = out
	return nil
}

// MarshalJSON encodes the nested details block.
func (p PrimaryDetails) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(p.Extra)+2)
	for k, v := range p.Extra {
		fields[k] = v
	}
	if err := putString(fields, keyPlace, p.Place); err != nil {
		return nil, err
	}
	if err := putString(fields, keySalary, p.Salary); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// takeString moves a non-empty string field out of fields. Values of any
// other shape stay where they are.
func takeString(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return ""
	}
	delete(fields, key)
	return s
}

func putString(fields map[string]json.RawMessage, key, val string) error {
	if val == "" {
		return nil
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	fields[key] = raw
	return nil
}

// idText returns the textual id of a raw token and whether it was a JSON
// string. Numbers are rendered exactly as sent.
func idText(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), false
	}
	return "", false
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

func rawID(raw json.RawMessage) string {
	id, _ := idText(raw)
	return id
}
