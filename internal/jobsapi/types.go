package jobsapi

import (
	"encoding/json"
	"fmt"
	"io"

	"jobfeed/internal/domain"
)

// pageResponse is the envelope returned by the jobs endpoint. Fields other
// than results are ignored.
type pageResponse struct {
	Results []*domain.JobRecord `json:"results"`
}

// DecodePage reads one page payload. A payload without a results array is
// an empty page. Null entries in results are skipped.
func DecodePage(r io.Reader) ([]domain.JobRecord, error) {
	var payload pageResponse
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("jobsapi: decode response: %w", err)
	}

	records := make([]domain.JobRecord, 0, len(payload.Results))
	for _, rec := range payload.Results {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}
