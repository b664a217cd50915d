package bot

import (
	"fmt"
	"strings"

	"jobfeed/internal/domain"
)

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func placeAndSalary(rec domain.JobRecord) (string, string) {
	if rec.PrimaryDetails == nil {
		return "", ""
	}
	return rec.PrimaryDetails.Place, rec.PrimaryDetails.Salary
}

// formatCard renders the short listing shown in the feed and bookmark list.
func formatCard(rec domain.JobRecord) string {
	place, salary := placeAndSalary(rec)
	return fmt.Sprintf("%s\nLocation: %s\nSalary: %s\nPhone: %s",
		orDefault(rec.Title, "Untitled Job"),
		orDefault(place, "Not specified"),
		orDefault(salary, "Not disclosed"),
		orDefault(rec.ContactNumber, "Not available"),
	)
}

// formatDetail renders the full view of one bookmarked job.
func formatDetail(rec domain.JobRecord) string {
	var b strings.Builder
	b.WriteString(formatCard(rec))
	fmt.Fprintf(&b, "\nCompany: %s", orDefault(rec.CompanyName, "N/A"))
	if rec.JobCategory != "" {
		fmt.Fprintf(&b, "\nCategory: %s", rec.JobCategory)
	}
	fmt.Fprintf(&b, "\nID: %s", rec.ID)
	return b.String()
}

// parseCommand splits "/cmd@bot arg..." into the bare command and its
// argument string.
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, arg, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}
