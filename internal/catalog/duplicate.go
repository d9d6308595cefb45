package catalog

import "strings"

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// IsDuplicate reports whether candidate and existing describe the same
// release under different identities. Two records collide when both carry the
// same non-empty catalog number, or when both artist and title match; all
// comparisons are case-insensitive after trimming. Records sharing an id are
// the same logical entity and never duplicates of each other.
func IsDuplicate(candidate, existing Record) bool {
	if candidate.ID == existing.ID {
		return false
	}

	candidateCatno := normalizeKey(candidate.CatalogNumber)
	if candidateCatno != "" && candidateCatno == normalizeKey(existing.CatalogNumber) {
		return true
	}

	artist := normalizeKey(candidate.Artist)
	title := normalizeKey(candidate.Title)
	if artist != "" && title != "" &&
		artist == normalizeKey(existing.Artist) && title == normalizeKey(existing.Title) {
		return true
	}

	return false
}

// FindDuplicate returns the first record in records that candidate collides
// with, or nil when the candidate is save-able.
func FindDuplicate(records []Record, candidate Record) *Record {
	for index := range records {
		if IsDuplicate(candidate, records[index]) {
			return &records[index]
		}
	}
	return nil
}
