package request

import (
	"strconv"
	"strings"
)

// ParseFacilityID parses a positive int64 facility ID from a query or path
// value.
func ParseFacilityID(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	facilityID, err := strconv.ParseInt(value, 10, 64)
	if err != nil || facilityID <= 0 {
		return 0, false
	}

	return facilityID, true
}

// ParseCourtNumber parses a non-negative court number; 0 means all courts.
func ParseCourtNumber(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	courtNumber, err := strconv.Atoi(value)
	if err != nil || courtNumber < 0 {
		return 0, false
	}

	return courtNumber, true
}
