package postgres

import "strconv"

// nullString maps "" to NULL so empty optional fields don't persist as
// empty strings.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func itoa(n int32) string {
	return strconv.FormatInt(int64(n), 10)
}
