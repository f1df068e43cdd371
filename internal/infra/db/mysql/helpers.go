package mysql

// nullString maps "" to NULL so optional columns stay NULL instead of empty
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
