package utils

import "time"

// FormatDueDate memformat due date (midnight UTC) untuk pesan notifikasi.
func FormatDueDate(t time.Time) string {
	return t.UTC().Format("Mon, Jan 2")
}

// ParseDueDate mem-parse tanggal "YYYY-MM-DD" menjadi midnight UTC.
func ParseDueDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
