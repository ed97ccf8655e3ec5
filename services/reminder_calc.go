package services

import (
	"strconv"
	"strings"
	"time"

	"github.com/taskhive/taskhive-app/models"
	"github.com/taskhive/taskhive-app/utils"
)

// ComputeReminderInstant menghitung instant absolut sebuah reminder dari due
// date + rule + timezone user. Due date bersifat date-only (midnight UTC),
// jadi komponen tanggalnya diambil langsung dari UTC -- tidak dikonversi lewat
// timezone target dulu, karena untuk zona di belakang UTC itu bisa menggeser
// tanggal kalendernya. Target tanggal = due - daysBefore hari (aritmetika
// kalender, rollover bulan/tahun ditangani oleh time.Date), lalu jam "HH:mm"
// di-resolve pada tanggal itu di timezone user.
func ComputeReminderInstant(dueDate time.Time, rule models.ReminderRule, timezone string) time.Time {
	year, month, day := dueDate.UTC().Date()
	hour, minute := parseClock(rule.Time)
	loc := loadLocation(timezone)
	return time.Date(year, month, day-rule.DaysBefore, hour, minute, 0, 0, loc)
}

// parseClock mem-parse "HH:mm"; input rusak jatuh ke 09:00.
func parseClock(clock string) (int, int) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 9, 0
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 9, 0
	}
	return hour, minute
}

// clockMinutes -> menit sejak midnight untuk "HH:mm"
func clockMinutes(clock string) int {
	hour, minute := parseClock(clock)
	return hour*60 + minute
}

// loadLocation memuat timezone IANA; nama tidak dikenal jatuh ke UTC.
func loadLocation(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		if utils.ErrorLogger != nil {
			utils.ErrorLogger.Printf("Unknown timezone %q, falling back to UTC", timezone)
		}
		return time.UTC
	}
	return loc
}

// localDayWindow mengembalikan rentang instant UTC yang mencakup tanggal
// kalender yang sedang dialami user di loc. Due date disimpan sebagai midnight
// UTC, jadi rentangnya adalah tanggal lokal tersebut pada midnight UTC + 24 jam
// -- bukan batas hari UTC server.
func localDayWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	year, month, day := now.In(loc).Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// localDateKey -> string tanggal kalender lokal user, dipakai sebagai dedup key
// digest "sekali per hari".
func localDateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// inQuietHours -> true jika jam dinding user saat ini ada di dalam window quiet
// hours miliknya. Window boleh melewati midnight (22:00 - 07:00).
func inQuietHours(pref *models.NotificationPreference, now time.Time) bool {
	if !pref.QuietHoursEnabled {
		return false
	}

	local := now.In(loadLocation(pref.Timezone))
	current := local.Hour()*60 + local.Minute()
	start := clockMinutes(pref.QuietHoursStart)
	end := clockMinutes(pref.QuietHoursEnd)

	if start == end {
		return false
	}
	if start < end {
		return current >= start && current < end
	}
	// window melewati midnight
	return current >= start || current < end
}
