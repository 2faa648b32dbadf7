package month

import (
	"time"
)

// Add прибавляет months месяцев к дате; если в целевом месяце нет такого
// дня, дата прижимается к последнему дню месяца (31 января + 1 = 28/29 февраля).
func Add(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}

// Extend считает новую дату окончания при продлении: отсчёт ведётся от
// более поздней из дат (текущее окончание, сегодня).
func Extend(expiry, today time.Time, months int) time.Time {
	base := expiry
	if today.After(expiry) {
		base = today
	}
	return Add(base, months)
}

// DaysUntil количество календарных дней от today до target (отрицательное для прошлого).
func DaysUntil(today, target time.Time) int {
	a := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
