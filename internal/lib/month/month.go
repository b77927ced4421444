// Package month содержит календарную арифметику для сроков подписки.
package month

import "time"

// Add прибавляет n календарных месяцев к t. Если в целевом месяце нет такого
// дня, дата прижимается к последнему дню месяца (31 января + 1 = 28/29 февраля),
// в отличие от time.AddDate, который переносит остаток в следующий месяц.
func Add(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Remaining считает количество полных и начатых месяцев между now и end.
// Если end уже наступил, возвращает 0.
func Remaining(end, now time.Time) int {
	if !now.Before(end) {
		return 0
	}
	months := (end.Year()-now.Year())*12 + int(end.Month()) - int(now.Month())
	if Add(now, months).Before(end) {
		months++
	}
	if months < 1 {
		months = 1
	}
	return months
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
