package domain

import "time"

// Метки времени заказов хранятся форматированными строками в фиксированной
// таймзоне, как того требует витрина: "2023.10.15 09:30:00".
const TimestampLayout = "2006.01.02 15:04:05"

// marketZone — фиксированная таймзона витрины (KST, UTC+9).
var marketZone = time.FixedZone("KST", 9*60*60)

// FormatTimestamp приводит момент времени к каноническому строковому виду.
func FormatTimestamp(t time.Time) string {
	return t.In(marketZone).Format(TimestampLayout)
}

// Now возвращает текущий момент в каноническом строковом виде.
func Now() string {
	return FormatTimestamp(time.Now())
}
