// internal/models/entities.go
package models

import (
	"strconv"
	"time"
)

// DocumentKind distinguishes the two Brazilian tax-document formats.
type DocumentKind string

const (
	DocumentCPF  DocumentKind = "cpf"  // 11 digits, natural person
	DocumentCNPJ DocumentKind = "cnpj" // 14 digits, organization
)

// Document holds a tax-document number as digits only.
type Document struct {
	Kind   DocumentKind `json:"kind"`
	Number string       `json:"number"`
}

// Valid checks the mod-11 verifier digits.
func (d Document) Valid() bool {
	switch d.Kind {
	case DocumentCPF:
		return len(d.Number) == 11 && !repeated(d.Number) &&
			verifier(d.Number[:9], cpfWeights(10)) == d.Number[9] &&
			verifier(d.Number[:10], cpfWeights(11)) == d.Number[10]
	case DocumentCNPJ:
		return len(d.Number) == 14 && !repeated(d.Number) &&
			verifier(d.Number[:12], cnpjWeights[1:]) == d.Number[12] &&
			verifier(d.Number[:13], cnpjWeights) == d.Number[13]
	}
	return false
}

// Formatted renders 000.000.000-00 or 00.000.000/0000-00.
func (d Document) Formatted() string {
	n := d.Number
	switch {
	case d.Kind == DocumentCPF && len(n) == 11:
		return n[:3] + "." + n[3:6] + "." + n[6:9] + "-" + n[9:]
	case d.Kind == DocumentCNPJ && len(n) == 14:
		return n[:2] + "." + n[2:5] + "." + n[5:8] + "/" + n[8:12] + "-" + n[12:]
	}
	return n
}

var cnpjWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}

func cpfWeights(start int) []int {
	w := make([]int, start-1)
	for i := range w {
		w[i] = start - i
	}
	return w
}

func verifier(digits string, weights []int) byte {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * weights[i]
	}
	rest := sum % 11
	if rest < 2 {
		return '0'
	}
	return byte('0' + 11 - rest)
}

func repeated(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

// PeriodKind enumerates the calendar periods users refer to.
type PeriodKind string

const (
	PeriodToday     PeriodKind = "today"
	PeriodYesterday PeriodKind = "yesterday"
	PeriodThisWeek  PeriodKind = "this_week"
	PeriodThisMonth PeriodKind = "this_month"
	PeriodThisYear  PeriodKind = "this_year"
	PeriodDay       PeriodKind = "day"
	PeriodMonth     PeriodKind = "month"
)

// Period is a canonical period token; Value is the day (1-31) or month (1-12) when relevant.
type Period struct {
	Kind  PeriodKind `json:"kind"`
	Value int        `json:"value,omitempty"`
}

// Token renders the canonical form, e.g. "this_month", "day:15", "month:3".
func (p Period) Token() string {
	switch p.Kind {
	case PeriodDay, PeriodMonth:
		return string(p.Kind) + ":" + strconv.Itoa(p.Value)
	}
	return string(p.Kind)
}

// Range returns the half-open interval [from, to) the period covers relative to now.
// Day and month tokens resolve within the current month and year.
func (p Period) Range(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	loc := now.Location()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch p.Kind {
	case PeriodToday:
		return today, today.AddDate(0, 0, 1)
	case PeriodYesterday:
		return today.AddDate(0, 0, -1), today
	case PeriodThisWeek:
		offset := (int(today.Weekday()) + 6) % 7 // weeks start on Monday
		start := today.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case PeriodThisYear:
		start := time.Date(y, 1, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0)
	case PeriodDay:
		start := time.Date(y, m, p.Value, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 1)
	case PeriodMonth:
		start := time.Date(y, time.Month(p.Value), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	default:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	}
}

// Entities are the structured values pulled out of one utterance; every field is optional.
type Entities struct {
	Amount           *float64  `json:"amount,omitempty"`
	Document         *Document `json:"document,omitempty"`
	CounterpartyName string    `json:"counterpartyName,omitempty"`
	Period           *Period   `json:"period,omitempty"`
}
