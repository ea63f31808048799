// internal/nlu/extract/period.go
package extract

import (
	"regexp"
	"strconv"

	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/nlu/normalize"
)

type periodKeyword struct {
	phrase string
	period models.Period
}

func month(n int) models.Period { return models.Period{Kind: models.PeriodMonth, Value: n} }

var (
	today     = models.Period{Kind: models.PeriodToday}
	yesterday = models.Period{Kind: models.PeriodYesterday}
	thisWeek  = models.Period{Kind: models.PeriodThisWeek}
	thisMonth = models.Period{Kind: models.PeriodThisMonth}
	thisYear  = models.Period{Kind: models.PeriodThisYear}
)

// periodTable is scanned in order against the folded text on word boundaries.
var periodTable = []periodKeyword{
	{"hoje", today},
	{"ontem", yesterday},
	{"janeiro", month(1)},
	{"fevereiro", month(2)},
	{"março", month(3)},
	{"abril", month(4)},
	{"maio", month(5)},
	{"junho", month(6)},
	{"julho", month(7)},
	{"agosto", month(8)},
	{"setembro", month(9)},
	{"outubro", month(10)},
	{"novembro", month(11)},
	{"dezembro", month(12)},
	{"esta semana", thisWeek},
	{"essa semana", thisWeek},
	{"nesta semana", thisWeek},
	{"nessa semana", thisWeek},
	{"semana", thisWeek},
	{"este mês", thisMonth},
	{"esse mês", thisMonth},
	{"neste mês", thisMonth},
	{"nesse mês", thisMonth},
	{"mês atual", thisMonth},
	{"mês", thisMonth},
	{"mensal", thisMonth},
	{"este ano", thisYear},
	{"esse ano", thisYear},
	{"neste ano", thisYear},
	{"nesse ano", thisYear},
	{"ano", thisYear},
	{"anual", thisYear},
}

var reDayOfMonth = regexp.MustCompile(`\bdia\s+(\d{1,2})\b`)

// Period finds the calendar period the text refers to.
func Period(text string) (*models.Period, bool) {
	s := normalize.Fold(normalize.Normalize(text))
	if s == "" {
		return nil, false
	}
	for _, kw := range periodTable {
		if normalize.ContainsWord(s, normalize.Fold(kw.phrase)) {
			p := kw.period
			return &p, true
		}
	}
	if m := reDayOfMonth.FindStringSubmatch(s); m != nil {
		if day, err := strconv.Atoi(m[1]); err == nil && day >= 1 && day <= 31 {
			return &models.Period{Kind: models.PeriodDay, Value: day}, true
		}
	}
	return nil, false
}
