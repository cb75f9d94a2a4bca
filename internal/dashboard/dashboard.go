// Package dashboard derives summary metrics from a snapshot of a user's
// application records. Everything here is a pure function of its input.
package dashboard

import "github.com/zaqqye/applytrack/internal/models"

// DefaultRecent is how many records the dashboard shows as recent.
const DefaultRecent = 3

type StatusCount struct {
	Status models.Status `json:"status"`
	Count  int           `json:"count"`
	Color  string        `json:"color"`
}

type Summary struct {
	Total    int                  `json:"total"`
	ByStatus []StatusCount        `json:"by_status"`
	Recent   []models.Application `json:"recent"`
}

func Total(apps []models.Application) int {
	return len(apps)
}

// GroupByStatus counts records per status in first-seen order. Statuses that
// do not occur are omitted. Values outside the enum share the Unknown bucket.
func GroupByStatus(apps []models.Application) []StatusCount {
	out := make([]StatusCount, 0, len(models.Statuses))
	idx := make(map[models.Status]int, len(models.Statuses))
	for _, a := range apps {
		st := bucket(a.Status)
		i, ok := idx[st]
		if !ok {
			i = len(out)
			idx[st] = i
			out = append(out, StatusCount{Status: st, Color: st.Color()})
		}
		out[i].Count++
	}
	return out
}

// Recent returns the first n records in input order. The result shares the
// backing array with apps.
func Recent(apps []models.Application, n int) []models.Application {
	if n <= 0 {
		return []models.Application{}
	}
	if n > len(apps) {
		n = len(apps)
	}
	return apps[:n]
}

func Summarize(apps []models.Application, recent int) Summary {
	return Summary{
		Total:    Total(apps),
		ByStatus: GroupByStatus(apps),
		Recent:   Recent(apps, recent),
	}
}

func bucket(s models.Status) models.Status {
	if s.Valid() {
		return s
	}
	if st, ok := models.ParseStatus(string(s)); ok {
		return st
	}
	return models.StatusUnknown
}
