package models

import "strings"

// Canonical session status labels, as used by the check-in form.
const (
	StatusRealized            = "realized"
	StatusMissedWithMakeup    = "missed_with_makeup"
	StatusMissedWithoutMakeup = "missed_without_makeup"
)

// sessionStatusMap maps lowercased status labels to their canonical form.
// Covers English, the Portuguese labels used by the check-in form and a
// few spellings seen in exported spreadsheets.
var sessionStatusMap = map[string]string{
	// English
	"realized":              StatusRealized,
	"done":                  StatusRealized,
	"trained":               StatusRealized,
	"missed_with_makeup":    StatusMissedWithMakeup,
	"makeup":                StatusMissedWithMakeup,
	"missed_without_makeup": StatusMissedWithoutMakeup,
	"missed":                StatusMissedWithoutMakeup,
	"no_show":               StatusMissedWithoutMakeup,

	// Portuguese
	"realizada":           StatusRealized,
	"realizado":           StatusRealized,
	"presente":            StatusRealized,
	"falta_com_reposicao": StatusMissedWithMakeup,
	"falta com reposição": StatusMissedWithMakeup,
	"falta com reposicao": StatusMissedWithMakeup,
	"reposição":           StatusMissedWithMakeup,
	"reposicao":           StatusMissedWithMakeup,
	"falta_sem_reposicao": StatusMissedWithoutMakeup,
	"falta sem reposição": StatusMissedWithoutMakeup,
	"falta sem reposicao": StatusMissedWithoutMakeup,
	"falta":               StatusMissedWithoutMakeup,
}

// NormalizeSessionStatus maps a status label to its canonical name.
// Returns the canonical name and true if recognized, or the original string
// and false if unknown.
func NormalizeSessionStatus(raw string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := sessionStatusMap[lower]; ok {
		return canonical, true
	}
	return raw, false
}
