package sheets

import (
	"strings"

	"gradecli/pkg/contracts/domain"
)

// Role is the meaning of a column, independent of how it is spelled.
type Role int

const (
	RoleNone Role = iota
	RoleRank
	RoleName
	RolePoints
	RolePercent
	RoleGrade
)

// exact aliases, compared against the trimmed lowercase header
var (
	nameAliases   = []string{"nazwisko", "imię i nazwisko", "imie i nazwisko"}
	pointsAliases = []string{"ilość punktów", "ilosc punktow", "punkty"}
	rankAliases   = []string{"lp", "lp.", "l.p."}
)

func normHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func inList(s string, list []string) bool {
	for _, v := range list {
		if s == v {
			return true
		}
	}
	return false
}

// AliasRole resolves a header by exact alias only. This is what the
// normalizer uses to decide whether a sheet carries a usable header.
func AliasRole(header string) Role {
	h := normHeader(header)
	switch {
	case inList(h, nameAliases):
		return RoleName
	case inList(h, pointsAliases):
		return RolePoints
	case inList(h, rankAliases):
		return RoleRank
	}
	return RoleNone
}

// CanonicalName returns the canonical column name for an aliased header, or
// the trimmed header unchanged.
func CanonicalName(header string) string {
	switch AliasRole(header) {
	case RoleName:
		return domain.ColumnName
	case RolePoints:
		return domain.ColumnPoints
	case RoleRank:
		return domain.ColumnRank
	}
	return strings.TrimSpace(header)
}

// IsNameHeader reports whether a header looks like a student name column,
// either by exact alias or by substring (nazwisk, imi+nazw, uczeń, uczen).
func IsNameHeader(header string) bool {
	h := normHeader(header)
	if inList(h, nameAliases) {
		return true
	}
	return strings.Contains(h, "nazwisk") ||
		(strings.Contains(h, "imi") && strings.Contains(h, "nazw")) ||
		strings.Contains(h, "uczeń") ||
		strings.Contains(h, "uczen")
}

// IsPointsHeader matches headers containing "punkt" or "pkt".
func IsPointsHeader(header string) bool {
	h := normHeader(header)
	return strings.Contains(h, "punkt") || strings.Contains(h, "pkt")
}

// IsPercentHeader matches headers containing "procent" or "%".
func IsPercentHeader(header string) bool {
	h := normHeader(header)
	return strings.Contains(h, "procent") || strings.Contains(h, "%")
}

// IsGradeHeader matches headers containing "ocena".
func IsGradeHeader(header string) bool {
	return strings.Contains(normHeader(header), "ocena")
}

// ColumnRoles holds the resolved position of each role, -1 when absent.
type ColumnRoles struct {
	Name    int
	Points  int
	Percent int
	Grade   int
}

// ResolveColumns applies the heuristic matchers to a header list. The name
// column is the first header matching IsNameHeader; every other role takes
// the first header matching its predicate.
func ResolveColumns(columns []string) ColumnRoles {
	roles := ColumnRoles{Name: -1, Points: -1, Percent: -1, Grade: -1}
	for i, c := range columns {
		if roles.Name < 0 && IsNameHeader(c) {
			roles.Name = i
		}
		if roles.Points < 0 && IsPointsHeader(c) {
			roles.Points = i
		}
		if roles.Percent < 0 && IsPercentHeader(c) {
			roles.Percent = i
		}
		if roles.Grade < 0 && IsGradeHeader(c) {
			roles.Grade = i
		}
	}
	return roles
}
