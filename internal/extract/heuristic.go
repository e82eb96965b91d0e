package extract

import (
	"regexp"
	"strings"
)

// Line patterns of the degraded path. These run over plain text, either a
// model reply that contained no JSON or the raw document text when the
// model-based path is unavailable.
var (
	cargoLineRe    = regexp.MustCompile(`(?i)^\s*(?:cargo|função|emprego)\s*[:\-–]\s*(.+)$`)
	requisitoRe    = regexp.MustCompile(`(?i)^\s*(?:requisitos?|escolaridade)\s*[:\-–]\s*(.+)$`)
	salarioRe      = regexp.MustCompile(`(?i)^\s*(?:remuneração|salário|vencimento)\s*[:\-–]\s*(.+)$`)
	cargaRe        = regexp.MustCompile(`(?i)^\s*(?:carga\s+horária|jornada)\s*[:\-–]\s*(.+)$`)
	vagasRe        = regexp.MustCompile(`(?i)^\s*(?:vagas?|número\s+de\s+vagas)\s*[:\-–]\s*(.+)$`)
	disciplinaRe   = regexp.MustCompile(`(?i)^\s*disciplina\s*[:\-–]\s*(.+)$`)
	bibliografiaRe = regexp.MustCompile(`(?i)^\s*bibliografia\s*[:\-–]\s*(.+)$`)
	sectionRe      = regexp.MustCompile(`(?i)(conteúdo\s+programático|programa\s+da\s+prova|ementa)`)
	bulletRe       = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
)

// RolesFromText pattern-matches "cargo: X" style lines and attaches the
// requirement/salary/hours/vacancy lines that follow to the most recent role.
func RolesFromText(text string) []RoleRecord {
	var roles []RoleRecord
	var current *RoleRecord

	for _, line := range strings.Split(text, "\n") {
		if m := cargoLineRe.FindStringSubmatch(line); m != nil {
			roles = append(roles, RoleRecord{
				Name:         strings.TrimSpace(m[1]),
				Requirements: NotInformed,
				Salary:       NotInformed,
				Hours:        NotInformed,
				Vacancies:    NotInformed,
			})
			current = &roles[len(roles)-1]
			continue
		}
		if current == nil {
			continue
		}
		switch {
		case requisitoRe.MatchString(line):
			current.Requirements = strings.TrimSpace(requisitoRe.FindStringSubmatch(line)[1])
		case salarioRe.MatchString(line):
			current.Salary = strings.TrimSpace(salarioRe.FindStringSubmatch(line)[1])
		case cargaRe.MatchString(line):
			current.Hours = strings.TrimSpace(cargaRe.FindStringSubmatch(line)[1])
		case vagasRe.MatchString(line):
			current.Vacancies = strings.TrimSpace(vagasRe.FindStringSubmatch(line)[1])
		}
	}
	return roles
}

// SyllabusFromText recovers syllabus records from "disciplina:" lines and
// bullet or numbered lists under a detected syllabus section heading.
func SyllabusFromText(text string) []SyllabusRecord {
	var records []SyllabusRecord
	var current *SyllabusRecord
	inSection := false

	for _, line := range strings.Split(text, "\n") {
		if m := disciplinaRe.FindStringSubmatch(line); m != nil {
			records = append(records, SyllabusRecord{
				Discipline:   strings.TrimSpace(m[1]),
				Bibliography: NotInformed,
			})
			current = &records[len(records)-1]
			inSection = true
			continue
		}
		if sectionRe.MatchString(line) {
			inSection = true
			continue
		}
		if current != nil && bibliografiaRe.MatchString(line) {
			current.Bibliography = strings.TrimSpace(bibliografiaRe.FindStringSubmatch(line)[1])
			continue
		}
		if m := bulletRe.FindStringSubmatch(line); m != nil && inSection {
			if current == nil {
				records = append(records, SyllabusRecord{
					Discipline:   NotInformed,
					Bibliography: NotInformed,
				})
				current = &records[len(records)-1]
			}
			current.Topics = append(current.Topics, strings.TrimSpace(m[1]))
		}
	}
	return records
}
