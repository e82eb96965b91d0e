package extract

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
)

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

type rolesEnvelope struct {
	Roles []RoleRecord `json:"cargos"`
}

type syllabusEnvelope struct {
	Syllabus []SyllabusRecord `json:"conteudo_programatico"`
}

// ParseRoles recovers role records from a model reply. Fallbacks are ordered
// and each is attempted only if the previous one failed: the largest {...}
// span, then a fenced code block, then the bare "cargos" array, then
// heuristic line parsing.
func ParseRoles(reply string) Parsed[[]RoleRecord] {
	if span, ok := jsonObjectSpan(reply); ok {
		var env rolesEnvelope
		if err := json.Unmarshal([]byte(span), &env); err == nil && len(env.Roles) > 0 {
			return parsedOK(normalizeRoles(env.Roles), "json_span")
		}
	}

	if inner, ok := fencedBlock(reply); ok {
		var env rolesEnvelope
		if err := json.Unmarshal([]byte(inner), &env); err == nil && len(env.Roles) > 0 {
			return parsedOK(normalizeRoles(env.Roles), "fenced_block")
		}
		var bare []RoleRecord
		if err := json.Unmarshal([]byte(inner), &bare); err == nil && len(bare) > 0 {
			return parsedOK(normalizeRoles(bare), "fenced_block")
		}
	}

	if arr, ok := fieldArray(reply, fieldRoles); ok {
		var bare []RoleRecord
		if err := json.Unmarshal([]byte(arr), &bare); err == nil && len(bare) > 0 {
			return parsedOK(normalizeRoles(bare), "field_array")
		}
	}

	if roles := RolesFromText(reply); len(roles) > 0 {
		return parsedOK(roles, "heuristic")
	}

	return parsedFail[[]RoleRecord]("no fallback recovered any role record")
}

// ParseSyllabus mirrors ParseRoles for syllabus records.
func ParseSyllabus(reply string) Parsed[[]SyllabusRecord] {
	if span, ok := jsonObjectSpan(reply); ok {
		var env syllabusEnvelope
		if err := json.Unmarshal([]byte(span), &env); err == nil && len(env.Syllabus) > 0 {
			return parsedOK(normalizeSyllabus(env.Syllabus), "json_span")
		}
	}

	if inner, ok := fencedBlock(reply); ok {
		var env syllabusEnvelope
		if err := json.Unmarshal([]byte(inner), &env); err == nil && len(env.Syllabus) > 0 {
			return parsedOK(normalizeSyllabus(env.Syllabus), "fenced_block")
		}
		var bare []SyllabusRecord
		if err := json.Unmarshal([]byte(inner), &bare); err == nil && len(bare) > 0 {
			return parsedOK(normalizeSyllabus(bare), "fenced_block")
		}
	}

	if arr, ok := fieldArray(reply, fieldSyllabus); ok {
		var bare []SyllabusRecord
		if err := json.Unmarshal([]byte(arr), &bare); err == nil && len(bare) > 0 {
			return parsedOK(normalizeSyllabus(bare), "field_array")
		}
	}

	if records := SyllabusFromText(reply); len(records) > 0 {
		return parsedOK(records, "heuristic")
	}

	return parsedFail[[]SyllabusRecord]("no fallback recovered any syllabus record")
}

// jsonObjectSpan returns the largest {...} span in s.
func jsonObjectSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// fieldArray extracts the JSON array value of the named field even when the
// surrounding object is broken. The scan keeps bracket balance and skips
// brackets inside strings, so nested arrays (syllabus topics) stay intact.
func fieldArray(s, field string) (string, bool) {
	key := `"` + field + `"`
	at := strings.Index(s, key)
	if at < 0 {
		return "", false
	}
	rest := s[at+len(key):]
	open := strings.Index(rest, "[")
	if open < 0 {
		return "", false
	}
	for _, r := range rest[:open] {
		if r != ':' && !unicode.IsSpace(r) {
			return "", false
		}
	}

	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(rest); i++ {
		c := rest[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth == 0 {
				return rest[open : i+1], true
			}
		}
	}
	return "", false
}

func fencedBlock(s string) (string, bool) {
	m := fencedBlockRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func normalizeRoles(roles []RoleRecord) []RoleRecord {
	out := roles[:0]
	for _, r := range roles {
		r.Name = fallbackField(r.Name)
		r.Requirements = fallbackField(r.Requirements)
		r.Salary = fallbackField(r.Salary)
		r.Hours = fallbackField(r.Hours)
		r.Vacancies = fallbackField(r.Vacancies)
		if r.Name == NotInformed && r.Requirements == NotInformed && r.Salary == NotInformed &&
			r.Hours == NotInformed && r.Vacancies == NotInformed {
			continue // fully empty record carries no information
		}
		out = append(out, r)
	}
	return out
}

func normalizeSyllabus(records []SyllabusRecord) []SyllabusRecord {
	out := records[:0]
	for _, r := range records {
		r.Discipline = fallbackField(r.Discipline)
		r.Bibliography = fallbackField(r.Bibliography)
		var topics []string
		for _, topic := range r.Topics {
			if t := strings.TrimSpace(topic); t != "" {
				topics = append(topics, t)
			}
		}
		r.Topics = topics
		if r.Discipline == NotInformed && len(r.Topics) == 0 && r.Bibliography == NotInformed {
			continue
		}
		out = append(out, r)
	}
	return out
}

func fallbackField(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return NotInformed
	}
	return v
}
