// Package extract converts unstructured exam-notice ("edital") text into
// fixed-schema role and syllabus records, with a chain of parsing fallbacks
// for malformed model output.
package extract

// NotInformed marks a field that was absent from the retrieved context.
// Fields are never filled from general knowledge.
const NotInformed = "não informado"

type RoleRecord struct {
	Name         string `json:"nome"`
	Requirements string `json:"requisitos"`
	Salary       string `json:"salario"`
	Hours        string `json:"carga_horaria"`
	Vacancies    string `json:"vagas"`
}

type SyllabusRecord struct {
	Discipline   string   `json:"disciplina"`
	Topics       []string `json:"topicos"`
	Bibliography string   `json:"bibliografia"`
}

// Result is the structured payload persisted on the document. Re-analysis
// overwrites it, never appends.
type Result struct {
	Roles    []RoleRecord     `json:"cargos"`
	Syllabus []SyllabusRecord `json:"conteudo_programatico"`

	// Partial flags that at least one field came back empty after every
	// fallback. Visible and non-fatal: an empty field is reported, never
	// papered over with invented records.
	Partial bool `json:"partial"`

	// RawResponses keeps the model's verbatim replies per field for audit.
	RawResponses map[string]string `json:"raw_responses,omitempty"`
}

// Parsed is a tagged parse outcome: each fallback stage is an explicit
// variant instead of nested recovery on untyped payloads.
type Parsed[T any] struct {
	OK    bool
	Value T
	// Stage names the fallback that produced the value: "json_span",
	// "fenced_block", "field_array" or "heuristic".
	Stage  string
	Reason string
}

func parsedOK[T any](value T, stage string) Parsed[T] {
	return Parsed[T]{OK: true, Value: value, Stage: stage}
}

func parsedFail[T any](reason string) Parsed[T] {
	return Parsed[T]{Reason: reason}
}
