package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoles_JSONSpan(t *testing.T) {
	reply := `Claro! Segue o resultado:
{"cargos": [{"nome": "Analista Judiciário", "requisitos": "ensino superior", "salario": "R$ 13.202,62", "carga_horaria": "40h", "vagas": "12"}]}
Espero ter ajudado.`

	parsed := ParseRoles(reply)
	require.True(t, parsed.OK)
	assert.Equal(t, "json_span", parsed.Stage)
	require.Len(t, parsed.Value, 1)
	assert.Equal(t, "Analista Judiciário", parsed.Value[0].Name)
}

func TestParseRoles_FencedBlock(t *testing.T) {
	reply := "Aqui está, com uma chave solta { para atrapalhar:\n```json\n" +
		`{"cargos": [{"nome": "Técnico", "vagas": "5"}]}` + "\n```\n"

	parsed := ParseRoles(reply)
	require.True(t, parsed.OK)
	assert.Equal(t, "fenced_block", parsed.Stage)
	require.Len(t, parsed.Value, 1)
	assert.Equal(t, "Técnico", parsed.Value[0].Name)
	assert.Equal(t, NotInformed, parsed.Value[0].Salary, "missing fields come back as not informed")
}

func TestParseRoles_FieldArray(t *testing.T) {
	// Broken outer JSON, but the cargos array itself is intact.
	reply := `{"resumo": oops, "cargos": [{"nome": "Auditor", "salario": "R$ 21.000,00"}], trailing`

	parsed := ParseRoles(reply)
	require.True(t, parsed.OK)
	assert.Equal(t, "field_array", parsed.Stage)
	require.Len(t, parsed.Value, 1)
	assert.Equal(t, "Auditor", parsed.Value[0].Name)
}

func TestParseRoles_HeuristicFallback(t *testing.T) {
	reply := `Não consegui montar o JSON, mas encontrei o seguinte:
Cargo: Professor de Matemática
Requisitos: licenciatura plena
Salário: R$ 4.580,00
Vagas: 8`

	parsed := ParseRoles(reply)
	require.True(t, parsed.OK, "plain text with cargo lines must be recovered heuristically")
	assert.Equal(t, "heuristic", parsed.Stage)
	require.Len(t, parsed.Value, 1)
	assert.Equal(t, "Professor de Matemática", parsed.Value[0].Name)
	assert.Equal(t, "licenciatura plena", parsed.Value[0].Requirements)
	assert.Equal(t, "R$ 4.580,00", parsed.Value[0].Salary)
	assert.Equal(t, "8", parsed.Value[0].Vacancies)
	assert.Equal(t, NotInformed, parsed.Value[0].Hours)
}

func TestParseRoles_NothingRecoverable(t *testing.T) {
	parsed := ParseRoles("O documento não menciona nenhum papel específico.")
	assert.False(t, parsed.OK)
	assert.Empty(t, parsed.Value)
	assert.NotEmpty(t, parsed.Reason)
}

func TestParseRoles_DropsFullyEmptyRecords(t *testing.T) {
	reply := `{"cargos": [{"nome": "", "requisitos": "", "salario": "", "carga_horaria": "", "vagas": ""}, {"nome": "Escrivão"}]}`
	parsed := ParseRoles(reply)
	require.True(t, parsed.OK)
	require.Len(t, parsed.Value, 1)
	assert.Equal(t, "Escrivão", parsed.Value[0].Name)
}

func TestParseSyllabus_JSONSpan(t *testing.T) {
	reply := `{"conteudo_programatico": [{"disciplina": "Direito Constitucional", "topicos": ["princípios fundamentais", "direitos e garantias"], "bibliografia": ""}]}`

	parsed := ParseSyllabus(reply)
	require.True(t, parsed.OK)
	require.Len(t, parsed.Value, 1)
	assert.Equal(t, "Direito Constitucional", parsed.Value[0].Discipline)
	assert.Len(t, parsed.Value[0].Topics, 2)
	assert.Equal(t, NotInformed, parsed.Value[0].Bibliography)
}

func TestParseSyllabus_FieldArrayKeepsNestedTopics(t *testing.T) {
	// Broken outer JSON; the conteudo_programatico array nests a topicos array,
	// so the extraction must balance brackets instead of stopping at the first ].
	reply := `{"resumo": oops, "conteudo_programatico": [{"disciplina": "Direito Administrativo", "topicos": ["atos administrativos", "licitações"], "bibliografia": ""}], trailing`

	parsed := ParseSyllabus(reply)
	require.True(t, parsed.OK)
	assert.Equal(t, "field_array", parsed.Stage)
	require.Len(t, parsed.Value, 1)
	assert.Equal(t, "Direito Administrativo", parsed.Value[0].Discipline)
	assert.Equal(t, []string{"atos administrativos", "licitações"}, parsed.Value[0].Topics)
}

func TestParseRoles_FieldArrayIgnoresBracketsInsideStrings(t *testing.T) {
	reply := `{"cargos": [{"nome": "Analista [TI]", "requisitos": "ver item ]3["}], quebrado`

	parsed := ParseRoles(reply)
	require.True(t, parsed.OK)
	assert.Equal(t, "field_array", parsed.Stage)
	require.Len(t, parsed.Value, 1)
	assert.Equal(t, "Analista [TI]", parsed.Value[0].Name)
}

func TestParseSyllabus_HeuristicBullets(t *testing.T) {
	reply := `CONTEÚDO PROGRAMÁTICO

Disciplina: Língua Portuguesa
- Interpretação de textos
- Concordância verbal e nominal
1. Regência

Disciplina: Matemática
- Razão e proporção`

	parsed := ParseSyllabus(reply)
	require.True(t, parsed.OK)
	assert.Equal(t, "heuristic", parsed.Stage)
	require.Len(t, parsed.Value, 2)
	assert.Equal(t, "Língua Portuguesa", parsed.Value[0].Discipline)
	assert.Equal(t, []string{"Interpretação de textos", "Concordância verbal e nominal", "Regência"}, parsed.Value[0].Topics)
	assert.Equal(t, []string{"Razão e proporção"}, parsed.Value[1].Topics)
}

func TestSyllabusFromText_BulletsUnderSectionWithoutDiscipline(t *testing.T) {
	text := `Programa da prova:
- Noções de informática
- Raciocínio lógico`

	records := SyllabusFromText(text)
	require.Len(t, records, 1)
	assert.Equal(t, NotInformed, records[0].Discipline)
	assert.Len(t, records[0].Topics, 2)
}

func TestRolesFromText_IgnoresUnrelatedLines(t *testing.T) {
	text := `O presente edital torna pública a abertura do certame.
Nada de listas aqui.`
	assert.Empty(t, RolesFromText(text))
}
