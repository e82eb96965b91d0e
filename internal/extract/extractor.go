package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"estudai.com/study-platform/internal/llm"
	"estudai.com/study-platform/internal/rag"
	"estudai.com/study-platform/internal/vectorindex"
)

const (
	fieldRoles    = "cargos"
	fieldSyllabus = "conteudo_programatico"

	retrieveTopK        = 8
	defaultContextChars = 10000
)

// Targeted retrieval queries per semantic field. Several paraphrases of the
// same informational need give broad coverage of the document.
var (
	roleQueries = []string{
		"cargos oferecidos no concurso",
		"requisitos e escolaridade exigida para o cargo",
		"remuneração e salário do cargo",
		"carga horária de trabalho",
		"número de vagas por cargo",
	}
	syllabusQueries = []string{
		"disciplinas cobradas na prova",
		"conteúdo programático das disciplinas",
		"tópicos e temas do programa da prova",
		"bibliografia sugerida ou obrigatória",
	}
)

// ContextRetriever is the slice of the retrieval pipeline the extractor
// needs. *rag.Retriever satisfies this.
type ContextRetriever interface {
	Retrieve(ctx context.Context, queries []string, opts rag.Options) ([]vectorindex.Candidate, error)
}

type Extractor struct {
	retriever    ContextRetriever
	model        llm.GenerativeModel
	router       *llm.Router
	contextChars int
	log          *logrus.Logger
}

func NewExtractor(retriever ContextRetriever, model llm.GenerativeModel, router *llm.Router, log *logrus.Logger) *Extractor {
	if router == nil {
		router = llm.NewRouter()
	}
	if log == nil {
		log = logrus.New()
	}
	return &Extractor{
		retriever:    retriever,
		model:        model,
		router:       router,
		contextChars: defaultContextChars,
		log:          log,
	}
}

// Analyze extracts role and syllabus records for one document. A field whose
// retrieval comes back empty is reported empty and flagged partial; a record
// is never invented to avoid an empty response.
func (e *Extractor) Analyze(ctx context.Context, ownerKey, documentID string) (*Result, error) {
	filter := vectorindex.Filter{UserID: ownerKey, DocumentID: documentID}
	result := &Result{RawResponses: make(map[string]string)}

	roleCtx, err := e.fieldContext(ctx, roleQueries, filter)
	if err != nil {
		return nil, fmt.Errorf("role context retrieval failed: %w", err)
	}
	if roleCtx == "" {
		e.log.WithField("document", documentID).Info("No context for roles, reporting empty field")
		result.Partial = true
	} else {
		reply, err := e.model.Complete(ctx, rolePrompt(roleCtx), e.router.ProfileFor(llm.TaskExtraction))
		if err != nil {
			return nil, fmt.Errorf("role extraction call failed: %w", err)
		}
		result.RawResponses[fieldRoles] = reply

		parsed := ParseRoles(reply)
		if parsed.OK {
			result.Roles = parsed.Value
			e.log.WithFields(logrus.Fields{"stage": parsed.Stage, "records": len(parsed.Value)}).Debug("Roles parsed")
		} else {
			e.log.WithField("reason", parsed.Reason).Warn("Role parsing exhausted every fallback")
			result.Partial = true
		}
	}

	syllCtx, err := e.fieldContext(ctx, syllabusQueries, filter)
	if err != nil {
		return nil, fmt.Errorf("syllabus context retrieval failed: %w", err)
	}
	if syllCtx == "" {
		e.log.WithField("document", documentID).Info("No context for syllabus, reporting empty field")
		result.Partial = true
	} else {
		reply, err := e.model.Complete(ctx, syllabusPrompt(syllCtx), e.router.ProfileFor(llm.TaskExtraction))
		if err != nil {
			return nil, fmt.Errorf("syllabus extraction call failed: %w", err)
		}
		result.RawResponses[fieldSyllabus] = reply

		parsed := ParseSyllabus(reply)
		if parsed.OK {
			result.Syllabus = parsed.Value
			e.log.WithFields(logrus.Fields{"stage": parsed.Stage, "records": len(parsed.Value)}).Debug("Syllabus parsed")
		} else {
			e.log.WithField("reason", parsed.Reason).Warn("Syllabus parsing exhausted every fallback")
			result.Partial = true
		}
	}

	return result, nil
}

// AnalyzeLocal runs the regex/heuristic pass directly over raw document text.
// It is the degraded path when the model-based pipeline is unavailable.
func (e *Extractor) AnalyzeLocal(rawText string) *Result {
	result := &Result{
		Roles:    RolesFromText(rawText),
		Syllabus: SyllabusFromText(rawText),
	}
	result.Partial = len(result.Roles) == 0 || len(result.Syllabus) == 0
	return result
}

func (e *Extractor) fieldContext(ctx context.Context, queries []string, filter vectorindex.Filter) (string, error) {
	candidates, err := e.retriever.Retrieve(ctx, queries, rag.Options{TopK: retrieveTopK, Filter: filter})
	if err != nil {
		return "", err
	}
	return rag.AssembleContext(candidates, e.contextChars), nil
}

func rolePrompt(contextText string) string {
	var b strings.Builder
	b.WriteString("Extraia os cargos do edital abaixo. Responda somente com JSON válido no formato:\n")
	b.WriteString(`{"cargos": [{"nome": "...", "requisitos": "...", "salario": "...", "carga_horaria": "...", "vagas": "..."}]}`)
	b.WriteString("\n\nRegras: use apenas informações presentes no contexto. ")
	b.WriteString(`Se um campo não constar no contexto, preencha com "não informado". Não deduza nada de conhecimento geral.`)
	b.WriteString("\n\n--- CONTEXTO ---\n")
	b.WriteString(contextText)
	b.WriteString("\n--- FIM ---")
	return b.String()
}

func syllabusPrompt(contextText string) string {
	var b strings.Builder
	b.WriteString("Extraia o conteúdo programático do edital abaixo. Responda somente com JSON válido no formato:\n")
	b.WriteString(`{"conteudo_programatico": [{"disciplina": "...", "topicos": ["..."], "bibliografia": "..."}]}`)
	b.WriteString("\n\nRegras: use apenas informações presentes no contexto. ")
	b.WriteString(`Se um campo não constar no contexto, preencha com "não informado". Não deduza nada de conhecimento geral.`)
	b.WriteString("\n\n--- CONTEXTO ---\n")
	b.WriteString(contextText)
	b.WriteString("\n--- FIM ---")
	return b.String()
}
