package rag

import (
	"fmt"
	"strings"
	"text/template"

	"ragd/internal/manager"
)

// ChatML markers. The stop list keeps the model from writing the next turn.
const (
	imStart = "<|im_start|>"
	imEnd   = "<|im_end|>"
)

// StopSequences end a ChatML assistant turn.
var StopSequences = []string{imEnd, imStart}

// Supported prompt languages.
const (
	LangGerman  = "de"
	LangEnglish = "en"
)

type promptData struct {
	ModelInfo string
	Context   string
	Question  string
	Hybrid    bool
}

type promptSet struct {
	modelInfo    *template.Template
	noModelInfo  string
	withContext  *template.Template
	plainAnswers *template.Template
}

var funcs = template.FuncMap{"imStart": func() string { return imStart }, "imEnd": func() string { return imEnd }}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}

var prompts = map[string]promptSet{
	LangGerman: {
		modelInfo: mustParse("model_de", `Du bist ein KI-Assistent basierend auf dem Modell **{{.Name}}** ({{.Params}} Parameter).

Deine Fähigkeiten:
- Deutschsprachige Konversation und Textverarbeitung
- Dokumenten-Analyse und Informationsextraktion
- Web-Suche für aktuelle Informationen
- Logisches Denken und Reasoning
- Faktenbasierte Antworten

Technische Details:
- Modell: {{.Name}}
- Parameter: {{.Params}}
- Qualitätsstufe: {{.QualityTier}}
- Optimiert für: {{.Description}}`),
		noModelInfo: "Du bist ein deutschsprachiger KI-Assistent.",
		withContext: mustParse("context_de", `{{imStart}}system
{{.ModelInfo}}

WICHTIGE REGELN:
1. Beantworte AUSSCHLIESSLICH auf Deutsch
2. Nutze NUR Informationen aus den {{if .Hybrid}}Dokumenten und Web-Suchergebnissen{{else}}bereitgestellten Dokumenten{{end}}
3. Zitiere direkt aus den Quellen wenn möglich
4. Wenn die Information nicht vorhanden ist, sage das ehrlich
5. Schreibe in vollständigen, korrekten deutschen Sätzen
6. Sei präzise, sachlich und professionell
{{if .Hybrid}}7. Kennzeichne Web-Informationen mit "Laut Web-Suche:" wenn relevant{{end}}{{imEnd}}
{{imStart}}user
{{if .Hybrid}}INFORMATIONSQUELLEN (Dokumente + Web):{{else}}DOKUMENTEN-AUSZÜGE:{{end}}
{{.Context}}

FRAGE: {{.Question}}

ANTWORT (auf Deutsch, basierend auf den Quellen):{{imEnd}}
{{imStart}}assistant
`),
		plainAnswers: mustParse("plain_de", `{{imStart}}system
{{.ModelInfo}}

Beantworte AUSSCHLIESSLICH auf Deutsch in vollständigen, korrekten Sätzen.
Sei präzise, sachlich und professionell.{{imEnd}}
{{imStart}}user
{{.Question}}{{imEnd}}
{{imStart}}assistant
`),
	},
	LangEnglish: {
		modelInfo: mustParse("model_en", `You are an AI assistant based on the model **{{.Name}}** ({{.Params}} parameters).

Your capabilities:
- Conversation and text processing
- Document analysis and information extraction
- Web search for current information
- Logical reasoning
- Fact-based answers

Technical details:
- Model: {{.Name}}
- Parameters: {{.Params}}
- Quality tier: {{.QualityTier}}
- Optimized for: {{.Description}}`),
		noModelInfo: "You are a helpful AI assistant.",
		withContext: mustParse("context_en", `{{imStart}}system
{{.ModelInfo}}

IMPORTANT RULES:
1. Answer ONLY in English
2. Use ONLY information from the {{if .Hybrid}}documents and web search results{{else}}provided documents{{end}}
3. Quote the sources directly where possible
4. If the information is not present, say so honestly
5. Write complete, correct sentences
6. Be precise, factual and professional
{{if .Hybrid}}7. Mark web information with "According to web search:" where relevant{{end}}{{imEnd}}
{{imStart}}user
{{if .Hybrid}}SOURCES (documents + web):{{else}}DOCUMENT EXCERPTS:{{end}}
{{.Context}}

QUESTION: {{.Question}}

ANSWER (based on the sources):{{imEnd}}
{{imStart}}assistant
`),
		plainAnswers: mustParse("plain_en", `{{imStart}}system
{{.ModelInfo}}

Answer ONLY in English in complete, correct sentences.
Be precise, factual and professional.{{imEnd}}
{{imStart}}user
{{.Question}}{{imEnd}}
{{imStart}}assistant
`),
	},
}

// Prompter renders generation prompts in one language.
type Prompter struct {
	set promptSet
}

// NewPrompter returns the prompter for lang ("de" if empty).
func NewPrompter(lang string) (*Prompter, error) {
	if lang == "" {
		lang = LangGerman
	}
	set, ok := prompts[strings.ToLower(lang)]
	if !ok {
		return nil, fmt.Errorf("unsupported prompt language %q", lang)
	}
	return &Prompter{set: set}, nil
}

// ModelInfo describes the active model for the system instruction. Without
// an active model a generic instruction is returned.
func (p *Prompter) ModelInfo(info manager.ModelInfo, ok bool) string {
	if !ok || info.ID == "" {
		return p.set.noModelInfo
	}
	if info.Params == "" {
		info.Params = "?"
	}
	var b strings.Builder
	if err := p.set.modelInfo.Execute(&b, info); err != nil {
		return p.set.noModelInfo
	}
	return b.String()
}

// WithContext renders a prompt grounded in context chunks. At most
// MaxPromptChunks chunks are used.
func (p *Prompter) WithContext(modelInfo, question string, chunks []string, hybrid bool) (string, error) {
	return render(p.set.withContext, promptData{
		ModelInfo: modelInfo,
		Context:   strings.Join(chunks[:min(len(chunks), MaxPromptChunks)], "\n\n"),
		Question:  question,
		Hybrid:    hybrid,
	})
}

// WithoutContext renders a prompt that relies on the model alone.
func (p *Prompter) WithoutContext(modelInfo, question string) (string, error) {
	return render(p.set.plainAnswers, promptData{ModelInfo: modelInfo, Question: question})
}

func render(t *template.Template, d promptData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, d); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", t.Name(), err)
	}
	return b.String(), nil
}
