package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/regulait/parecer/internal/core/domain"
)

type ValidatorWeights struct {
	EvidencePresence    float64
	LexicalOverlap      float64
	CitationConsistency float64
	AnswerLength        float64
}

type ValidatorThresholds struct {
	High   float64
	Medium float64
	Low    float64
}

type ValidatorConfig struct {
	Weights        ValidatorWeights
	Thresholds     ValidatorThresholds
	MinAnswerChars int
	WarnBelow      float64
}

func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		Weights: ValidatorWeights{
			EvidencePresence:    0.2,
			LexicalOverlap:      0.4,
			CitationConsistency: 0.3,
			AnswerLength:        0.1,
		},
		Thresholds: ValidatorThresholds{
			High:   0.75,
			Medium: 0.5,
			Low:    0.25,
		},
		MinAnswerChars: 40,
		WarnBelow:      0.5,
	}
}

// Validator grades an answer against the evidence it was generated from. It
// is deliberately model-free: cheap lexical heuristics produce a support
// score in [0,1] and a confidence label, so every answer ships with a
// machine-checkable quality signal even when the generator hallucinates.
type Validator struct {
	cfg      ValidatorConfig
	totalW   float64
	bracket  *regexp.Regexp
	pageRefs *regexp.Regexp
}

func NewValidator(cfg ValidatorConfig) *Validator {
	def := DefaultValidatorConfig()
	if cfg.Weights.EvidencePresence <= 0 &&
		cfg.Weights.LexicalOverlap <= 0 &&
		cfg.Weights.CitationConsistency <= 0 &&
		cfg.Weights.AnswerLength <= 0 {
		cfg.Weights = def.Weights
	}
	if cfg.Thresholds.High <= 0 {
		cfg.Thresholds = def.Thresholds
	}
	if cfg.Thresholds.Medium > cfg.Thresholds.High {
		cfg.Thresholds.Medium = cfg.Thresholds.High
	}
	if cfg.Thresholds.Low > cfg.Thresholds.Medium {
		cfg.Thresholds.Low = cfg.Thresholds.Medium
	}
	if cfg.MinAnswerChars <= 0 {
		cfg.MinAnswerChars = def.MinAnswerChars
	}
	if cfg.WarnBelow <= 0 {
		cfg.WarnBelow = def.WarnBelow
	}

	total := cfg.Weights.EvidencePresence + cfg.Weights.LexicalOverlap +
		cfg.Weights.CitationConsistency + cfg.Weights.AnswerLength

	return &Validator{
		cfg:      cfg,
		totalW:   total,
		bracket:  regexp.MustCompile(`\[(\d+)\]`),
		pageRefs: regexp.MustCompile(`(?i)p[áa]gina\s+(\d+)`),
	}
}

// Validate scores how well the answer is supported by the evidence. Empty
// evidence always yields INSUFFICIENT no matter what the heuristics say.
func (v *Validator) Validate(question, answer string, evidence []domain.Evidence) domain.ValidationVerdict {
	presence := v.scorePresence(evidence)
	overlap := v.scoreOverlap(answer, evidence)
	citation, citationNeutral := v.scoreCitations(answer, evidence)
	length := v.scoreLength(question, answer)

	weightSum := v.totalW
	weighted := v.cfg.Weights.EvidencePresence*presence +
		v.cfg.Weights.LexicalOverlap*overlap +
		v.cfg.Weights.AnswerLength*length
	if citationNeutral {
		weightSum -= v.cfg.Weights.CitationConsistency
	} else {
		weighted += v.cfg.Weights.CitationConsistency * citation
	}

	support := 0.0
	if weightSum > 0 {
		support = weighted / weightSum
	}
	support = clamp01(support)

	var warnings []string
	if presence < v.cfg.WarnBelow {
		warnings = append(warnings, "Nenhuma evidência retornada para sustentar a resposta.")
	}
	if overlap < v.cfg.WarnBelow {
		warnings = append(warnings, "Baixa sobreposição lexical entre a resposta e as evidências.")
	}
	if !citationNeutral && citation < v.cfg.WarnBelow {
		warnings = append(warnings, "Citações da resposta não correspondem às evidências recuperadas.")
	}
	if length == 0 {
		warnings = append(warnings, "Resposta vazia, muito curta ou mera repetição da pergunta.")
	}

	label := v.label(support)
	if len(evidence) == 0 {
		label = domain.ConfidenceInsufficient
	}

	return domain.ValidationVerdict{
		ConfidenceLabel: label,
		SupportScore:    support,
		Warnings:        warnings,
	}
}

func (v *Validator) label(support float64) domain.ConfidenceLabel {
	switch {
	case support >= v.cfg.Thresholds.High:
		return domain.ConfidenceHigh
	case support >= v.cfg.Thresholds.Medium:
		return domain.ConfidenceMedium
	case support >= v.cfg.Thresholds.Low:
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceInsufficient
	}
}

func (v *Validator) scorePresence(evidence []domain.Evidence) float64 {
	if len(evidence) == 0 {
		return 0
	}
	return 1
}

// scoreOverlap measures the share of content terms in the answer that also
// appear in the evidence as presented to the generator, which includes the
// excerpt text plus the source, page and type metadata from the header line.
func (v *Validator) scoreOverlap(answer string, evidence []domain.Evidence) float64 {
	answerTerms := contentTerms(answer)
	if len(answerTerms) == 0 {
		return 0
	}

	corpus := make(map[string]struct{})
	for _, ev := range evidence {
		addTokens(corpus, ev.TextExcerpt)
		addTokens(corpus, ev.DocumentID)
		addTokens(corpus, ev.SourceLabel)
		addTokens(corpus, ev.DocType)
		if ev.PageNumber > 0 {
			addTokens(corpus, fmt.Sprintf("página %d", ev.PageNumber))
		}
	}
	if len(corpus) == 0 {
		return 0
	}

	matched := 0
	for term := range answerTerms {
		if _, ok := corpus[term]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(answerTerms))
}

// scoreCitations checks the explicit references the answer makes against the
// evidence list: [n] markers must point at a valid evidence position,
// document identifiers must belong to a retrieved document and page mentions
// must match a retrieved page. Answers with no detectable references return
// neutral=true so the component is excluded instead of penalized.
func (v *Validator) scoreCitations(answer string, evidence []domain.Evidence) (score float64, neutral bool) {
	total := 0
	matched := 0

	for _, m := range v.bracket.FindAllStringSubmatch(answer, -1) {
		total++
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= len(evidence) {
			matched++
		}
	}

	lowerAnswer := strings.ToLower(answer)
	seenDocs := make(map[string]struct{})
	for _, ev := range evidence {
		for _, id := range []string{ev.DocumentID, ev.SourceLabel} {
			id = strings.ToLower(strings.TrimSpace(id))
			if len(id) < 3 {
				continue
			}
			if _, dup := seenDocs[id]; dup {
				continue
			}
			seenDocs[id] = struct{}{}
			if strings.Contains(lowerAnswer, id) {
				total++
				matched++
			}
		}
	}

	pages := make(map[int]struct{})
	for _, ev := range evidence {
		if ev.PageNumber > 0 {
			pages[ev.PageNumber] = struct{}{}
		}
	}
	for _, m := range v.pageRefs.FindAllStringSubmatch(answer, -1) {
		total++
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, ok := pages[n]; ok {
			matched++
		}
	}

	if total == 0 {
		return 0, true
	}
	return float64(matched) / float64(total), false
}

func (v *Validator) scoreLength(question, answer string) float64 {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return 0
	}
	if normalizeForCompare(trimmed) == normalizeForCompare(question) {
		return 0
	}
	if len([]rune(trimmed)) < v.cfg.MinAnswerChars {
		return 0
	}
	return 1
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func normalizeForCompare(s string) string {
	return strings.Join(tokenize(s), " ")
}

// contentTerms returns the distinct non-stopword tokens of s.
func contentTerms(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range tokenize(s) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if len([]rune(tok)) < 2 {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

func addTokens(dst map[string]struct{}, s string) {
	for _, tok := range tokenize(s) {
		dst[tok] = struct{}{}
	}
}

// tokenize lowercases and splits on any rune that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// stopwords covers the Portuguese function words common in regulatory prose
// plus a small English set for mixed-language documents.
var stopwords = map[string]struct{}{
	"a": {}, "à": {}, "às": {}, "ao": {}, "aos": {}, "as": {}, "o": {}, "os": {},
	"um": {}, "uma": {}, "uns": {}, "umas": {},
	"de": {}, "do": {}, "da": {}, "dos": {}, "das": {}, "em": {}, "no": {}, "na": {},
	"nos": {}, "nas": {}, "por": {}, "pelo": {}, "pela": {}, "pelos": {}, "pelas": {},
	"para": {}, "com": {}, "sem": {}, "sob": {}, "sobre": {}, "entre": {}, "até": {},
	"e": {}, "ou": {}, "mas": {}, "se": {}, "que": {}, "como": {}, "mais": {}, "menos": {},
	"não": {}, "sim": {}, "já": {}, "também": {}, "ainda": {}, "quando": {}, "onde": {},
	"é": {}, "são": {}, "foi": {}, "foram": {}, "ser": {}, "sendo": {}, "sido": {},
	"está": {}, "estão": {}, "ter": {}, "tem": {}, "têm": {}, "há": {},
	"seu": {}, "sua": {}, "seus": {}, "suas": {}, "este": {}, "esta": {}, "estes": {},
	"estas": {}, "esse": {}, "essa": {}, "esses": {}, "essas": {}, "isso": {}, "isto": {},
	"aquele": {}, "aquela": {}, "segundo": {}, "conforme": {}, "mediante": {},
	"the": {}, "of": {}, "to": {}, "and": {}, "in": {}, "is": {}, "are": {}, "for": {},
	"on": {}, "that": {}, "this": {}, "with": {}, "by": {}, "at": {}, "be": {},
	"an": {}, "or": {}, "it": {}, "from": {},
}
