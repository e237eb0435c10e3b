package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type ScoringMethodology string

const (
	ScoringLikert   ScoringMethodology = "likert"
	ScoringBinary   ScoringMethodology = "binary"
	ScoringWeighted ScoringMethodology = "weighted"
)

type ConfidentialityLevel string

const (
	ConfidentialityStandard ConfidentialityLevel = "standard"
	ConfidentialityHigh     ConfidentialityLevel = "high"
	ConfidentialityCritical ConfidentialityLevel = "critical"
)

// Settings is the structured form of the assessment settings column.
type Settings struct {
	Category                   Category             `json:"category"`
	Domains                    []string             `json:"domains"`
	AnonymousResponses         bool                 `json:"anonymousResponses"`
	ScoringMethodology         ScoringMethodology   `json:"scoringMethodology"`
	CompletionTime             int                  `json:"completionTime"`
	ConfidentialityLevel       ConfidentialityLevel `json:"confidentialityLevel"`
	ProfessionalInterpretation bool                 `json:"professionalInterpretation"`
	ClinicalMinScore           float64              `json:"clinicalMinScore"`
	ClinicalMaxScore           float64              `json:"clinicalMaxScore"`
	RiskAssessmentEnabled      bool                 `json:"riskAssessmentEnabled"`
	ProfessionalGuidelines     string               `json:"professionalGuidelines,omitempty"`
	ConsentContent             string               `json:"consentContent"`
	EthicalApproval            bool                 `json:"ethicalApproval"`
	Questions                  []Question           `json:"questions"`
}

// DecodeSettings parses a settings document, rejecting fields it does not know.
func DecodeSettings(raw []byte) (Settings, error) {
	var s Settings
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return s, nil
	}
	if err := decodeStrict(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if s.Category != "" && !s.Category.Valid() {
		return Settings{}, fmt.Errorf("decode settings: unknown category %q", s.Category)
	}
	for _, q := range s.Questions {
		if !q.Type.Valid() {
			return Settings{}, fmt.Errorf("decode settings: question %s has unknown type %q", q.ID, q.Type)
		}
	}
	return s, nil
}

// Demographics is the structured form of the examinee demographic_data column.
type Demographics struct {
	Gender        string `json:"gender,omitempty"`
	Education     string `json:"education,omitempty"`
	Occupation    string `json:"occupation,omitempty"`
	MaritalStatus string `json:"maritalStatus,omitempty"`
	Language      string `json:"language,omitempty"`
	Country       string `json:"country,omitempty"`
}

// DecodeDemographics parses demographic data, rejecting fields it does not know.
func DecodeDemographics(raw []byte) (Demographics, error) {
	var d Demographics
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return d, nil
	}
	if err := decodeStrict(raw, &d); err != nil {
		return Demographics{}, fmt.Errorf("decode demographics: %w", err)
	}
	return d, nil
}

func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
