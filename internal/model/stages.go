package model

// Stage output contracts. Each stage of the generation pipeline returns
// exactly one of these types, schema-validated at the model-call boundary.
// Internal code consumes the typed records only.

// DataAnalysis is the output of the data-extraction stage.
type DataAnalysis struct {
	ContractInfo    ContractInfo     `json:"contract_info" validate:"required"`
	EntityInfo      EntityInfo       `json:"entity_info" validate:"required"`
	GapAnalysis     GapAnalysis      `json:"gap_analysis"`
	Opportunity     Opportunity      `json:"opportunity_assessment"`
	Compliance      Compliance       `json:"compliance_requirements"`
	Technical       []string         `json:"technical_requirements"`
	PricingAndTerms string           `json:"pricing_and_terms"`
	SourceDocuments []DocumentDigest `json:"source_documents,omitempty"`
}

// ContractInfo summarizes the RFQ.
type ContractInfo struct {
	Type         string   `json:"type" validate:"required"`
	Scope        string   `json:"scope" validate:"required"`
	Requirements []string `json:"requirements"`
	Deliverables []string `json:"deliverables"`
	Locations    []string `json:"locations"`
	Timeline     string   `json:"timeline"`
	SetAside     string   `json:"set_aside"`
}

// EntityInfo summarizes the bidding company.
type EntityInfo struct {
	Capability   string `json:"capability" validate:"required"`
	Experience   string `json:"experience"`
	BusinessType string `json:"business_type"`
}

// GapAnalysis captures the NAICS alignment and the gaps between what the
// contract requires and what the entity offers. The code-alignment fields are
// recomputed deterministically from the input records after the model call.
type GapAnalysis struct {
	Required       string   `json:"required_naics"`
	EntityPrimary  string   `json:"entity_primary_naics"`
	IsMatch        bool     `json:"is_match"`
	CapabilityGaps []string `json:"capability_gaps"`
	ComplianceGaps []string `json:"compliance_gaps"`
	RiskFactors    []string `json:"risk_factors"`
}

// Opportunity assesses the entity's chances on this contract.
type Opportunity struct {
	WinFactors       []string `json:"win_factors"`
	Positioning      string   `json:"positioning"`
	ValueProposition string   `json:"value_proposition"`
	WinProbability   int      `json:"win_probability" validate:"min=0,max=100"`
}

// Compliance lists what a conforming submission must include.
type Compliance struct {
	RequiredForms    []RequiredForm `json:"required_forms"`
	Certifications   []string       `json:"certifications"`
	SubmissionMethod string         `json:"submission_method"`
}

// FormCriticality tiers a required form.
type FormCriticality string

const (
	FormRequired    FormCriticality = "required"
	FormOptional    FormCriticality = "optional"
	FormConditional FormCriticality = "conditional"
)

// RequiredForm names one form the submission must (or may) include.
type RequiredForm struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Criticality FormCriticality `json:"criticality" validate:"omitempty,oneof=required optional conditional"`
}

// DocumentDigest summarizes one externally processed source document.
type DocumentDigest struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// Insights is the output of the insight-analysis stage.
type Insights struct {
	Requirements  []string       `json:"requirements" validate:"required,min=1"`
	Gaps          []string       `json:"gaps"`
	RiskFactors   []string       `json:"risk_factors"`
	Opportunities []string       `json:"opportunities"`
	Compliance    []string       `json:"compliance_items"`
	Strategic     StrategicNotes `json:"insights"`
}

// StrategicNotes is the small insights object steering strategy synthesis.
type StrategicNotes struct {
	NAICSStrategy        string `json:"naics_strategy"`
	CompetitiveAdvantage string `json:"competitive_advantage"`
	RiskMitigation       string `json:"risk_mitigation"`
}

// Strategy is the output of the strategy-synthesis stage.
type Strategy struct {
	Positioning      string          `json:"positioning" validate:"required"`
	GapMitigation    string          `json:"gap_mitigation"`
	ValueProposition []string        `json:"value_proposition"`
	WinProbability   int             `json:"win_probability" validate:"min=0,max=100"`
	PricingStrategy  string          `json:"pricing_strategy"`
	Content          ContentStrategy `json:"content_strategy"`
}

// ContentStrategy steers the document-writing stage.
type ContentStrategy struct {
	KeyMessages []string `json:"key_messages"`
	Tone        string   `json:"tone"`
	Structure   string   `json:"structure"`
}

// Proposal is the output of the document-writing stage: legacy flat narrative
// fields plus the primary artifact, the ordered flat block list.
type Proposal struct {
	CompanyInfo       string         `json:"company_info"`
	TechnicalResponse string         `json:"technical_response"`
	Narrative         string         `json:"narrative"`
	PricingDetails    string         `json:"pricing_details"`
	SubmissionForms   []string       `json:"submission_forms"`
	Blocks            []ContentBlock `json:"blocks" validate:"required,min=1,dive"`
}

// StageOutputs bundles all four stage outputs for traceability on the final
// document envelope.
type StageOutputs struct {
	DataAnalysis *DataAnalysis `json:"data_analysis,omitempty"`
	Insights     *Insights     `json:"insights,omitempty"`
	Strategy     *Strategy     `json:"strategy,omitempty"`
	Proposal     *Proposal     `json:"proposal,omitempty"`
}
