package model

// StageName identifies one of the five ordered pipeline stages.
type StageName string

const (
	StageDataExtraction    StageName = "data_extraction"
	StageInsightAnalysis   StageName = "insight_analysis"
	StageStrategySynthesis StageName = "strategy_synthesis"
	StageDocumentWriting   StageName = "document_writing"
	StageAssembly          StageName = "assembly"
)

// StageOrder is the fixed execution order of the pipeline.
var StageOrder = []StageName{
	StageDataExtraction,
	StageInsightAnalysis,
	StageStrategySynthesis,
	StageDocumentWriting,
	StageAssembly,
}

// StagePhase is the tagged state of one stage entry in a progress snapshot.
type StagePhase string

const (
	StagePending    StagePhase = "pending"
	StageInProgress StagePhase = "in_progress"
	StageDone       StagePhase = "done"
	StageFailed     StagePhase = "failed"
)

// StageState is one entry in a progress snapshot.
type StageState struct {
	Phase   StagePhase     `json:"phase"`
	Message string         `json:"message,omitempty"`
	Digest  map[string]int `json:"digest,omitempty"`
}

// Progress is an immutable snapshot of pipeline progress, one entry per
// stage. Consumers read whole snapshots; the tracker replaces them whole.
type Progress struct {
	Stages map[StageName]StageState `json:"stages"`
}

// Overall returns completed stages over total stages, in [0, 1].
func (p Progress) Overall() float64 {
	if len(p.Stages) == 0 {
		return 0
	}
	done := 0
	for _, s := range p.Stages {
		if s.Phase == StageDone {
			done++
		}
	}
	return float64(done) / float64(len(p.Stages))
}
