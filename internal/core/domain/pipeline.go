package domain

// PipelineConfig is the transient new-pipeline form payload. It exists only
// for the duration of a launch attempt and is sent to the backend verbatim.
type PipelineConfig struct {
	PipelineType  PipelineType   `json:"pipeline_type" validate:"required,oneof=scaffold_hopping molecular_scoring docking md_simulation full_pipeline"`
	Name          string         `json:"name" validate:"required"`
	TargetSMILES  string         `json:"target_molecule" validate:"required"`
	TargetProtein string         `json:"target_protein,omitempty"`
	Params        map[string]any `json:"parameters,omitempty"`
}

// RequiresProtein reports whether the pipeline type needs a protein target.
// Docking and the full pipeline dock against a receptor; the others operate
// on the ligand alone.
func (t PipelineType) RequiresProtein() bool {
	return t == PipelineDocking || t == PipelineFull
}
