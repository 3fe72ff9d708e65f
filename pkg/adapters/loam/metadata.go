package loam

// ScenarioMetadata is the front matter of a scenario document. The
// document body holds the override text.
//
//	---
//	name: high mortality
//	model: hiv
//	settings:
//	  num_iterations: 1000
//	  crn1: true
//	---
//	pDie = 0.2
type ScenarioMetadata struct {
	Name  string `json:"name" mapstructure:"name"`
	Model string `json:"model" mapstructure:"model"`

	// Settings holds the scenario's run settings keyed by their
	// mapstructure names (num_iterations, wtp, ...).
	Settings map[string]any `json:"settings,omitempty" mapstructure:"settings"`
}
