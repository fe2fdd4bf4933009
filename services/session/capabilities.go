package session

// Actor command actions. Anything except status is stored and propagated,
// never interpreted by the control plane.
const (
	ActionPlan      = "plan"
	ActionPreview   = "preview"
	ActionApply     = "apply"
	ActionDeploy    = "deploy"
	ActionRollback  = "rollback"
	ActionStatus    = "status"
	ActionAuto      = "auto"
	ActionListPages = "list_pages"
	ActionReadPage  = "read_page"
)

// ConfirmationPhrase must be typed exactly (ignoring case and surrounding
// whitespace) before a high-severity structural action is allowed. Clients
// read it from the capability manifest rather than hardcoding it.
const ConfirmationPhrase = "CONFIRM APPLY"

// Safety levels for the capability manifest
const (
	SafetyLow    = "low"
	SafetyMedium = "medium"
	SafetyHigh   = "high"
)

// ActionSpec describes one action in the capability manifest
type ActionSpec struct {
	Name                 string `json:"name"`
	Safety               string `json:"safety"`
	RequiresConfirmation bool   `json:"requiresConfirmation"`
}

// Manifest is the capability manifest served to clients
type Manifest struct {
	Actions            []ActionSpec `json:"actions"`
	SafetyLevels       []string     `json:"safetyLevels"`
	ConfirmationPhrase string       `json:"confirmationPhrase"`
}

var actionSpecs = []ActionSpec{
	{Name: ActionPlan, Safety: SafetyLow},
	{Name: ActionPreview, Safety: SafetyLow},
	{Name: ActionApply, Safety: SafetyHigh, RequiresConfirmation: true},
	{Name: ActionDeploy, Safety: SafetyHigh, RequiresConfirmation: true},
	{Name: ActionRollback, Safety: SafetyHigh, RequiresConfirmation: true},
	{Name: ActionStatus, Safety: SafetyLow},
	{Name: ActionAuto, Safety: SafetyMedium},
	{Name: ActionListPages, Safety: SafetyLow},
	{Name: ActionReadPage, Safety: SafetyLow},
}

// Capabilities returns the manifest
func Capabilities() Manifest {
	actions := make([]ActionSpec, len(actionSpecs))
	copy(actions, actionSpecs)
	return Manifest{
		Actions:            actions,
		SafetyLevels:       []string{SafetyLow, SafetyMedium, SafetyHigh},
		ConfirmationPhrase: ConfirmationPhrase,
	}
}

// IsValidAction reports whether name is a known action
func IsValidAction(name string) bool {
	for _, spec := range actionSpecs {
		if spec.Name == name {
			return true
		}
	}
	return false
}

// RequiresConfirmation reports whether the action is gated on the
// confirmation phrase
func RequiresConfirmation(name string) bool {
	for _, spec := range actionSpecs {
		if spec.Name == name {
			return spec.RequiresConfirmation
		}
	}
	return false
}
