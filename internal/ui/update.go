package ui

// UpdateType names the widget an Update renders.
type UpdateType string

const (
	UpdateUnavailable    UpdateType = "unavailable"
	UpdateTrainingStatus UpdateType = "training_status"
	UpdateInstructions   UpdateType = "instructions"
	UpdateConfigAlert    UpdateType = "config_alert"
	UpdateResourceUsage  UpdateType = "resource_usage"
	UpdateReload         UpdateType = "reload"
)

// Update is the JSON document sent to browsers. Each update carries the full
// state of its widget so clients can apply updates idempotently, and a
// sequence number so clients can skip updates older than their snapshot.
type Update struct {
	Seq      uint64          `json:"seq"`
	Type     UpdateType      `json:"type"`
	Visible  bool            `json:"visible,omitempty"`
	Text     string          `json:"text,omitempty"`
	Warnings []SkillWarnings `json:"warnings,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

// SkillWarnings groups pending config changes requested by one skill.
type SkillWarnings struct {
	Skill   string   `json:"skill"`
	Entries []string `json:"entries"` // "key => value"
}

// Command is an inbound browser request.
type Command struct {
	Type string `json:"type"`
}

// Browser command types.
const (
	CommandAcceptConfigUpdate = "acceptConfigUpdate"
	CommandRefuseConfigUpdate = "refuseConfigUpdate"
)

// Publisher delivers updates to connected browsers.
type Publisher interface {
	Publish(u Update)
}
