package ui

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rickgao/alice-bridge/internal/router"
)

// Training status lines.
const (
	trainingText       = "Nlu training"
	trainingFailedText = "Nlu training failed..."
	trainingDoneText   = "Nlu training done!"
	maxTrainingDots    = 10
)

// View is the bridge-side copy of the interface state. It is safe for
// concurrent use. The Publisher is called with the view locked and must not
// call back into the View.
type View struct {
	pub    Publisher
	logger *slog.Logger

	mu                  sync.Mutex
	seq                 uint64
	unavailable         bool
	trainingStatus      string
	instructions        string
	instructionsVisible bool
	warnings            []SkillWarnings
	alertVisible        bool
	resourceUsage       string

	reloads atomic.Int64
}

// NewView creates an empty View publishing to pub. A nil pub discards
// updates.
func NewView(pub Publisher, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	return &View{pub: pub, logger: logger}
}

// SetUnavailable shows or hides the unavailable banner.
func (v *View) SetUnavailable(visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.unavailable = visible
	v.publish(Update{Type: UpdateUnavailable, Visible: visible})
}

// SetTrainingStatus advances the NLU training line.
func (v *View) SetTrainingStatus(status string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.trainingStatus = nextTrainingText(v.trainingStatus, status)
	v.publish(Update{Type: UpdateTrainingStatus, Text: v.trainingStatus})
}

// nextTrainingText adds one dot per training message and wraps after ten.
func nextTrainingText(current, status string) string {
	switch status {
	case router.TrainingStatusTraining:
		if current == "" {
			return trainingText
		}
		if strings.Count(current, ".") < maxTrainingDots {
			return current + "."
		}
		return trainingText + "."
	case router.TrainingStatusFailed:
		return trainingFailedText
	case router.TrainingStatusDone:
		return trainingDoneText
	default:
		return current
	}
}

// AppendInstructions adds text to the skill instructions panel and shows it.
func (v *View) AppendInstructions(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.instructions += text
	v.instructionsVisible = true
	v.publish(v.instructionsUpdate())
}

// AddConfigWarning records a pending core config change and shows the alert.
func (v *View) AddConfigWarning(skill, key string, value any) {
	entry := fmt.Sprintf("%s => %v", key, value)

	v.mu.Lock()
	defer v.mu.Unlock()

	found := false
	for i := range v.warnings {
		if v.warnings[i].Skill == skill {
			v.warnings[i].Entries = append(v.warnings[i].Entries, entry)
			found = true
			break
		}
	}
	if !found {
		v.warnings = append(v.warnings, SkillWarnings{Skill: skill, Entries: []string{entry}})
	}
	v.alertVisible = true
	v.publish(v.alertUpdate())
}

// HideConfigAlert closes the config update alert. Warnings are kept until
// the next reload.
func (v *View) HideConfigAlert() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.alertVisible = false
	v.publish(v.alertUpdate())
}

// SetResourceUsage updates the resource usage line.
func (v *View) SetResourceUsage(usage router.ResourceUsage) {
	text := formatResourceUsage(usage)

	v.mu.Lock()
	defer v.mu.Unlock()

	v.resourceUsage = text
	v.publish(Update{Type: UpdateResourceUsage, Text: text})
}

func formatResourceUsage(u router.ResourceUsage) string {
	return fmt.Sprintf("CPU: %g%% RAM: %g%% SWP: %g%%", u.CPU, u.RAM, u.SWP)
}

// Recover resets the view after the core comes back and tells every browser
// to reload.
func (v *View) Recover(reason string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.trainingStatus = ""
	v.instructions = ""
	v.instructionsVisible = false
	v.warnings = nil
	v.alertVisible = false
	v.resourceUsage = ""

	n := v.reloads.Add(1)
	v.logger.Info("reloading interface", "reason", reason, "reloads", n)
	v.publish(Update{Type: UpdateReload, Reason: reason})
}

// Reloads returns how many times Recover has run.
func (v *View) Reloads() int64 {
	return v.reloads.Load()
}

// Snapshot returns the updates that render the current state from scratch.
func (v *View) Snapshot() []Update {
	v.mu.Lock()
	defer v.mu.Unlock()

	updates := []Update{{Type: UpdateUnavailable, Visible: v.unavailable}}
	if v.trainingStatus != "" {
		updates = append(updates, Update{Type: UpdateTrainingStatus, Text: v.trainingStatus})
	}
	if v.instructionsVisible {
		updates = append(updates, v.instructionsUpdate())
	}
	if len(v.warnings) > 0 || v.alertVisible {
		updates = append(updates, v.alertUpdate())
	}
	if v.resourceUsage != "" {
		updates = append(updates, Update{Type: UpdateResourceUsage, Text: v.resourceUsage})
	}
	for i := range updates {
		updates[i].Seq = v.seq
	}
	return updates
}

// instructionsUpdate must be called with mu held.
func (v *View) instructionsUpdate() Update {
	return Update{
		Type:    UpdateInstructions,
		Visible: v.instructionsVisible,
		Text:    v.instructions,
	}
}

// alertUpdate must be called with mu held.
func (v *View) alertUpdate() Update {
	warnings := make([]SkillWarnings, len(v.warnings))
	for i, w := range v.warnings {
		warnings[i] = SkillWarnings{
			Skill:   w.Skill,
			Entries: append([]string(nil), w.Entries...),
		}
	}
	return Update{
		Type:     UpdateConfigAlert,
		Visible:  v.alertVisible,
		Warnings: warnings,
	}
}

// publish must be called with mu held so updates leave in state order.
func (v *View) publish(u Update) {
	v.seq++
	u.Seq = v.seq
	if v.pub != nil {
		v.pub.Publish(u)
	}
}
