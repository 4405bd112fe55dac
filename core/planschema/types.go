package planschema

// Plan statuses tracked in frontmatter.
const (
	StatusNotStarted = "not-started"
	StatusInProgress = "in-progress"
	StatusComplete   = "complete"
	StatusBlocked    = "blocked"
)

// Phase statuses tracked in phase headings.
const (
	PhasePending    = "PENDING"
	PhaseInProgress = "IN PROGRESS"
	PhaseComplete   = "COMPLETE"
	PhaseBlocked    = "BLOCKED"
)

// Plan is the validated form of a plan document. Instances only exist on the
// far side of Validate; downstream code never re-inspects raw shapes.
type Plan struct {
	Frontmatter Frontmatter    `json:"frontmatter"`
	Goal        string         `json:"goal"`
	Context     []ContextEntry `json:"context,omitempty"`
	Phases      []Phase        `json:"phases"`
}

type Frontmatter struct {
	Status  string `json:"status"`
	Phase   int    `json:"phase"`
	Updated string `json:"updated"`
}

type ContextEntry struct {
	Decision  string `json:"decision"`
	Rationale string `json:"rationale"`
	Source    string `json:"source"`
}

type Phase struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Tasks  []Task `json:"tasks"`
}

type Task struct {
	ID        string `json:"id"`
	Checked   bool   `json:"checked"`
	Content   string `json:"content"`
	IsCurrent bool   `json:"isCurrent,omitempty"`
	Citation  string `json:"citation,omitempty"`
}

// CurrentTask returns the task flagged as actively worked, or nil. Validation
// guarantees at most one such task exists.
func (p *Plan) CurrentTask() *Task {
	for phaseIndex := range p.Phases {
		for taskIndex := range p.Phases[phaseIndex].Tasks {
			if p.Phases[phaseIndex].Tasks[taskIndex].IsCurrent {
				return &p.Phases[phaseIndex].Tasks[taskIndex]
			}
		}
	}
	return nil
}
