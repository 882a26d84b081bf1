package workflow

import "errors"

var (
	// ErrDuplicateName means an entity with the draft's name already exists
	// on the panel. Never retried: two entities under one name is the one
	// outcome this tool must not produce.
	ErrDuplicateName = errors.New("entity name already exists on remote panel")

	// ErrDuplicateCheckFailed means the pre-create lookup could not be
	// completed. Non-fatal in nature, but default policy aborts the run.
	ErrDuplicateCheckFailed = errors.New("duplicate check failed")

	// ErrCreateFailed means the create submission itself could not be
	// performed or was rejected. Nothing was committed remotely.
	ErrCreateFailed = errors.New("create submission failed")
)

// State names the workflow steps for logging and metrics.
type State int

const (
	StateIdle State = iota
	StateCheckingDuplicate
	StateCreating
	StateResolvingID
	StateUpdating
	StateAttachingChildren
	StateDone
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingDuplicate:
		return "checking_duplicate"
	case StateCreating:
		return "creating"
	case StateResolvingID:
		return "resolving_id"
	case StateUpdating:
		return "updating"
	case StateAttachingChildren:
		return "attaching_children"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChildFailure records one failed child-profile attachment.
type ChildFailure struct {
	Ref    string `json:"ref"`
	Reason string `json:"reason"`
}

// Result is the terminal value of one creation run. Success with an empty
// EntityID is a recognized outcome: the create committed remotely but no
// id-bearing signal could be recovered, and retrying would risk a duplicate.
type Result struct {
	Success       bool           `json:"success"`
	EntityID      string         `json:"entity_id,omitempty"`
	Message       string         `json:"message"`
	EditPath      string         `json:"edit_path,omitempty"`
	Warning       string         `json:"warning,omitempty"`
	ChildFailures []ChildFailure `json:"child_failures,omitempty"`
}

func (r *Result) addWarning(w string) {
	if r.Warning == "" {
		r.Warning = w
		return
	}
	r.Warning += "; " + w
}
