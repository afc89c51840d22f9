// Package action defines the tagged action descriptor submitted to the gate.
// Every proposed agent action is decoded into a Request once at the boundary;
// downstream logic switches on Kind and Class instead of probing raw payloads.
package action

import (
	"encoding/json"
	"strings"
)

// Kind identifies what the agent is about to do.
type Kind string

const (
	KindRead     Kind = "read"     // read a file or resource
	KindWrite    Kind = "write"    // create or overwrite a target
	KindEdit     Kind = "edit"     // modify an existing target
	KindDelete   Kind = "delete"   // remove a target
	KindCommand  Kind = "command"  // execute a shell-like command
	KindResearch Kind = "research" // external documentation lookup
	KindProbe    Kind = "probe"    // live API or endpoint probe
	KindVerify   Kind = "verify"   // active state verification (tests, runtime checks)
	KindVCS      Kind = "vcs"      // version-control operation
	KindTest     Kind = "test"     // authoring a new test
	KindUnknown  Kind = "unknown"  // unrecognized descriptor
)

// Class groups kinds by their blast radius for gating purposes.
type Class string

const (
	ClassRead    Class = "read"    // evidence-producing, never destructive
	ClassMutate  Class = "mutate"  // write/edit
	ClassDelete  Class = "delete"  // irreversible removal
	ClassCommand Class = "command" // arbitrary command execution
	ClassUnknown Class = "unknown" // ambiguous; treated as potentially destructive
)

// kindAliases maps loose caller spellings onto canonical kinds.
var kindAliases = map[string]Kind{
	"read": KindRead, "view": KindRead, "cat": KindRead, "open": KindRead,
	"write": KindWrite, "create": KindWrite,
	"edit": KindEdit, "patch": KindEdit, "update": KindEdit,
	"delete": KindDelete, "remove": KindDelete, "rm": KindDelete,
	"command": KindCommand, "exec": KindCommand, "bash": KindCommand, "shell": KindCommand,
	"research": KindResearch, "docs": KindResearch, "websearch": KindResearch,
	"probe": KindProbe, "api-probe": KindProbe,
	"verify": KindVerify, "test-run": KindVerify, "state-verification": KindVerify,
	"vcs": KindVCS, "git": KindVCS,
	"test": KindTest, "test-authoring": KindTest,
}

// ParseKind canonicalizes a caller-supplied kind string.
// Unrecognized values map to KindUnknown; the gate fails closed on those
// because an ambiguous action may be destructive.
func ParseKind(s string) Kind {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k
	}
	return KindUnknown
}

// Class returns the gating class for a kind.
func (k Kind) Class() Class {
	switch k {
	case KindRead, KindResearch, KindProbe, KindVerify, KindVCS, KindTest:
		return ClassRead
	case KindWrite, KindEdit:
		return ClassMutate
	case KindDelete:
		return ClassDelete
	case KindCommand:
		return ClassCommand
	default:
		return ClassUnknown
	}
}

// Evidence reports whether completing an action of this kind adds to the
// session's epistemic confidence.
func (k Kind) Evidence() bool {
	return k.Class() == ClassRead
}

// Request is the pre-action descriptor evaluated by the gate.
type Request struct {
	SessionID string          `json:"session_id"`
	Kind      Kind            `json:"kind"`
	Target    string          `json:"target,omitempty"`
	Command   string          `json:"command,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Context   string          `json:"context,omitempty"`

	// TargetExists is supplied by the interception point; the gate performs
	// no filesystem I/O of its own.
	TargetExists bool `json:"target_exists,omitempty"`

	// Override is the first-class bypass capability. It is never inferred
	// from free text and its use is always audited.
	Override bool `json:"override,omitempty"`

	// Patterns lists behavioral patterns flagged by the caller's detectors
	// for this action. Detection itself is outside the engine.
	Patterns []string `json:"patterns,omitempty"`

	// TokenEstimate is the caller's running context usage estimate.
	TokenEstimate int `json:"token_estimate,omitempty"`
}

// Outcome is the post-action report fed back into the engines.
type Outcome struct {
	SessionID string `json:"session_id"`
	Kind      Kind   `json:"kind"`
	Target    string `json:"target,omitempty"`
	Success   bool   `json:"success"`

	// Violation optionally names a completed policy violation observed by
	// the caller (see confidence.Violation values).
	Violation string `json:"violation,omitempty"`

	// Corrected lists pattern names whose advisory the agent acted on
	// before completing, confirming those detections as true positives.
	Corrected []string `json:"corrected,omitempty"`

	TokenEstimate int `json:"token_estimate,omitempty"`
}
