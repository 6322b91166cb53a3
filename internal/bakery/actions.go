// Package bakery sequences the build, publish, and post-publish steps and
// reports their progress. It contains no build or upload mechanics of its
// own; every step delegates to an external collaborator.
package bakery

import (
	ferrors "git.home.luguber.info/inful/bakery/internal/foundation/errors"
)

// Action selects which steps a run executes.
type Action string

const (
	ActionBuild        Action = "build"
	ActionBuildPublish Action = "build_publish"
)

// ParseAction validates a requested action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionBuild, ActionBuildPublish:
		return Action(s), nil
	default:
		return "", ferrors.ValidationError("invalid action").
			WithContext("action", s).
			Build()
	}
}

// Step names as they appear in progress records.
const (
	StepBuild       = "build"
	StepSync        = "sync"
	StepPostPublish = "post_publish"
	StepDone        = "done"
)

// Step display labels.
const (
	LabelBuild = "Build"
	LabelSync  = "Sync to S3"
)

// Run trigger sources.
const (
	TriggerPanel    = "panel"
	TriggerCLI      = "cli"
	TriggerSchedule = "schedule"
)
