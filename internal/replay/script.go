// Package replay drives a running engine with a scripted sequence of host
// actions.
//
// A script is a YAML document listing steps such as appending markup,
// editing text, attaching shadow roots, clicking units and broadcasting new
// settings. Each DOM step runs as one loop turn of the engine, so a script
// reproduces the interleaving a real page would see.
package replay

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"

	"github.com/nao1215/blurguard/internal/settings"
)

// Action names a script step.
type Action string

const (
	// ActionAppend parses HTML and appends it to the target.
	ActionAppend Action = "append"
	// ActionInsertText appends a text node to the target.
	ActionInsertText Action = "insertText"
	// ActionSetText replaces the character data of the target's first text child.
	ActionSetText Action = "setText"
	// ActionRemove detaches the target.
	ActionRemove Action = "remove"
	// ActionAttachShadow attaches a shadow root to the target, optionally
	// filled with HTML.
	ActionAttachShadow Action = "attachShadow"
	// ActionClick dispatches a click on the target.
	ActionClick Action = "click"
	// ActionBroadcast writes new settings and broadcasts them.
	ActionBroadcast Action = "broadcast"
	// ActionWait sleeps for a duration, letting timers fire.
	ActionWait Action = "wait"
	// ActionReconcile runs a full re-scan.
	ActionReconcile Action = "reconcile"
)

var (
	// ErrUnknownAction is returned for an unsupported action.
	ErrUnknownAction = errors.New("unknown replay action")

	// ErrMissingTarget is returned when a DOM step has no selector.
	ErrMissingTarget = errors.New("replay step requires a target selector")

	// ErrMissingSettings is returned when a broadcast step sets no flag.
	ErrMissingSettings = errors.New("broadcast step requires hideEmails or hideIps")

	// ErrConflictingSettings is returned when a broadcast step has both a
	// message and flags.
	ErrConflictingSettings = errors.New("broadcast step takes either a message or flags")

	// ErrNoMatch is returned when a selector matches nothing.
	ErrNoMatch = errors.New("selector matched no element")
)

// Step is one scripted host action.
type Step struct {
	Action Action `yaml:"action"`

	// Target selects the element acted upon.
	Target string `yaml:"target,omitempty"`

	// Shadow selects a host element; Target is then resolved inside the
	// host's shadow root.
	Shadow string `yaml:"shadow,omitempty"`

	// Index picks among multiple matches. Negative counts from the end.
	Index int `yaml:"index,omitempty"`

	HTML string `yaml:"html,omitempty"`
	Text string `yaml:"text,omitempty"`
	Mode string `yaml:"mode,omitempty"`

	HideEmails *bool `yaml:"hideEmails,omitempty"`
	HideIps    *bool `yaml:"hideIps,omitempty"`

	// Message is a raw JSON broadcast, as another context would post it.
	// Flags it leaves out are true.
	Message string `yaml:"message,omitempty"`

	Duration time.Duration `yaml:"duration,omitempty"`

	target cascadia.Selector
	shadow cascadia.Selector
}

// Script is an ordered list of steps.
type Script struct {
	Name  string `yaml:"name,omitempty"`
	Steps []Step `yaml:"steps"`
}

// Parse reads a script and validates every step.
func Parse(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return &s, nil
		}
		return nil, fmt.Errorf("failed to parse replay script: %w", err)
	}
	if err := s.compile(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads a script from path.
func LoadFile(path string) (*Script, error) {
	f, err := os.Open(path) //nolint:gosec // path is given by the user
	if err != nil {
		return nil, fmt.Errorf("failed to open replay script: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func (s *Script) compile() error {
	for i := range s.Steps {
		if err := s.Steps[i].compile(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, s.Steps[i].Action, err)
		}
	}
	return nil
}

func (st *Step) compile() error {
	switch st.Action {
	case ActionAppend, ActionInsertText, ActionSetText, ActionRemove, ActionAttachShadow, ActionClick:
		if st.Target == "" {
			return ErrMissingTarget
		}
	case ActionBroadcast:
		return st.compileBroadcast()
	case ActionWait, ActionReconcile:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, st.Action)
	}

	sel, err := cascadia.Compile(st.Target)
	if err != nil {
		return fmt.Errorf("invalid target selector %q: %w", st.Target, err)
	}
	st.target = sel
	if st.Shadow != "" {
		sel, err := cascadia.Compile(st.Shadow)
		if err != nil {
			return fmt.Errorf("invalid shadow selector %q: %w", st.Shadow, err)
		}
		st.shadow = sel
	}
	return nil
}

// compileBroadcast resolves a message step into flags.
func (st *Step) compileBroadcast() error {
	if st.Message == "" {
		if st.HideEmails == nil && st.HideIps == nil {
			return ErrMissingSettings
		}
		return nil
	}
	if st.HideEmails != nil || st.HideIps != nil {
		return ErrConflictingSettings
	}
	msg, err := settings.DecodeMessage([]byte(st.Message))
	if err != nil {
		return err
	}
	hideEmails, hideIps := msg.Settings.HideEmails, msg.Settings.HideIps
	st.HideEmails = &hideEmails
	st.HideIps = &hideIps
	return nil
}
