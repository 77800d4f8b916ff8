// Package screen runs the recording screen: the cooperative loop that reads
// user actions, samples peak levels, drives AGC and the level trigger,
// splits files and renders status frames.
package screen

import "fmt"

// Action is a discrete user input.
type Action int

// Actions understood by the recording screen.
const (
	ActionNone Action = iota
	ActionInc
	ActionDec
	ActionPrev
	ActionNext
	ActionCancel
	ActionMenu
	ActionNewFile
	ActionPause
	ActionExit
)

var actionNames = map[Action]string{
	ActionNone:    "none",
	ActionInc:     "inc",
	ActionDec:     "dec",
	ActionPrev:    "prev",
	ActionNext:    "next",
	ActionCancel:  "cancel",
	ActionMenu:    "menu",
	ActionNewFile: "new-file",
	ActionPause:   "pause",
	ActionExit:    "exit",
}

// String returns the action name used on the wire.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction returns the action with the given wire name.
func ParseAction(name string) (Action, error) {
	for a, n := range actionNames {
		if n == name && a != ActionNone {
			return a, nil
		}
	}
	return ActionNone, fmt.Errorf("unknown action %q", name)
}

// ActionNames lists the accepted wire names, for request validation.
const ActionNames = "inc dec prev next cancel menu new-file pause exit"
