// Package fsio defines the filesystem intents of vdir flows and a connector
// servicing them on the local filesystem.
//
// A flow describes its pending operation in a Task of its State, then
// returns the matching Intent from Next. The connector performs the
// operation and completes the task with its output.
package fsio

import (
	"errors"
	"fmt"
)

// Intent is a filesystem action requested by a flow.
type Intent int

const (
	CreateDir Intent = iota + 1
	ReadDir
	RemoveDir
	CreateFiles
	ReadFiles
	MoveFiles
	RemoveFiles
)

var intentNames = map[Intent]string{
	CreateDir:   "create-dir",
	ReadDir:     "read-dir",
	RemoveDir:   "remove-dir",
	CreateFiles: "create-files",
	ReadFiles:   "read-files",
	MoveFiles:   "move-files",
	RemoveFiles: "remove-files",
}

func (i Intent) String() string {
	if name, ok := intentNames[i]; ok {
		return name
	}
	return fmt.Sprintf("Intent(%d)", int(i))
}

// ErrIntentNotHonored is returned by flows when the connector left a task
// pending after servicing its intent.
var ErrIntentNotHonored = errors.New("fsio: connector did not honor the intent")

type taskState int

const (
	taskIdle taskState = iota
	taskPending
	taskDone
)

// Task is the slot of one kind of operation: idle, pending with an input,
// or done with an output.
type Task[I, O any] struct {
	state  taskState
	input  I
	output O
}

// Start moves an idle task to pending. It panics if the task is not idle,
// which means a flow issued the same kind of operation twice.
func (t *Task[I, O]) Start(input I) {
	if t.state != taskIdle {
		panic("fsio: task started twice")
	}
	t.state = taskPending
	t.input = input
}

// Pending returns the input of a pending task.
func (t *Task[I, O]) Pending() (input I, ok bool) {
	if t.state != taskPending {
		return input, false
	}
	return t.input, true
}

// Complete moves a pending task to done. It reports false if the task was
// not pending.
func (t *Task[I, O]) Complete(output O) bool {
	if t.state != taskPending {
		return false
	}
	var zero I
	t.state = taskDone
	t.input = zero
	t.output = output
	return true
}

// Done returns the output of a completed task.
func (t *Task[I, O]) Done() (output O, ok bool) {
	if t.state != taskDone {
		return output, false
	}
	return t.output, true
}

// DirEntry is an entry returned by a ReadDir operation.
type DirEntry struct {
	Path  string
	IsDir bool
}

// State holds one task per kind of operation.
type State struct {
	CreateDir   Task[string, struct{}]
	ReadDir     Task[string, []DirEntry]
	RemoveDir   Task[string, struct{}]
	CreateFiles Task[map[string][]byte, struct{}]
	// Missing files are left out of the output.
	ReadFiles   Task[[]string, map[string][]byte]
	MoveFiles   Task[map[string]string, struct{}]
	RemoveFiles Task[[]string, struct{}]
}

// Flow is a resumable filesystem flow.
type Flow interface {
	State() *State
	Next() (Intent, bool)
}

// Executor services filesystem intents.
type Executor interface {
	Execute(s *State, intent Intent) error
}

// Run drives f until completion.
func Run(exec Executor, f Flow) error {
	for {
		intent, ok := f.Next()
		if !ok {
			return nil
		}
		if err := exec.Execute(f.State(), intent); err != nil {
			return err
		}
	}
}
