package example

type EventKind string

const (
	EventKindMessagePosted EventKind = "message_posted"
	EventKindTaskAdded     EventKind = "task_added"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

type Event struct {
	Kind EventKind
}

type Task struct {
	Status TaskStatus
}

func bad() {
	e := &Event{}
	e.Kind = "workspace_renamed" // want "enum field Kind assigned string literal"

	t := &Task{}
	t.Status = "archived" // want "enum field Status assigned string literal"
}

func good() {
	e := &Event{}
	e.Kind = EventKindMessagePosted // OK: using constant

	t := &Task{}
	t.Status = TaskStatusCompleted // OK: using constant
}

func alsoGood() {
	// OK: Variable, not literal
	kind := EventKindTaskAdded
	e := &Event{Kind: kind}
	_ = e
}
