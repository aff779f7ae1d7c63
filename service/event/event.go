package event

import "time"

// Event types published by the runtime
const (
	TypeProcessStarted  = "process.started"
	TypeProcessFinished = "process.finished"
)

// Context identifies the origin of an event
type Context struct {
	ProcessID string `json:"processID"`
	Function  string `json:"function"`
	EventType string `json:"eventType"`
	Office    string `json:"office,omitempty"`
}

// Event carries data of type T
type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

// NewEvent creates an event
func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
