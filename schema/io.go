package schema

import "encoding/json"

// Input is a generic chat input schema.
type Input struct {
	Base
	// ChatMessage the message sent by the user to the assistant.
	ChatMessage string `json:"chat_message" jsonschema:"title=chat_message,description=The message sent by the user to the assistant." validate:"required"`
}

// NewInput returns a new Input instance
func NewInput(msg string) *Input {
	return &Input{ChatMessage: msg}
}

func (s Input) String() string {
	bs, _ := json.Marshal(s)
	return string(bs)
}

// Output is a generic chat output schema.
type Output struct {
	Base
	// ChatMessage the markdown formatted response generated by the assistant.
	ChatMessage string `json:"chat_message" jsonschema:"title=chat_message,description=The markdown formatted response generated by the assistant." validate:"required"`
}

// NewOutput returns a new Output instance
func NewOutput(msg string) *Output {
	return &Output{ChatMessage: msg}
}

func (s Output) String() string {
	bs, _ := json.Marshal(s)
	return string(bs)
}
