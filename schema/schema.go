package schema

import "encoding/json"

// Schema is message schema interface
type Schema interface {
	String() string
}

// Stringify serializes a schema into the textual form sent to the language model.
func Stringify(s Schema) string {
	if v, ok := s.(String); ok {
		return string(v)
	}
	bs, _ := json.Marshal(s)
	return string(bs)
}

// ToBytes serializes a schema into bytes.
func ToBytes(s Schema) []byte {
	if v, ok := s.(String); ok {
		return []byte(v)
	}
	bs, _ := json.Marshal(s)
	return bs
}
