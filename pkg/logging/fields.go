package logging

import "time"

// Field represents a log field
type Field interface {
	Apply(entry *LogEntry)
}

type valueField struct {
	key   string
	value any
}

func (f valueField) Apply(entry *LogEntry) {
	entry.Fields[f.key] = f.value
}

type errorField struct {
	err error
}

func (f errorField) Apply(entry *LogEntry) {
	if f.err != nil {
		entry.Error = f.err.Error()
	}
}

type componentField string

func (f componentField) Apply(entry *LogEntry) {
	entry.Component = string(f)
}

func String(key, value string) Field {
	return valueField{key: key, value: value}
}

func Int(key string, value int) Field {
	return valueField{key: key, value: value}
}

func Float(key string, value float64) Field {
	return valueField{key: key, value: value}
}

func Bool(key string, value bool) Field {
	return valueField{key: key, value: value}
}

// Duration records the duration as text, e.g. 1.5s
func Duration(key string, value time.Duration) Field {
	return valueField{key: key, value: value.String()}
}

// Err records an error message
func Err(err error) Field {
	return errorField{err: err}
}

// Component tags the entry with the emitting component
func Component(component string) Field {
	return componentField(component)
}
