// Package models holds the value types shared by the push channel, the
// command lifecycle and the central store.
package models

import (
	"fmt"
	"strings"
)

// ResourceKind names a server-owned entity collection. The set is open:
// the server may push kinds that an older client does not know.
type ResourceKind string

const (
	ResourceAnalyses    ResourceKind = "analyses"
	ResourceFiles       ResourceKind = "files"
	ResourceJobs        ResourceKind = "jobs"
	ResourceSamples     ResourceKind = "samples"
	ResourceStatus      ResourceKind = "status"
	ResourceSubtraction ResourceKind = "subtraction"
	ResourceSettings    ResourceKind = "settings"
)

// Singleton reports whether the resource is a single document addressed
// without an id.
func (r ResourceKind) Singleton() bool {
	return r == ResourceSettings
}

// Operation is the change applied by a push notification.
type Operation string

const (
	OperationUpdate Operation = "update"
	OperationRemove Operation = "remove"
)

// Verb is the remote operation a command performs on a resource.
type Verb string

const (
	VerbFind      Verb = "find"
	VerbGet       Verb = "get"
	VerbCreate    Verb = "create"
	VerbEdit      Verb = "edit"
	VerbUpdate    Verb = "update"
	VerbRemove    Verb = "remove"
	VerbUpload    Verb = "upload"
	VerbShortlist Verb = "shortlist"
)

var knownVerbs = map[Verb]bool{
	VerbFind:      true,
	VerbGet:       true,
	VerbCreate:    true,
	VerbEdit:      true,
	VerbUpdate:    true,
	VerbRemove:    true,
	VerbUpload:    true,
	VerbShortlist: true,
}

// CommandKind identifies a class of commands. Its string form is
// "resource.verb", e.g. "samples.find".
type CommandKind struct {
	Resource ResourceKind
	Verb     Verb
}

// Kind is shorthand for building a CommandKind.
func Kind(resource ResourceKind, verb Verb) CommandKind {
	return CommandKind{Resource: resource, Verb: verb}
}

func (k CommandKind) String() string {
	return string(k.Resource) + "." + string(k.Verb)
}

// IsZero reports whether the kind is unset.
func (k CommandKind) IsZero() bool {
	return k.Resource == "" && k.Verb == ""
}

// ParseCommandKind parses the "resource.verb" form.
func ParseCommandKind(s string) (CommandKind, error) {
	idx := strings.LastIndex(s, ".")
	if idx <= 0 || idx == len(s)-1 {
		return CommandKind{}, fmt.Errorf("invalid command kind %q: expected resource.verb", s)
	}
	kind := Kind(ResourceKind(s[:idx]), Verb(s[idx+1:]))
	if !knownVerbs[kind.Verb] {
		return CommandKind{}, fmt.Errorf("invalid command kind %q: unknown verb %q", s, kind.Verb)
	}
	return kind, nil
}

// MarshalText implements encoding.TextMarshaler so kinds can key JSON maps.
func (k CommandKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *CommandKind) UnmarshalText(text []byte) error {
	parsed, err := ParseCommandKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
