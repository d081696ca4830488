// Package fhir models the subset of a FHIR document bundle the webhooks
// service inspects: the composition (section index), the task (event type
// and status metadata), and opaque clinical resources addressed by
// reference. Resources keep their raw JSON so filtered copies serialize
// byte-identically to the input entries.
package fhir

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opencrvs/webhooks/internal/apperrors"
	"github.com/opencrvs/webhooks/internal/datatypes"
)

// Resource type discriminants this service dispatches on.
const (
	ResourceTypeComposition = "Composition"
	ResourceTypeTask        = "Task"
)

// eventCodeSystem is the coding system carrying the record's event code on
// the task resource.
const eventCodeSystem = "http://opencrvs.org/specs/types"

// taskEventCodes maps task coding codes to events.
var taskEventCodes = map[string]datatypes.Event{
	"BIRTH":    datatypes.EventBirth,
	"DEATH":    datatypes.EventDeath,
	"MARRIAGE": datatypes.EventMarriage,
}

// Bundle is a validated civil registration record: a FHIR document bundle
// whose entries are never mutated, only filtered into smaller copies.
type Bundle struct {
	ResourceType string  `json:"resourceType"`
	ID           string  `json:"id,omitempty"`
	Type         string  `json:"type,omitempty"`
	Timestamp    string  `json:"timestamp,omitempty"`
	Entry        []Entry `json:"entry"`
}

// Entry is a single bundle entry holding one resource.
type Entry struct {
	FullURL  string   `json:"fullUrl,omitempty"`
	Resource Resource `json:"resource"`
}

// Resource is a tagged union over bundle resources. Type and ID are decoded
// eagerly for dispatch; the raw JSON is kept verbatim for serialization and
// for the typed accessors.
type Resource struct {
	Type string
	ID   string

	raw json.RawMessage
}

// resourceHeader is the discriminant portion every resource carries.
type resourceHeader struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
}

// UnmarshalJSON decodes the discriminant and retains the raw document.
func (r *Resource) UnmarshalJSON(data []byte) error {
	var header resourceHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return fmt.Errorf("decode resource header: %w", err)
	}

	r.Type = header.ResourceType
	r.ID = header.ID
	r.raw = append(json.RawMessage(nil), data...)

	return nil
}

// MarshalJSON emits the resource exactly as it was received.
func (r Resource) MarshalJSON() ([]byte, error) {
	if r.raw == nil {
		return []byte("null"), nil
	}

	return r.raw, nil
}

// IsTask reports whether the resource is a task. Task metadata is always
// retained by the permission filter since it carries status and event type.
func (r Resource) IsTask() bool {
	return r.Type == ResourceTypeTask
}

// Coding is one code in a codeable concept.
type Coding struct {
	System string `json:"system,omitempty"`
	Code   string `json:"code"`
}

// CodeableConcept is a coded value with one or more codings.
type CodeableConcept struct {
	Coding []Coding `json:"coding"`
}

// Reference points at another resource, either as "<Type>/<id>" or
// "urn:uuid:<id>".
type Reference struct {
	Reference string `json:"reference"`
}

// Identifier returns the bare resource identifier a reference points at.
func (ref Reference) Identifier() string {
	s := ref.Reference
	if rest, ok := strings.CutPrefix(s, "urn:uuid:"); ok {
		return rest
	}

	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}

	return s
}

// Composition enumerates the named sections of a registration record.
type Composition struct {
	ID      string               `json:"id"`
	Section []CompositionSection `json:"section"`
}

// CompositionSection is one named section with its resource references.
type CompositionSection struct {
	Title string          `json:"title,omitempty"`
	Code  CodeableConcept `json:"code"`
	Entry []Reference     `json:"entry"`
}

// HasCode reports whether any of the section's codings matches one of the
// given section codes.
func (s CompositionSection) HasCode(codes map[string]struct{}) bool {
	for _, coding := range s.Code.Coding {
		if _, ok := codes[coding.Code]; ok {
			return true
		}
	}

	return false
}

// Task is the status metadata resource of a record.
type Task struct {
	ID   string          `json:"id"`
	Code CodeableConcept `json:"code"`
}

// AsComposition decodes the resource as a composition.
func (r Resource) AsComposition() (*Composition, error) {
	if r.Type != ResourceTypeComposition {
		return nil, apperrors.NewMalformedRecordError("resource is not a composition: " + r.Type)
	}

	var c Composition
	if err := json.Unmarshal(r.raw, &c); err != nil {
		return nil, fmt.Errorf("decode composition: %w", err)
	}

	return &c, nil
}

// AsTask decodes the resource as a task.
func (r Resource) AsTask() (*Task, error) {
	if !r.IsTask() {
		return nil, apperrors.NewMalformedRecordError("resource is not a task: " + r.Type)
	}

	var t Task
	if err := json.Unmarshal(r.raw, &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}

	return &t, nil
}

// Composition returns the record's composition resource.
// Fails with MalformedRecordError when the bundle has none.
func (b *Bundle) Composition() (*Composition, error) {
	for _, entry := range b.Entry {
		if entry.Resource.Type == ResourceTypeComposition {
			return entry.Resource.AsComposition()
		}
	}

	return nil, apperrors.NewMalformedRecordError("record has no composition resource")
}

// Task returns the record's task resource.
// Fails with MalformedRecordError when the bundle has none.
func (b *Bundle) Task() (*Task, error) {
	for _, entry := range b.Entry {
		if entry.Resource.IsTask() {
			return entry.Resource.AsTask()
		}
	}

	return nil, apperrors.NewMalformedRecordError("record has no task resource")
}

// EventType determines the record's event from its task metadata.
// Fails with MalformedRecordError when the task is absent or its event code
// is unrecognized.
func (b *Bundle) EventType() (datatypes.Event, error) {
	task, err := b.Task()
	if err != nil {
		return 0, err
	}

	for _, coding := range task.Code.Coding {
		if coding.System != "" && coding.System != eventCodeSystem {
			continue
		}

		if event, ok := taskEventCodes[coding.Code]; ok {
			return event, nil
		}
	}

	return 0, apperrors.NewMalformedRecordError("task carries no recognized event code")
}
