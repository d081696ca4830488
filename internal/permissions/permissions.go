// Package permissions produces redacted copies of civil registration
// records according to a subscriber's section permissions.
package permissions

import (
	"github.com/opencrvs/webhooks/internal/datatypes"
	"github.com/opencrvs/webhooks/internal/fhir"
	"github.com/opencrvs/webhooks/internal/models"
)

// Composition section codes used across registration records.
const (
	SectionMother            = "mother-details"
	SectionFather            = "father-details"
	SectionChild             = "child-details"
	SectionDeceased          = "deceased-details"
	SectionInformant         = "informant-details"
	SectionAttachments       = "supporting-documents"
	SectionBirthEncounter    = "birth-encounter"
	SectionDeathEncounter    = "death-encounter"
	SectionMarriageEncounter = "marriage-encounter"
	SectionBride             = "bride-details"
	SectionGroom             = "groom-details"
)

// nationalIDPermissions is the fixed permission table for nationalId
// subscribers, keyed by event. Marriage has no fixed set; nationalId
// subscribers fall through to their declared settings for it.
var nationalIDPermissions = map[datatypes.Event][]string{
	datatypes.EventBirth: {
		SectionMother,
		SectionFather,
		SectionChild,
		SectionAttachments,
		SectionInformant,
	},
	datatypes.EventDeath: {
		SectionDeceased,
		SectionAttachments,
		SectionInformant,
		SectionDeathEncounter,
	},
}

// PermittedSections resolves the section codes the system may see for the
// given event. A system with no declared entry for the event gets an empty
// set; it still receives a task-only shell record.
func PermittedSections(system *models.System, event datatypes.Event) []string {
	if system.Type == models.SystemTypeNationalID {
		if fixed, ok := nationalIDPermissions[event]; ok {
			return fixed
		}
	}

	for _, declared := range system.Settings.Webhook {
		if declared.Event == event.String() {
			return declared.Permissions
		}
	}

	return nil
}

// FilterRecord returns a copy of record containing only the resources cited
// by composition sections the system is permitted to see, plus every task
// resource. Pure function; the input bundle is never mutated.
func FilterRecord(system *models.System, record *fhir.Bundle) (*fhir.Bundle, error) {
	event, err := record.EventType()
	if err != nil {
		return nil, err
	}

	return filterBySections(record, PermittedSections(system, event))
}

func filterBySections(record *fhir.Bundle, sectionCodes []string) (*fhir.Bundle, error) {
	composition, err := record.Composition()
	if err != nil {
		return nil, err
	}

	permitted := make(map[string]struct{}, len(sectionCodes))
	for _, code := range sectionCodes {
		permitted[code] = struct{}{}
	}

	allowedRefs := make(map[string]struct{})
	for _, section := range composition.Section {
		if !section.HasCode(permitted) {
			continue
		}

		for _, ref := range section.Entry {
			allowedRefs[ref.Identifier()] = struct{}{}
		}
	}

	filtered := *record
	filtered.Entry = make([]fhir.Entry, 0, len(record.Entry))

	for _, entry := range record.Entry {
		if _, ok := allowedRefs[entry.Resource.ID]; ok || entry.Resource.IsTask() {
			filtered.Entry = append(filtered.Entry, entry)
		}
	}

	return &filtered, nil
}
