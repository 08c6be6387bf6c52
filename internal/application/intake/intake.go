// Package intake turns a raw form submission into normalized application
// data and a list of files to store, using the service's current schema as
// the only source of accepted keys.
package intake

import (
	"fmt"
	"io"

	"github.com/cscportal/portal-backend/internal/application/domain"
	catalog "github.com/cscportal/portal-backend/internal/catalog/domain"
)

// NoSubIndex marks a staged file that fills a whole slot
const NoSubIndex = -1

// Upload is one received file. Open may be called more than once.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// RawSubmission is everything the citizen sent: text values and file parts by form key
type RawSubmission struct {
	Values map[string]string
	Files  map[string]*Upload
}

// StagedFile is an upload matched to a document slot, waiting to be stored
type StagedFile struct {
	Label     string
	SlotIndex int
	SubIndex  int
	Upload    *Upload
}

// Interpretation is the normalized result of one submission
type Interpretation struct {
	Data   domain.SubmittedData
	Staged []StagedFile
}

// Warning reports a document that could not be stored. It never fails the submission.
type Warning struct {
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// SlotFileKey is the form key of a slot without sub-inputs
func SlotFileKey(slot int) string {
	return fmt.Sprintf("doc_field_%d", slot)
}

// SubInputFileKey is the form key of one sub-input of a slot
func SubInputFileKey(slot, sub int) string {
	return fmt.Sprintf("doc_%d_%d", slot, sub)
}

// SubInputLabel is the document label recorded for one sub-input
func SubInputLabel(slotLabel, subLabel string) string {
	return slotLabel + " - " + subLabel
}

// Interpret reads exactly the schema's field names from raw, defaulting
// missing ones to "", and stages one file per filled slot or sub-input.
// Required flags are not enforced. It performs no I/O.
func Interpret(schema catalog.Schema, raw RawSubmission) Interpretation {
	out := Interpretation{
		Data:   make(domain.SubmittedData, len(schema.Fields)),
		Staged: []StagedFile{},
	}

	for _, f := range schema.Fields {
		out.Data[f.Name] = raw.Values[f.Name]
	}

	for i, slot := range schema.Documents {
		if len(slot.SubInputs) == 0 {
			if up := present(raw.Files[SlotFileKey(i)]); up != nil {
				out.Staged = append(out.Staged, StagedFile{
					Label:     slot.Label,
					SlotIndex: i,
					SubIndex:  NoSubIndex,
					Upload:    up,
				})
			}
			continue
		}

		for j, sub := range slot.SubInputs {
			if up := present(raw.Files[SubInputFileKey(i, j)]); up != nil {
				out.Staged = append(out.Staged, StagedFile{
					Label:     SubInputLabel(slot.Label, sub),
					SlotIndex: i,
					SubIndex:  j,
					Upload:    up,
				})
			}
		}
	}

	return out
}

// present treats an upload without a filename like no upload at all
func present(up *Upload) *Upload {
	if up == nil || up.Filename == "" || up.Open == nil {
		return nil
	}
	return up
}
