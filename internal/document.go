package talon

import "encoding/json"

// DocumentDataKind tags the three-valued state of Document.Data: the wire
// contract to the collection endpoint distinguishes a field that is absent
// entirely, one that is explicitly null, and one that carries a value --
// modeled as a sum rather than a doubly-nullable pointer (see design notes).
type DocumentDataKind int

const (
	DocumentDataAbsent DocumentDataKind = iota
	DocumentDataNull
	DocumentDataValue
)

// DocumentData is the nested-optional payload of a Document.
type DocumentData struct {
	Kind  DocumentDataKind
	Value json.RawMessage
}

func AbsentData() DocumentData { return DocumentData{Kind: DocumentDataAbsent} }
func NullData() DocumentData   { return DocumentData{Kind: DocumentDataNull} }
func PresentData(v json.RawMessage) DocumentData {
	return DocumentData{Kind: DocumentDataValue, Value: v}
}

// Document is the unit shipped to the collection endpoint.
type Document struct {
	Folder string
	Data   DocumentData
}

// MarshalJSON renders the three-valued Data as: omitted, null, or the raw
// value, matching the collection endpoint's wire contract.
func (d Document) MarshalJSON() ([]byte, error) {
	type wire struct {
		Folder string          `json:"folder"`
		Data   json.RawMessage `json:"data,omitempty"`
	}
	w := wire{Folder: d.Folder}
	switch d.Data.Kind {
	case DocumentDataNull:
		w.Data = json.RawMessage("null")
	case DocumentDataValue:
		w.Data = d.Data.Value
	}
	return json.Marshal(w)
}
