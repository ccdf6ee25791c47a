package models

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Metadata keys persisted with every indexed chunk.
const (
	MetaCompany = "company"
	MetaCIK     = "cik"
	MetaDate    = "date"
)

const (
	UnknownCompany = "UNKNOWN"
	UnknownDate    = "N/A"
)

type ChunkMetadata struct {
	Company    string `json:"company"`
	CIK        string `json:"cik"`
	FilingDate string `json:"date"`
}

// Chunk is a retrievable unit of filing text. It is immutable once indexed.
type Chunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score,omitempty"`
}

// Tag returns the provenance label prefixed to a chunk summary.
func (c Chunk) Tag() string {
	company := strings.TrimSpace(c.Metadata.Company)
	if company == "" {
		company = UnknownCompany
	}
	date := strings.TrimSpace(c.Metadata.FilingDate)
	if date == "" {
		date = UnknownDate
	}
	return fmt.Sprintf("[Filing: %s - %s]", company, date)
}

func (m ChunkMetadata) AsMap() map[string]any {
	return map[string]any{
		MetaCompany: m.Company,
		MetaCIK:     m.CIK,
		MetaDate:    m.FilingDate,
	}
}

// ChunkFromDocument converts a retrieved eino document. Missing or non-string
// metadata values are left empty.
func ChunkFromDocument(doc *schema.Document) Chunk {
	if doc == nil {
		return Chunk{}
	}
	return Chunk{
		ID:   doc.ID,
		Text: doc.Content,
		Metadata: ChunkMetadata{
			Company:    metaString(doc.MetaData, MetaCompany),
			CIK:        metaString(doc.MetaData, MetaCIK),
			FilingDate: metaString(doc.MetaData, MetaDate),
		},
		Score: doc.Score(),
	}
}

func (c Chunk) ToDocument() *schema.Document {
	doc := &schema.Document{
		ID:       c.ID,
		Content:  c.Text,
		MetaData: c.Metadata.AsMap(),
	}
	return doc.WithScore(c.Score)
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	v, ok := meta[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}
