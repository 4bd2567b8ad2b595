package redis

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
	goredis "github.com/redis/go-redis/v9"
)

// scoreField is the alias KNN queries assign to the vector distance.
const scoreField = "vector_score"

func documentPrefix(index string) string {
	return index + ":doc:"
}

func documentKey(index, id string) string {
	return documentPrefix(index) + id
}

func schemaKey(index string) string {
	return index + ":schema"
}

// toHash flattens a document into hash field/value pairs. Timestamps are
// stored as unix milliseconds so they can be indexed as NUMERIC.
func toHash(doc *core.ChatDocument) map[string]any {
	fields := map[string]any{
		core.FieldID:        doc.ID,
		core.FieldUserID:    doc.UserID,
		core.FieldSessionID: doc.SessionID,
		core.FieldQuestion:  doc.Question,
		core.FieldContent:   doc.Content,
		core.FieldIPAddress: doc.IPAddress,
		core.FieldRole:      doc.Role,
		core.FieldTimestamp: doc.Timestamp.UnixMilli(),
	}
	if len(doc.QuestionVector) > 0 {
		fields[core.FieldQuestionVector] = storage.MarshalVector(doc.QuestionVector)
	}
	return fields
}

// fromHash rebuilds a document from hash fields. Unknown fields are ignored.
func fromHash(fields map[string]string) (*core.ChatDocument, error) {
	doc := &core.ChatDocument{
		ID:        fields[core.FieldID],
		UserID:    fields[core.FieldUserID],
		SessionID: fields[core.FieldSessionID],
		Question:  fields[core.FieldQuestion],
		Content:   fields[core.FieldContent],
		IPAddress: fields[core.FieldIPAddress],
		Role:      fields[core.FieldRole],
	}
	if raw, ok := fields[core.FieldTimestamp]; ok && raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: timestamp %q: %w", storage.ErrSerializationFailed, raw, err)
		}
		doc.Timestamp = time.UnixMilli(ms).UTC()
	}
	if raw, ok := fields[core.FieldQuestionVector]; ok && raw != "" {
		vector, err := storage.UnmarshalVector([]byte(raw))
		if err != nil {
			return nil, err
		}
		doc.QuestionVector = vector
	}
	return doc, nil
}

// fieldSchema translates a schema definition into FT.CREATE attributes.
func fieldSchema(def *storage.SchemaDefinition) []*goredis.FieldSchema {
	schema := make([]*goredis.FieldSchema, 0, len(def.Fields))
	for _, f := range def.Fields {
		switch f.Type {
		case storage.FieldTypeTimestamp:
			schema = append(schema, &goredis.FieldSchema{
				FieldName: f.Name,
				FieldType: goredis.SearchFieldTypeNumeric,
				Sortable:  f.Sortable,
			})
		case storage.FieldTypeVector:
			schema = append(schema, &goredis.FieldSchema{
				FieldName:  f.Name,
				FieldType:  goredis.SearchFieldTypeVector,
				VectorArgs: vectorArgs(def.Vector),
			})
		default:
			// Filterable strings become exact-match tags; the rest are full text.
			fieldType := goredis.SearchFieldTypeText
			if f.Filterable {
				fieldType = goredis.SearchFieldTypeTag
			}
			schema = append(schema, &goredis.FieldSchema{
				FieldName:     f.Name,
				FieldType:     fieldType,
				Sortable:      f.Sortable,
				CaseSensitive: fieldType == goredis.SearchFieldTypeTag,
			})
		}
	}
	return schema
}

func vectorArgs(v storage.VectorConfig) *goredis.FTVectorArgs {
	metric := strings.ToUpper(v.Metric)
	if metric == "" {
		metric = "COSINE"
	}
	if v.Algorithm == storage.AlgorithmFlat {
		return &goredis.FTVectorArgs{FlatOptions: &goredis.FTFlatOptions{
			Type:           "FLOAT32",
			Dim:            v.Dimension,
			DistanceMetric: metric,
		}}
	}
	return &goredis.FTVectorArgs{HNSWOptions: &goredis.FTHNSWOptions{
		Type:                   "FLOAT32",
		Dim:                    v.Dimension,
		DistanceMetric:         metric,
		MaxEdgesPerNode:        v.M,
		MaxAllowedEdgesPerNode: v.EFConstruction,
		EFRunTime:              v.EFRuntime,
	}}
}

// tagSpecial lists the characters that must be escaped inside a TAG query.
const tagSpecial = ",.<>{}[]\"':;!@#$%^&*()-+=~|/\\ "

// escapeTag escapes a value for use inside @field:{...}.
func escapeTag(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if strings.ContainsRune(tagSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// filterQuery renders a Filter as a search query. An empty filter matches all.
func filterQuery(filter storage.Filter) string {
	var parts []string
	if filter.ID != "" {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", core.FieldID, escapeTag(filter.ID)))
	}
	if filter.UserID != "" {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", core.FieldUserID, escapeTag(filter.UserID)))
	}
	if filter.SessionID != "" {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", core.FieldSessionID, escapeTag(filter.SessionID)))
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

// knnQuery renders a nearest-neighbour query over the question vector.
func knnQuery(k int) string {
	return fmt.Sprintf("*=>[KNN %d @%s $vec AS %s]", k, core.FieldQuestionVector, scoreField)
}

// isUnknownIndex reports whether err is the server's missing-index reply.
func isUnknownIndex(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index name") || strings.Contains(msg, "no such index")
}

// isIndexExists reports whether err is the server's duplicate-index reply.
func isIndexExists(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "index already exists")
}
