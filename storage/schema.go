// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/chatsession/core"
)

// FieldType is the storage type of a schema field.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeVector    FieldType = "vector"
)

// Similarity metrics.
const (
	MetricCosine = "cosine"
)

// Vector index algorithms.
const (
	AlgorithmHNSW = "hnsw"
	AlgorithmFlat = "flat"
)

const (
	// DefaultDimension is the embedding dimension used when none is configured.
	DefaultDimension = 1536

	// DefaultTTL is how long documents are retained when no TTL is configured.
	DefaultTTL = 24 * time.Hour

	// DefaultSemanticConfigName names the semantic configuration of ChatSchema.
	DefaultSemanticConfigName = "chat-semantic-config"
)

// FieldDefinition describes one stored field.
type FieldDefinition struct {
	Name       string    `json:"name"`
	Type       FieldType `json:"type"`
	Key        bool      `json:"key,omitempty"`
	Filterable bool      `json:"filterable,omitempty"`
	Sortable   bool      `json:"sortable,omitempty"`
	Searchable bool      `json:"searchable,omitempty"`
}

// VectorConfig describes the vector index over the question vector.
type VectorConfig struct {
	Field          string `json:"field"`
	Dimension      int    `json:"dimension"`
	Metric         string `json:"metric"`
	Algorithm      string `json:"algorithm"`
	M              int    `json:"m,omitempty"`
	EFConstruction int    `json:"efConstruction,omitempty"`
	EFRuntime      int    `json:"efRuntime,omitempty"`
}

// SemanticConfig names the fields a semantic ranker reads.
type SemanticConfig struct {
	Name          string   `json:"name"`
	TitleField    string   `json:"titleField"`
	ContentFields []string `json:"contentFields"`
	KeywordFields []string `json:"keywordFields"`
}

// SchemaDefinition is the backend-side structure that must exist before
// documents can be stored or queried.
type SchemaDefinition struct {
	Name       string            `json:"name"`
	Fields     []FieldDefinition `json:"fields"`
	Vector     VectorConfig      `json:"vector"`
	Semantic   *SemanticConfig   `json:"semantic,omitempty"`
	DefaultTTL time.Duration     `json:"defaultTtl"`
}

// NormalizeName lowercases and trims a schema name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ChatSchema returns the canonical schema for ChatDocument.
func ChatSchema(name string, dimension int) *SchemaDefinition {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &SchemaDefinition{
		Name: NormalizeName(name),
		Fields: []FieldDefinition{
			{Name: core.FieldID, Type: FieldTypeString, Key: true, Filterable: true},
			{Name: core.FieldUserID, Type: FieldTypeString, Filterable: true, Searchable: true},
			{Name: core.FieldSessionID, Type: FieldTypeString, Filterable: true, Searchable: true},
			{Name: core.FieldQuestion, Type: FieldTypeString, Searchable: true},
			{Name: core.FieldContent, Type: FieldTypeString, Searchable: true},
			{Name: core.FieldIPAddress, Type: FieldTypeString, Searchable: true},
			{Name: core.FieldRole, Type: FieldTypeString, Searchable: true},
			{Name: core.FieldTimestamp, Type: FieldTypeTimestamp, Sortable: true, Filterable: true},
			{Name: core.FieldQuestionVector, Type: FieldTypeVector},
		},
		Vector: VectorConfig{
			Field:          core.FieldQuestionVector,
			Dimension:      dimension,
			Metric:         MetricCosine,
			Algorithm:      AlgorithmHNSW,
			M:              4,
			EFConstruction: 400,
			EFRuntime:      500,
		},
		Semantic: &SemanticConfig{
			Name:          DefaultSemanticConfigName,
			TitleField:    core.FieldQuestion,
			ContentFields: []string{core.FieldQuestion, core.FieldContent, core.FieldUserID, core.FieldSessionID},
			KeywordFields: []string{core.FieldQuestion, core.FieldUserID},
		},
		DefaultTTL: DefaultTTL,
	}
}

// Validate checks that the definition can be created.
func (d *SchemaDefinition) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: definition is nil", ErrInvalidSchema)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSchema)
	}
	if d.Name != NormalizeName(d.Name) {
		return fmt.Errorf("%w: name %q must be lowercase", ErrInvalidSchema, d.Name)
	}
	if d.Vector.Dimension <= 0 {
		return fmt.Errorf("%w: vector dimension must be positive", ErrInvalidSchema)
	}
	if d.DefaultTTL < 0 {
		return fmt.Errorf("%w: default ttl cannot be negative", ErrInvalidSchema)
	}
	return nil
}
