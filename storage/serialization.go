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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mus-format/mus-go"
	"github.com/poiesic/chatsession/core"
)

// recordVersion prefixes every stored record.
const recordVersion byte = 1

func marshalRecord[T any](ser mus.Serializer[T], v T) []byte {
	buf := make([]byte, 1+ser.Size(v))
	buf[0] = recordVersion
	ser.Marshal(v, buf[1:])
	return buf
}

func unmarshalRecord[T any](ser mus.Serializer[T], data []byte) (v T, err error) {
	if len(data) == 0 {
		return v, fmt.Errorf("%w: empty record", ErrSerializationFailed)
	}
	if data[0] != recordVersion {
		return v, fmt.Errorf("%w: unknown record version %d", ErrSerializationFailed, data[0])
	}
	v, n, err := ser.Unmarshal(data[1:])
	if err != nil {
		return v, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if n != len(data)-1 {
		return v, fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-1-n)
	}
	return v, nil
}

// MarshalChatDocument serializes a ChatDocument to bytes.
func MarshalChatDocument(doc *core.ChatDocument) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrSerializationFailed)
	}
	return marshalRecord(ChatDocumentMUS, *doc), nil
}

// UnmarshalChatDocument deserializes a ChatDocument from bytes.
func UnmarshalChatDocument(data []byte) (*core.ChatDocument, error) {
	doc, err := unmarshalRecord(ChatDocumentMUS, data)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// MarshalSchema serializes a SchemaDefinition to bytes.
func MarshalSchema(def *SchemaDefinition) ([]byte, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil schema", ErrSerializationFailed)
	}
	return marshalRecord(SchemaDefinitionMUS, *def), nil
}

// UnmarshalSchema deserializes a SchemaDefinition from bytes.
func UnmarshalSchema(data []byte) (*SchemaDefinition, error) {
	def, err := unmarshalRecord(SchemaDefinitionMUS, data)
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// MarshalVector encodes a vector as little-endian float32 bytes, the layout
// vector indexes expect for binary blobs.
func MarshalVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// UnmarshalVector decodes little-endian float32 bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: vector length %d is not a multiple of 4", ErrSerializationFailed, len(data))
	}
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector, nil
}
