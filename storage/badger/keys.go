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

package badger

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Key layout, all under a per-schema namespace "chs:<schema>:":
//
//	meta                      schema definition
//	doc:<id>                  document
//	usr:<userId>\x00<ts><id>  user index, timestamp ordered
//	ts:<ts><id>               global timestamp index
//
// ts is the document timestamp in microseconds, 8 bytes big endian.
const (
	namespacePrefix  = "chs"
	metaSuffix       = "meta"
	documentSegment  = "doc"
	userIndexSegment = "usr"
	timeIndexSegment = "ts"
	userKeySeparator = 0x00
)

// makeNamespace returns the prefix shared by every key of a schema.
func makeNamespace(schema string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", namespacePrefix, schema))
}

// makeSchemaKey generates the key holding the schema definition.
func makeSchemaKey(schema string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", namespacePrefix, schema, metaSuffix))
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(schema, id string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%s", namespacePrefix, schema, documentSegment, id))
}

// makeDocumentPrefix generates the prefix of every document key.
func makeDocumentPrefix(schema string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", namespacePrefix, schema, documentSegment))
}

// makeUserPrefix generates the prefix of a user's index entries.
// Format: prefix:userId\x00
func makeUserPrefix(schema, userID string) []byte {
	prefix := fmt.Sprintf("%s:%s:%s:%s", namespacePrefix, schema, userIndexSegment, userID)
	buf := make([]byte, len(prefix)+1)
	offset := copy(buf, prefix)
	buf[offset] = userKeySeparator
	return buf
}

// makeUserIndexKey generates a composite key for the user index.
// Format: prefix:userId\x00timestamp id
func makeUserIndexKey(schema, userID string, timestamp time.Time, id string) []byte {
	return appendTimestampID(makeUserPrefix(schema, userID), timestamp, id)
}

// makeTimePrefix generates the prefix of the global timestamp index.
func makeTimePrefix(schema string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", namespacePrefix, schema, timeIndexSegment))
}

// makeTimeIndexKey generates a composite key for the timestamp index.
// Format: prefix:timestamp id
func makeTimeIndexKey(schema string, timestamp time.Time, id string) []byte {
	return appendTimestampID(makeTimePrefix(schema), timestamp, id)
}

func appendTimestampID(prefix []byte, timestamp time.Time, id string) []byte {
	buf := make([]byte, len(prefix)+8+len(id))
	offset := copy(buf, prefix)
	// BigEndian so lexicographic order is chronological order
	binary.BigEndian.PutUint64(buf[offset:], indexTime(timestamp))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// indexTime is the index ordinal of a timestamp. Zero and pre-1970
// timestamps sort first rather than wrapping past every real one.
func indexTime(timestamp time.Time) uint64 {
	micros := timestamp.UnixMicro()
	if micros < 0 {
		return 0
	}
	return uint64(micros)
}
