package storage

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/chatsession/core"
)

// Stored records are mus encoded field by field in declaration order.
// Appending a field requires bumping recordVersion.

// TimeMUS encodes a time as Unix seconds plus nanoseconds and decodes it in
// UTC. The zero time round-trips.
var TimeMUS = timeMUS{}

type timeMUS struct{}

func (s timeMUS) Marshal(v time.Time, bs []byte) (n int) {
	n = varint.Int64.Marshal(v.Unix(), bs)
	return n + varint.Int32.Marshal(int32(v.Nanosecond()), bs[n:])
}

func (s timeMUS) Unmarshal(bs []byte) (v time.Time, n int, err error) {
	sec, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return
	}
	nsec, n1, err := varint.Int32.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v = time.Unix(sec, int64(nsec)).UTC()
	return
}

func (s timeMUS) Size(v time.Time) (size int) {
	return varint.Int64.Size(v.Unix()) + varint.Int32.Size(int32(v.Nanosecond()))
}

func (s timeMUS) Skip(bs []byte) (n int, err error) {
	n, err = varint.Int64.Skip(bs)
	if err != nil {
		return
	}
	n1, err := varint.Int32.Skip(bs[n:])
	return n + n1, err
}

// boundedSliceMUS is a length-prefixed slice whose decoder refuses lengths
// the remaining input cannot hold, so corrupt values fail instead of
// allocating. Empty slices decode as nil.
type boundedSliceMUS[T any] struct {
	elem    mus.Serializer[T]
	minElem int
}

func (s boundedSliceMUS[T]) Marshal(v []T, bs []byte) (n int) {
	n = varint.PositiveInt.Marshal(len(v), bs)
	for _, e := range v {
		n += s.elem.Marshal(e, bs[n:])
	}
	return
}

func (s boundedSliceMUS[T]) Unmarshal(bs []byte) (v []T, n int, err error) {
	length, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 || length > (len(bs)-n)/s.minElem {
		err = mus.ErrTooSmallByteSlice
		return
	}
	if length == 0 {
		return
	}
	v = make([]T, length)
	var n1 int
	for i := range v {
		v[i], n1, err = s.elem.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return
}

func (s boundedSliceMUS[T]) Size(v []T) (size int) {
	size = varint.PositiveInt.Size(len(v))
	for _, e := range v {
		size += s.elem.Size(e)
	}
	return
}

func (s boundedSliceMUS[T]) Skip(bs []byte) (n int, err error) {
	length, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 {
		err = mus.ErrTooSmallByteSlice
		return
	}
	var n1 int
	for range length {
		n1, err = s.elem.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

var (
	vectorMUS  mus.Serializer[[]float32] = boundedSliceMUS[float32]{elem: raw.Float32, minElem: 4}
	stringsMUS mus.Serializer[[]string]  = boundedSliceMUS[string]{elem: ord.String, minElem: 1}
)

// ChatDocumentMUS serializes core.ChatDocument.
var ChatDocumentMUS = chatDocumentMUS{}

type chatDocumentMUS struct{}

func (s chatDocumentMUS) Marshal(v core.ChatDocument, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.UserID, bs[n:])
	n += ord.String.Marshal(v.SessionID, bs[n:])
	n += ord.String.Marshal(v.Question, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += ord.String.Marshal(v.IPAddress, bs[n:])
	n += ord.String.Marshal(v.Role, bs[n:])
	n += TimeMUS.Marshal(v.Timestamp, bs[n:])
	return n + vectorMUS.Marshal(v.QuestionVector, bs[n:])
}

func (s chatDocumentMUS) Unmarshal(bs []byte) (v core.ChatDocument, n int, err error) {
	strs := []*string{&v.ID, &v.UserID, &v.SessionID, &v.Question, &v.Content, &v.IPAddress, &v.Role}
	var n1 int
	for _, dst := range strs {
		*dst, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	v.Timestamp, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.QuestionVector, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (s chatDocumentMUS) Size(v core.ChatDocument) (size int) {
	for _, str := range []string{v.ID, v.UserID, v.SessionID, v.Question, v.Content, v.IPAddress, v.Role} {
		size += ord.String.Size(str)
	}
	return size + TimeMUS.Size(v.Timestamp) + vectorMUS.Size(v.QuestionVector)
}

func (s chatDocumentMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	for range 7 {
		n1, err = ord.String.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	n1, err = TimeMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = vectorMUS.Skip(bs[n:])
	return n + n1, err
}

// FieldDefinitionMUS serializes FieldDefinition.
var FieldDefinitionMUS = fieldDefinitionMUS{}

type fieldDefinitionMUS struct{}

func (s fieldDefinitionMUS) Marshal(v FieldDefinition, bs []byte) (n int) {
	n = ord.String.Marshal(v.Name, bs)
	n += ord.String.Marshal(string(v.Type), bs[n:])
	n += ord.Bool.Marshal(v.Key, bs[n:])
	n += ord.Bool.Marshal(v.Filterable, bs[n:])
	n += ord.Bool.Marshal(v.Sortable, bs[n:])
	return n + ord.Bool.Marshal(v.Searchable, bs[n:])
}

func (s fieldDefinitionMUS) Unmarshal(bs []byte) (v FieldDefinition, n int, err error) {
	v.Name, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	typ, n1, err := ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Type = FieldType(typ)
	for _, dst := range []*bool{&v.Key, &v.Filterable, &v.Sortable, &v.Searchable} {
		*dst, n1, err = ord.Bool.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func (s fieldDefinitionMUS) Size(v FieldDefinition) (size int) {
	return ord.String.Size(v.Name) + ord.String.Size(string(v.Type)) + 4
}

func (s fieldDefinitionMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	for range 2 {
		n1, err = ord.String.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	if len(bs)-n < 4 {
		return n, mus.ErrTooSmallByteSlice
	}
	return n + 4, nil
}

// VectorConfigMUS serializes VectorConfig.
var VectorConfigMUS = vectorConfigMUS{}

type vectorConfigMUS struct{}

func (s vectorConfigMUS) Marshal(v VectorConfig, bs []byte) (n int) {
	n = ord.String.Marshal(v.Field, bs)
	n += varint.Int.Marshal(v.Dimension, bs[n:])
	n += ord.String.Marshal(v.Metric, bs[n:])
	n += ord.String.Marshal(v.Algorithm, bs[n:])
	n += varint.Int.Marshal(v.M, bs[n:])
	n += varint.Int.Marshal(v.EFConstruction, bs[n:])
	return n + varint.Int.Marshal(v.EFRuntime, bs[n:])
}

func (s vectorConfigMUS) Unmarshal(bs []byte) (v VectorConfig, n int, err error) {
	var n1 int
	v.Field, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Dimension, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	for _, dst := range []*string{&v.Metric, &v.Algorithm} {
		*dst, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	for _, dst := range []*int{&v.M, &v.EFConstruction, &v.EFRuntime} {
		*dst, n1, err = varint.Int.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func (s vectorConfigMUS) Size(v VectorConfig) (size int) {
	return ord.String.Size(v.Field) + varint.Int.Size(v.Dimension) +
		ord.String.Size(v.Metric) + ord.String.Size(v.Algorithm) +
		varint.Int.Size(v.M) + varint.Int.Size(v.EFConstruction) + varint.Int.Size(v.EFRuntime)
}

func (s vectorConfigMUS) Skip(bs []byte) (n int, err error) {
	skips := []func([]byte) (int, error){
		ord.String.Skip, varint.Int.Skip, ord.String.Skip, ord.String.Skip,
		varint.Int.Skip, varint.Int.Skip, varint.Int.Skip,
	}
	var n1 int
	for _, skip := range skips {
		n1, err = skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

// SemanticConfigMUS serializes SemanticConfig.
var SemanticConfigMUS = semanticConfigMUS{}

type semanticConfigMUS struct{}

func (s semanticConfigMUS) Marshal(v SemanticConfig, bs []byte) (n int) {
	n = ord.String.Marshal(v.Name, bs)
	n += ord.String.Marshal(v.TitleField, bs[n:])
	n += stringsMUS.Marshal(v.ContentFields, bs[n:])
	return n + stringsMUS.Marshal(v.KeywordFields, bs[n:])
}

func (s semanticConfigMUS) Unmarshal(bs []byte) (v SemanticConfig, n int, err error) {
	var n1 int
	v.Name, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.TitleField, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ContentFields, n1, err = stringsMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.KeywordFields, n1, err = stringsMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (s semanticConfigMUS) Size(v SemanticConfig) (size int) {
	return ord.String.Size(v.Name) + ord.String.Size(v.TitleField) +
		stringsMUS.Size(v.ContentFields) + stringsMUS.Size(v.KeywordFields)
}

func (s semanticConfigMUS) Skip(bs []byte) (n int, err error) {
	skips := []func([]byte) (int, error){
		ord.String.Skip, ord.String.Skip, stringsMUS.Skip, stringsMUS.Skip,
	}
	var n1 int
	for _, skip := range skips {
		n1, err = skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

var (
	fieldsMUS   mus.Serializer[[]FieldDefinition] = boundedSliceMUS[FieldDefinition]{elem: FieldDefinitionMUS, minElem: 6}
	semanticMUS mus.Serializer[*SemanticConfig]   = ord.NewPtrSer[SemanticConfig](SemanticConfigMUS)
)

// SchemaDefinitionMUS serializes SchemaDefinition.
var SchemaDefinitionMUS = schemaDefinitionMUS{}

type schemaDefinitionMUS struct{}

func (s schemaDefinitionMUS) Marshal(v SchemaDefinition, bs []byte) (n int) {
	n = ord.String.Marshal(v.Name, bs)
	n += fieldsMUS.Marshal(v.Fields, bs[n:])
	n += VectorConfigMUS.Marshal(v.Vector, bs[n:])
	n += semanticMUS.Marshal(v.Semantic, bs[n:])
	return n + varint.Int64.Marshal(int64(v.DefaultTTL), bs[n:])
}

func (s schemaDefinitionMUS) Unmarshal(bs []byte) (v SchemaDefinition, n int, err error) {
	var n1 int
	v.Name, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Fields, n1, err = fieldsMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Vector, n1, err = VectorConfigMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Semantic, n1, err = semanticMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	ttl, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	v.DefaultTTL = time.Duration(ttl)
	return
}

func (s schemaDefinitionMUS) Size(v SchemaDefinition) (size int) {
	return ord.String.Size(v.Name) + fieldsMUS.Size(v.Fields) + VectorConfigMUS.Size(v.Vector) +
		semanticMUS.Size(v.Semantic) + varint.Int64.Size(int64(v.DefaultTTL))
}

func (s schemaDefinitionMUS) Skip(bs []byte) (n int, err error) {
	skips := []func([]byte) (int, error){
		ord.String.Skip, fieldsMUS.Skip, VectorConfigMUS.Skip, semanticMUS.Skip, varint.Int64.Skip,
	}
	var n1 int
	for _, skip := range skips {
		n1, err = skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}
