package tradeapi

import (
	"errors"
	"fmt"
	"os"
	"time"

	"tradeapi-connector/src/helpers"
	"tradeapi-connector/src/models"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// -----------------------------------------------------------------------------

// Schema resolves broker message types by full name. Lookups go to the
// primary resolver first and then to the built-in auth descriptors, so the
// token exchange works even when nothing else is known.
type Schema struct {
	primary  protoregistry.MessageTypeResolver
	fallback protoregistry.MessageTypeResolver
}

// NewSchema wraps a resolver. A nil resolver means the process global
// registry (generated code linked into the binary).
func NewSchema(resolver protoregistry.MessageTypeResolver) *Schema {
	if resolver == nil {
		resolver = protoregistry.GlobalTypes
	}
	return &Schema{primary: resolver, fallback: builtinTypes()}
}

// -----------------------------------------------------------------------------

// LoadSchema reads a serialized FileDescriptorSet (protoc
// --include_imports --descriptor_set_out) and registers every message in it
// as a dynamic type.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, helpers.NewSchemaError(fmt.Sprintf("failed to read descriptor set '%s'", path), err)
	}

	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &set); err != nil {
		return nil, helpers.NewSchemaError("failed to decode descriptor set", err)
	}

	return SchemaFromDescriptorSet(&set)
}

// SchemaFromDescriptorSet builds a schema from an in-memory descriptor set.
func SchemaFromDescriptorSet(set *descriptorpb.FileDescriptorSet) (*Schema, error) {
	files, err := protodesc.NewFiles(set)
	if err != nil {
		return nil, helpers.NewSchemaError("failed to link descriptor set", err)
	}

	types := new(protoregistry.Types)
	var regErr error
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		regErr = registerMessages(types, fd.Messages())
		return regErr == nil
	})
	if regErr != nil {
		return nil, helpers.NewSchemaError("failed to register message types", regErr)
	}

	return NewSchema(types), nil
}

func registerMessages(types *protoregistry.Types, messages protoreflect.MessageDescriptors) error {
	for i := 0; i < messages.Len(); i++ {
		md := messages.Get(i)
		if md.IsMapEntry() {
			continue
		}
		if err := types.RegisterMessage(dynamicpb.NewMessageType(md)); err != nil {
			return err
		}
		if err := registerMessages(types, md.Messages()); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Find returns the message type registered under name.
func (s *Schema) Find(name string) (protoreflect.MessageType, error) {
	full := protoreflect.FullName(name)
	mt, err := s.primary.FindMessageByName(full)
	if err == nil {
		return mt, nil
	}
	if !errors.Is(err, protoregistry.NotFound) {
		return nil, helpers.NewSchemaError(fmt.Sprintf("lookup of %s failed", name), err)
	}
	if mt, ferr := s.fallback.FindMessageByName(full); ferr == nil {
		return mt, nil
	}
	return nil, helpers.NewSchemaError(fmt.Sprintf("message type %s is not in the schema", name), err)
}

// Has reports whether name resolves.
func (s *Schema) Has(name string) bool {
	_, err := s.Find(name)
	return err == nil
}

// New returns an empty message of the named type.
func (s *Schema) New(name string) (proto.Message, error) {
	mt, err := s.Find(name)
	if err != nil {
		return nil, err
	}
	return mt.New().Interface(), nil
}

// -----------------------------------------------------------------------------

// Build creates a message of the named type and sets the given fields.
// Values may be Go scalars, []string (or other slices) for repeated fields,
// enum value names as strings, or proto.Message for message fields.
func (s *Schema) Build(name string, fields map[string]any) (proto.Message, error) {
	msg, err := s.New(name)
	if err != nil {
		return nil, err
	}
	m := msg.ProtoReflect()
	for key, value := range fields {
		fd := m.Descriptor().Fields().ByName(protoreflect.Name(key))
		if fd == nil {
			return nil, helpers.NewSchemaError(fmt.Sprintf("%s has no field %q", name, key), nil)
		}
		if err := setField(m, fd, value); err != nil {
			return nil, helpers.NewSchemaError(fmt.Sprintf("cannot set %s.%s", name, key), err)
		}
	}
	return msg, nil
}

func setField(m protoreflect.Message, fd protoreflect.FieldDescriptor, value any) error {
	if fd.IsMap() {
		return fmt.Errorf("map fields are not supported")
	}
	if fd.IsList() {
		items, err := toSlice(value)
		if err != nil {
			return err
		}
		list := m.Mutable(fd).List()
		for _, item := range items {
			v, err := scalarValue(fd, item)
			if err != nil {
				return err
			}
			list.Append(v)
		}
		return nil
	}
	v, err := scalarValue(fd, value)
	if err != nil {
		return err
	}
	m.Set(fd, v)
	return nil
}

func toSlice(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	case []int:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	case []proto.Message:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	}
	return nil, fmt.Errorf("repeated field needs a slice, got %T", value)
}

func scalarValue(fd protoreflect.FieldDescriptor, value any) (protoreflect.Value, error) {
	switch fd.Kind() {
	case protoreflect.StringKind:
		if s, ok := value.(string); ok {
			return protoreflect.ValueOfString(s), nil
		}
	case protoreflect.BoolKind:
		if b, ok := value.(bool); ok {
			return protoreflect.ValueOfBool(b), nil
		}
	case protoreflect.BytesKind:
		if b, ok := value.([]byte); ok {
			return protoreflect.ValueOfBytes(b), nil
		}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		if n, ok := toInt64(value); ok {
			return protoreflect.ValueOfInt32(int32(n)), nil
		}
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if n, ok := toInt64(value); ok {
			return protoreflect.ValueOfInt64(n), nil
		}
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		if n, ok := toInt64(value); ok && n >= 0 {
			return protoreflect.ValueOfUint32(uint32(n)), nil
		}
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if n, ok := toInt64(value); ok && n >= 0 {
			return protoreflect.ValueOfUint64(uint64(n)), nil
		}
	case protoreflect.DoubleKind:
		if f, ok := toFloat64(value); ok {
			return protoreflect.ValueOfFloat64(f), nil
		}
	case protoreflect.FloatKind:
		if f, ok := toFloat64(value); ok {
			return protoreflect.ValueOfFloat32(float32(f)), nil
		}
	case protoreflect.EnumKind:
		switch v := value.(type) {
		case string:
			ev := fd.Enum().Values().ByName(protoreflect.Name(v))
			if ev == nil {
				return protoreflect.Value{}, fmt.Errorf("enum %s has no value %s", fd.Enum().FullName(), v)
			}
			return protoreflect.ValueOfEnum(ev.Number()), nil
		default:
			if n, ok := toInt64(v); ok {
				return protoreflect.ValueOfEnum(protoreflect.EnumNumber(n)), nil
			}
		}
	case protoreflect.MessageKind, protoreflect.GroupKind:
		if msg, ok := value.(proto.Message); ok {
			if msg.ProtoReflect().Descriptor().FullName() != fd.Message().FullName() {
				return protoreflect.Value{}, fmt.Errorf("want %s, got %s", fd.Message().FullName(), msg.ProtoReflect().Descriptor().FullName())
			}
			return protoreflect.ValueOfMessage(msg.ProtoReflect()), nil
		}
	}
	return protoreflect.Value{}, fmt.Errorf("value %v (%T) does not fit %s field", value, value, fd.Kind())
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	}
	return 0, false
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	if n, ok := toInt64(value); ok {
		return float64(n), true
	}
	return 0, false
}

// -----------------------------------------------------------------------------
// Getters. They work on generated and dynamic messages alike and return zero
// values for unknown fields.
// -----------------------------------------------------------------------------

func field(msg proto.Message, name string) (protoreflect.Message, protoreflect.FieldDescriptor) {
	if msg == nil {
		return nil, nil
	}
	m := msg.ProtoReflect()
	if !m.IsValid() {
		return nil, nil
	}
	return m, m.Descriptor().Fields().ByName(protoreflect.Name(name))
}

// String returns a string field.
func String(msg proto.Message, name string) string {
	m, fd := field(msg, name)
	if fd == nil || fd.IsList() || fd.Kind() != protoreflect.StringKind {
		return ""
	}
	return m.Get(fd).String()
}

// Int returns an integer field as int64.
func Int(msg proto.Message, name string) int64 {
	m, fd := field(msg, name)
	if fd == nil || fd.IsList() {
		return 0
	}
	switch fd.Kind() {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return m.Get(fd).Int()
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind, protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return int64(m.Get(fd).Uint())
	case protoreflect.EnumKind:
		return int64(m.Get(fd).Enum())
	}
	return 0
}

// Bool returns a bool field.
func Bool(msg proto.Message, name string) bool {
	m, fd := field(msg, name)
	if fd == nil || fd.IsList() || fd.Kind() != protoreflect.BoolKind {
		return false
	}
	return m.Get(fd).Bool()
}

// Strings returns a repeated string field.
func Strings(msg proto.Message, name string) []string {
	m, fd := field(msg, name)
	if fd == nil || !fd.IsList() || fd.Kind() != protoreflect.StringKind {
		return nil
	}
	list := m.Get(fd).List()
	out := make([]string, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		out = append(out, list.Get(i).String())
	}
	return out
}

// Message returns a singular message field, or nil when unset.
func Message(msg proto.Message, name string) proto.Message {
	m, fd := field(msg, name)
	if fd == nil || fd.IsList() || fd.Message() == nil || !m.Has(fd) {
		return nil
	}
	return m.Get(fd).Message().Interface()
}

// List returns the items of a repeated message field.
func List(msg proto.Message, name string) []proto.Message {
	m, fd := field(msg, name)
	if fd == nil || !fd.IsList() || fd.Message() == nil {
		return nil
	}
	list := m.Get(fd).List()
	out := make([]proto.Message, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		out = append(out, list.Get(i).Message().Interface())
	}
	return out
}

// Time reads a google.protobuf.Timestamp field. Unset fields give the zero time.
func Time(msg proto.Message, name string) time.Time {
	ts := Message(msg, name)
	if ts == nil {
		return time.Time{}
	}
	seconds := Int(ts, "seconds")
	nanos := Int(ts, "nanos")
	return time.Unix(seconds, nanos).UTC()
}

func errUnsupportedKind(kind models.StreamKind) error {
	return helpers.NewSchemaError(fmt.Sprintf("stream kind %q has no one-way binding", kind), nil)
}
