package tradeapi

import (
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	// registers google/protobuf/timestamp.proto in protoregistry.GlobalFiles
	_ "google.golang.org/protobuf/types/known/timestamppb"
)

var (
	builtinOnce sync.Once
	builtin     *protoregistry.Types
)

// builtinTypes returns dynamic types for the auth service messages.
func builtinTypes() *protoregistry.Types {
	builtinOnce.Do(func() {
		types := new(protoregistry.Types)
		fd, err := protodesc.NewFile(AuthFileDescriptor(), protoregistry.GlobalFiles)
		if err == nil {
			err = registerMessages(types, fd.Messages())
		}
		if err != nil {
			panic("tradeapi: invalid built-in auth descriptor: " + err.Error())
		}
		builtin = types
	})
	return builtin
}

// AuthFileDescriptor describes the subset of auth_service.proto needed for
// the token exchange.
func AuthFileDescriptor() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String("grpc/tradeapi/v1/auth/auth_service.proto"),
		Package:    proto.String("grpc.tradeapi.v1.auth"),
		Dependency: []string{"google/protobuf/timestamp.proto"},
		Syntax:     proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			NewMessageProto("AuthRequest", StringField("secret", 1)),
			NewMessageProto("AuthResponse", StringField("token", 1)),
			NewMessageProto("TokenDetailsRequest", StringField("token", 1)),
			NewMessageProto("TokenDetailsResponse",
				MessageField("created_at", 1, ".google.protobuf.Timestamp", false),
				MessageField("expires_at", 2, ".google.protobuf.Timestamp", false),
				RepeatedStringField("account_ids", 4),
				BoolField("readonly", 5),
			),
		},
	}
}

// -----------------------------------------------------------------------------
// Descriptor builders, shared with tests and tools that assemble schemas
// without protoc.
// -----------------------------------------------------------------------------

func NewMessageProto(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func scalarField(name string, number int32, kind descriptorpb.FieldDescriptorProto_Type, repeated bool) *descriptorpb.FieldDescriptorProto {
	label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	if repeated {
		label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
	}
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(jsonName(name)),
		Number:   proto.Int32(number),
		Label:    label.Enum(),
		Type:     kind.Enum(),
	}
}

func StringField(name string, number int32) *descriptorpb.FieldDescriptorProto {
	return scalarField(name, number, descriptorpb.FieldDescriptorProto_TYPE_STRING, false)
}

func RepeatedStringField(name string, number int32) *descriptorpb.FieldDescriptorProto {
	return scalarField(name, number, descriptorpb.FieldDescriptorProto_TYPE_STRING, true)
}

func BoolField(name string, number int32) *descriptorpb.FieldDescriptorProto {
	return scalarField(name, number, descriptorpb.FieldDescriptorProto_TYPE_BOOL, false)
}

func Int32Field(name string, number int32) *descriptorpb.FieldDescriptorProto {
	return scalarField(name, number, descriptorpb.FieldDescriptorProto_TYPE_INT32, false)
}

func Int64Field(name string, number int32) *descriptorpb.FieldDescriptorProto {
	return scalarField(name, number, descriptorpb.FieldDescriptorProto_TYPE_INT64, false)
}

// MessageField references a message type by its fully qualified name
// (leading dot included).
func MessageField(name string, number int32, typeName string, repeated bool) *descriptorpb.FieldDescriptorProto {
	f := scalarField(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, repeated)
	f.TypeName = proto.String(typeName)
	return f
}

// EnumField references an enum type by its fully qualified name.
func EnumField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalarField(name, number, descriptorpb.FieldDescriptorProto_TYPE_ENUM, false)
	f.TypeName = proto.String(typeName)
	return f
}

func NewEnumProto(name string, values ...*descriptorpb.EnumValueDescriptorProto) *descriptorpb.EnumDescriptorProto {
	return &descriptorpb.EnumDescriptorProto{Name: proto.String(name), Value: values}
}

func EnumValue(name string, number int32) *descriptorpb.EnumValueDescriptorProto {
	return &descriptorpb.EnumValueDescriptorProto{Name: proto.String(name), Number: proto.Int32(number)}
}

func jsonName(name string) string {
	out := make([]byte, 0, len(name))
	upper := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' {
			upper = true
			continue
		}
		if upper && 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}
