package proto_test

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/jhump/protoreflect/desc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/test/bufconn"
	gproto "google.golang.org/protobuf/proto"

	"github.com/i2y/schemair/internal/adapter/outbound/proto"
	"github.com/i2y/schemair/internal/adapter/outbound/source"
	"github.com/i2y/schemair/internal/convert"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

const libraryProto = `
syntax = "proto3";

package library.v1;

import "google/api/annotations.proto";
import "google/api/field_behavior.proto";
import "google/api/resource.proto";
import "google/protobuf/timestamp.proto";

service Library {
  // Creates a book.
  rpc CreateBook(CreateBookRequest) returns (Book) {
    option (google.api.http) = {post: "/v1/books" body: "book"};
  }
  // Gets a book.
  rpc GetBook(GetBookRequest) returns (Book) {
    option (google.api.http) = {get: "/v1/{name=books/*}"};
  }
  rpc UpdateBook(UpdateBookRequest) returns (Book);
  rpc DeleteBook(GetBookRequest) returns (DeleteBookResponse);
  rpc ListBooks(ListBooksRequest) returns (ListBooksResponse);
  rpc WatchBooks(ListBooksRequest) returns (stream Book);
  rpc ArchiveBook(GetBookRequest) returns (Book) {
    option (google.api.http) = {post: "/v1/{name=books/*}:archive"};
  }
}

message Book {
  option (google.api.resource) = {
    type: "library.googleapis.com/Book"
    pattern: "books/{book}"
  };

  // Resource name of the book.
  string name = 1 [(google.api.field_behavior) = IMMUTABLE];
  string title = 2 [(google.api.field_behavior) = REQUIRED];
  Genre genre = 3;
  google.protobuf.Timestamp create_time = 4;
  map<string, int64> ratings = 5;
  repeated Chapter chapters = 6;
  Author author = 7;
  string secret = 8 [debug_redact = true];
  Book sequel = 9;
}

enum Genre {
  GENRE_UNSPECIFIED = 0;
  FICTION = 1;
}

message Chapter {
  string title = 1;
  int32 pages = 2;
}

message Author {
  string name = 1;
  string email = 2;
  string bio = 3;
}

message CreateBookRequest {
  string parent = 1;
  Book book = 2 [(google.api.field_behavior) = REQUIRED];
}

message GetBookRequest {
  string name = 1 [(google.api.field_behavior) = REQUIRED];
}

message UpdateBookRequest {
  Book book = 1;
}

message DeleteBookResponse {}

message ListBooksRequest {
  string parent = 1;
}

message ListBooksResponse {
  repeated Book books = 1;
}
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func convertModel(t *testing.T, model *proto.Model) *domain.Result {
	t.Helper()
	c := proto.NewConverter(testLogger())
	res, err := c.Convert(domain.APISchema{Source: "library.proto", Format: domain.FormatProto, ParsedData: model},
		convert.Options{ServiceName: "library"})
	require.NoError(t, err)
	return res
}

func fieldByName(fields []domain.FieldDefinition, name string) (domain.FieldDefinition, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return domain.FieldDefinition{}, false
}

func TestConverter_Library(t *testing.T) {
	model, err := proto.ParseProto("library.proto", []byte(libraryProto), nil)
	require.NoError(t, err)
	require.Len(t, model.Services, 1)

	res := convertModel(t, model)
	svc := res.Service
	assert.Equal(t, domain.ProviderGCP, svc.Provider)
	assert.Equal(t, "library.v1", svc.SDKVersion)
	require.Len(t, svc.Resources, 1)

	book := svc.Resources[0]
	assert.Equal(t, "book", book.Name)
	assert.Equal(t, "Creates a book.", book.Description)
	require.True(t, book.HasCRUD())
	assert.Equal(t, "create_book", book.Operations.Create.SDKOperation)
	assert.Equal(t, []string{"archive_book"}, book.Operations.Create.AdditionalOperations)
	assert.Equal(t, "get_book", book.Operations.Read.SDKOperation)
	assert.Equal(t, []string{"list_books"}, book.Operations.Read.AdditionalOperations)
	assert.Equal(t, "update_book", book.Operations.Update.SDKOperation)
	assert.Equal(t, "delete_book", book.Operations.Delete.SDKOperation)

	parent, ok := fieldByName(book.Fields, "parent")
	require.True(t, ok)
	assert.False(t, parent.Required)
	bookField, ok := fieldByName(book.Fields, "book")
	require.True(t, ok)
	assert.True(t, bookField.Required)

	require.Len(t, book.Blocks, 1)
	block := book.Blocks[0]
	assert.Equal(t, "book", block.Name)
	assert.Equal(t, domain.NestingSingle, block.NestingMode)
	assert.Equal(t, "Book", block.SDKTypeName)

	tests := []struct {
		field     string
		want      domain.FieldType
		required  bool
		immutable bool
		sensitive bool
	}{
		{field: "name", want: domain.String(), immutable: true},
		{field: "title", want: domain.String(), required: true},
		{field: "genre", want: domain.Enum("GENRE_UNSPECIFIED", "FICTION")},
		{field: "create_time", want: domain.DateTime()},
		{field: "ratings", want: domain.Map(domain.String(), domain.Integer())},
		{field: "secret", want: domain.String(), sensitive: true},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f, ok := fieldByName(block.Attributes, tt.field)
			require.True(t, ok, "attribute %s missing", tt.field)
			assert.True(t, domain.EqualTypes(tt.want, f.Type), "got %s", f.Type)
			assert.Equal(t, tt.required, f.Required)
			assert.Equal(t, tt.immutable, f.Immutable)
			assert.Equal(t, tt.sensitive, f.Sensitive)
		})
	}

	nested := map[string]domain.BlockDefinition{}
	for _, b := range block.Blocks {
		nested[b.Name] = b
	}
	require.Contains(t, nested, "chapters")
	assert.Equal(t, domain.NestingList, nested["chapters"].NestingMode)
	require.Contains(t, nested, "author")
	assert.Equal(t, domain.NestingSingle, nested["author"].NestingMode)

	name, ok := fieldByName(book.Outputs, "name")
	require.True(t, ok)
	assert.Equal(t, "Resource name of the book.", name.Description)
	assert.Equal(t, "name", book.IDField)

	var cycles []string
	for _, w := range res.WarningsOf(domain.WarningRecursionLimitExceeded) {
		cycles = append(cycles, w.Field)
	}
	assert.Contains(t, cycles, "book.sequel")
	assert.NotEmpty(t, res.WarningsOf(domain.WarningSupplementaryOperation))
}

func TestParseDescriptorSet(t *testing.T) {
	model, err := proto.ParseProto("library.proto", []byte(libraryProto), nil)
	require.NoError(t, err)

	set := desc.ToFileDescriptorSet(model.Services[0].GetFile())
	data, err := gproto.Marshal(set)
	require.NoError(t, err)

	parsed, err := proto.ParseDescriptorSet(data)
	require.NoError(t, err)
	require.Len(t, parsed.Services, 1)
	assert.Equal(t, "library.v1.Library", parsed.Services[0].GetFullyQualifiedName())

	res := convertModel(t, parsed)
	require.Len(t, res.Service.Resources, 1)
	assert.Equal(t, "book", res.Service.Resources[0].Name)
}

func TestParse_Errors(t *testing.T) {
	_, err := proto.ParseProto("broken.proto", []byte("syntax = \"proto3\"; message {"), nil)
	assert.Error(t, err)

	_, err = proto.ParseDescriptorSet([]byte{0xff, 0xff})
	assert.Error(t, err)
}

func TestConverter_NoServices(t *testing.T) {
	parsed, err := proto.ParseProto("empty.proto", []byte("syntax = \"proto3\"; package empty; message Nothing {}"), nil)
	require.NoError(t, err)
	assert.Empty(t, parsed.Services)

	tests := []struct {
		name  string
		model *proto.Model
	}{
		{name: "message only", model: parsed},
		{name: "empty model", model: &proto.Model{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := convertModel(t, tt.model)
			assert.Equal(t, "library", res.Service.Name)
			assert.Empty(t, res.Service.Resources)
			assert.Len(t, res.WarningsOf(domain.WarningNoResourcesFound), 1)
		})
	}
}

func TestConverter_DefaultServiceName(t *testing.T) {
	library, err := proto.ParseProto("library.proto", []byte(libraryProto), nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		model *proto.Model
		want  string
	}{
		{name: "first service", model: library, want: "library"},
		{name: "no services", model: &proto.Model{}, want: convert.DefaultServiceName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := proto.NewConverter(testLogger()).Convert(
				domain.APISchema{Format: domain.FormatProto, ParsedData: tt.model}, convert.Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Service.Name)
		})
	}
}

func TestLoader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.proto")
	require.NoError(t, os.WriteFile(path, []byte(libraryProto), 0o644))

	logger := testLogger()
	l := proto.NewLoader(source.NewFetcher(nil, logger), logger)
	schema, err := l.Load(context.Background(), usecase.SchemaSourceConfig{URL: path})
	require.NoError(t, err)
	assert.Equal(t, domain.FormatProto, schema.Format)
	model, ok := schema.ParsedData.(*proto.Model)
	require.True(t, ok)
	assert.Len(t, model.Services, 1)
}

func TestLoader_Reflection(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, health.NewServer())
	reflection.Register(srv)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	logger := testLogger()
	l := proto.NewLoader(source.NewFetcher(nil, logger), logger,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))

	schema, err := l.Load(context.Background(), usecase.SchemaSourceConfig{URL: "grpc://passthrough:///bufnet"})
	require.NoError(t, err)
	model, ok := schema.ParsedData.(*proto.Model)
	require.True(t, ok)
	require.Len(t, model.Services, 1)
	assert.Equal(t, "grpc.health.v1.Health", model.Services[0].GetFullyQualifiedName())
	assert.NotEmpty(t, schema.RawData)
}
