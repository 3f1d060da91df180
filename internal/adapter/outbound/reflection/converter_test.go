package reflection_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/schemair/internal/adapter/outbound/reflection"
	"github.com/i2y/schemair/internal/convert"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/internal/usecase"
)

type Tier string

func (Tier) Values() []Tier { return []Tier{"hot", "cold"} }

type Rule struct {
	Prefix   string
	Days     int32
	Children []Rule
}

type Config struct {
	Region  string
	Zone    string
	Storage int64
}

type Common struct {
	RequestToken string `json:"request_token"`
}

type CreateTableInput struct {
	Common
	TableName *string            `validate:"required" doc:"Name of the table."`
	Tier      Tier               `json:"tier"`
	Password  *string            `sensitive:"true"`
	Owner     string             `immutable:"true"`
	Tags      map[string]string  `json:"tags,omitempty"`
	Rules     []Rule             `json:"rules"`
	Config    *Config            `json:"config"`
	Payload   []byte             `json:"payload"`
	Hook      func()             `json:"hook"`
	Ignored   string             `json:"-"`
	Meta      map[string]float64 `json:"meta"`
	internal  string
}

type CreateTableOutput struct {
	TableArn *string
}

type GetTableInput struct {
	TableName *string `validate:"required"`
}

type GetTableOutput struct {
	TableName *string
	TableArn  *string
	Size      float64
	CreatedAt *time.Time
}

type DeleteTableInput struct {
	TableName *string `validate:"required"`
}

type DeleteTableOutput struct{}

type Options struct{}

type TableClient struct{}

func (*TableClient) CreateTable(context.Context, *CreateTableInput, ...func(*Options)) (*CreateTableOutput, error) {
	return nil, nil
}

func (*TableClient) GetTable(context.Context, *GetTableInput, ...func(*Options)) (*GetTableOutput, error) {
	return nil, nil
}

func (*TableClient) DeleteTable(context.Context, *DeleteTableInput) (*DeleteTableOutput, error) {
	return nil, nil
}

func (*TableClient) ListTables(context.Context, *GetTableInput, ...func(*Options)) (*GetTableOutput, error) {
	return nil, nil
}

func (*TableClient) Options() Options { return Options{} }

func (*TableClient) UpdateTable(*GetTableInput) (*GetTableOutput, error) { return nil, nil }

type TableAPI interface {
	GetTable(context.Context, *GetTableInput, ...func(*Options)) (*GetTableOutput, error)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func load(t *testing.T, client any) domain.APISchema {
	t.Helper()
	reg := reflection.NewRegistry()
	require.NoError(t, reg.Register("tables", "2024-01-01", client))
	l := reflection.NewLoader(reg, testLogger())
	schema, err := l.Load(context.Background(), usecase.SchemaSourceConfig{URL: "reflect://tables"})
	require.NoError(t, err)
	return schema
}

func fieldByName(fields []domain.FieldDefinition, name string) (domain.FieldDefinition, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return domain.FieldDefinition{}, false
}

func TestConverter_Client(t *testing.T) {
	schema := load(t, (*TableClient)(nil))
	c := reflection.NewConverter(testLogger())
	res, err := c.Convert(schema, convert.Options{})
	require.NoError(t, err)

	svc := res.Service
	assert.Equal(t, "tables", svc.Name)
	assert.Equal(t, "2024-01-01", svc.SDKVersion)
	assert.Equal(t, domain.ProviderAWS, svc.Provider)
	require.Len(t, svc.Resources, 1)

	table := svc.Resources[0]
	assert.Equal(t, "table", table.Name)
	require.NotNil(t, table.Operations.Create)
	assert.Equal(t, "create_table", table.Operations.Create.SDKOperation)
	require.NotNil(t, table.Operations.Read)
	assert.Equal(t, []string{"list_tables"}, table.Operations.Read.AdditionalOperations)
	require.NotNil(t, table.Operations.Delete)
	assert.Nil(t, table.Operations.Update, "UpdateTable lacks a context parameter")

	tests := []struct {
		field     string
		want      domain.FieldType
		required  bool
		sensitive bool
		immutable bool
	}{
		{field: "request_token", want: domain.String()},
		{field: "table_name", want: domain.String(), required: true},
		{field: "tier", want: domain.Enum("hot", "cold")},
		{field: "password", want: domain.String(), sensitive: true},
		{field: "owner", want: domain.String(), immutable: true},
		{field: "tags", want: domain.Map(domain.String(), domain.String())},
		{field: "payload", want: domain.String()},
		{field: "hook", want: domain.Fallback()},
		{field: "meta", want: domain.Map(domain.String(), domain.Float())},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f, ok := fieldByName(table.Fields, tt.field)
			require.True(t, ok, "field %s missing", tt.field)
			assert.True(t, domain.EqualTypes(tt.want, f.Type), "got %s", f.Type)
			assert.Equal(t, tt.required, f.Required)
			assert.Equal(t, tt.sensitive, f.Sensitive)
			assert.Equal(t, tt.immutable, f.Immutable)
		})
	}
	name, _ := fieldByName(table.Fields, "table_name")
	assert.Equal(t, "Name of the table.", name.Description)
	_, ok := fieldByName(table.Fields, "ignored")
	assert.False(t, ok)
	_, ok = fieldByName(table.Fields, "internal")
	assert.False(t, ok)

	blocks := map[string]domain.BlockDefinition{}
	for _, b := range table.Blocks {
		blocks[b.Name] = b
	}
	require.Contains(t, blocks, "rules")
	assert.Equal(t, domain.NestingList, blocks["rules"].NestingMode)
	assert.Equal(t, "Rule", blocks["rules"].SDKTypeName)
	require.Contains(t, blocks, "config")
	assert.Equal(t, domain.NestingSingle, blocks["config"].NestingMode)

	created, ok := fieldByName(table.Outputs, "created_at")
	require.True(t, ok)
	assert.True(t, domain.EqualTypes(domain.DateTime(), created.Type))
	assert.Equal(t, "table_name", table.IDField)

	var cycles []string
	for _, w := range res.WarningsOf(domain.WarningRecursionLimitExceeded) {
		cycles = append(cycles, w.Field)
	}
	assert.Contains(t, cycles, "rules.children")
	assert.NotEmpty(t, res.WarningsOf(domain.WarningUnsupportedNativeType))
}

func TestConverter_Interface(t *testing.T) {
	schema := load(t, (*TableAPI)(nil))
	res, err := reflection.NewConverter(testLogger()).Convert(schema, convert.Options{ServiceName: "api"})
	require.NoError(t, err)
	require.Len(t, res.Service.Resources, 1)
	assert.Equal(t, "get_table", res.Service.Resources[0].Operations.Read.SDKOperation)
}

func TestRegistry(t *testing.T) {
	reg := reflection.NewRegistry()
	assert.Error(t, reg.Register("", "", (*TableClient)(nil)))
	assert.Error(t, reg.Register("nil", "", nil))
	require.NoError(t, reg.Register("b", "", (*TableClient)(nil)))
	require.NoError(t, reg.Register("a", "", TableClient{}))
	assert.Equal(t, []string{"a", "b"}, reg.Names())

	_, err := reg.Lookup("missing")
	assert.True(t, errors.Is(err, reflection.ErrClientNotRegistered))
}
