package convert_test

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/schemair/internal/convert"
	"github.com/i2y/schemair/internal/domain"
)

// fakeAdapter serves canned nodes keyed by operation ID.
type fakeAdapter struct {
	ops     []convert.Operation
	err     error
	inputs  map[string][]convert.Node
	outputs map[string][]convert.Node
}

func (f *fakeAdapter) Format() domain.SchemaFormat { return domain.FormatSmithy }

func (f *fakeAdapter) Provider(hint domain.Provider) domain.Provider {
	return hint.Or(domain.ProviderAWS)
}

func (f *fakeAdapter) Enumerate() ([]convert.Operation, error) { return f.ops, f.err }

func (f *fakeAdapter) Inputs(op convert.Operation, s *convert.Scope) []convert.Node {
	for _, n := range f.inputs[op.ID] {
		s.Top(n.Name)
	}
	return f.inputs[op.ID]
}

func (f *fakeAdapter) Outputs(op convert.Operation, _ *convert.Scope) []convert.Node {
	return f.outputs[op.ID]
}

func testOptions() convert.Options {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return convert.Options{ServiceName: "s3", Version: "2006-03-01", Logger: logger}
}

func ops(ids ...string) []convert.Operation {
	out := make([]convert.Operation, len(ids))
	for i, id := range ids {
		out[i] = convert.Operation{ID: id}
	}
	return out
}

func TestRun_CRUDBinding(t *testing.T) {
	a := &fakeAdapter{
		ops: ops("CreateBucket", "GetBucket", "UpdateBucket", "DeleteBucket", "RebootEverything"),
		inputs: map[string][]convert.Node{
			"CreateBucket": {
				{Name: "BucketName", Type: domain.String(), Required: true},
				{Name: "ACL", Type: domain.Enum("private", "public-read")},
				{Name: "Password", Type: domain.String(), Sensitive: true},
			},
		},
		outputs: map[string][]convert.Node{
			"GetBucket": {{Name: "CreationDate", Type: domain.DateTime()}},
		},
	}

	res, err := convert.Run(a, testOptions())
	require.NoError(t, err)

	svc := res.Service
	assert.Equal(t, domain.ProviderAWS, svc.Provider)
	assert.Equal(t, "s3", svc.Name)
	assert.Equal(t, "2006-03-01", svc.SDKVersion)
	require.Len(t, svc.Resources, 1)

	r := svc.Resources[0]
	assert.Equal(t, "bucket", r.Name)
	require.NotNil(t, r.Operations.Create)
	require.NotNil(t, r.Operations.Read)
	require.NotNil(t, r.Operations.Update)
	require.NotNil(t, r.Operations.Delete)
	assert.Equal(t, "create_bucket", r.Operations.Create.SDKOperation)
	assert.Equal(t, "get_bucket", r.Operations.Read.SDKOperation)
	assert.Equal(t, "update_bucket", r.Operations.Update.SDKOperation)
	assert.Equal(t, "delete_bucket", r.Operations.Delete.SDKOperation)
	require.NotNil(t, r.Operations.Import)
	assert.Equal(t, "get_bucket", r.Operations.Import.SDKOperation)

	require.Len(t, r.Fields, 3)
	assert.Equal(t, "bucket_name", r.Fields[0].Name)
	assert.True(t, r.Fields[0].Required)
	assert.Empty(t, r.Fields[0].ResponseAccessor)
	assert.Equal(t, "acl", r.Fields[1].Name)
	assert.True(t, r.Fields[2].Sensitive)
	assert.Equal(t, "bucket_name", r.IDField)

	require.Len(t, r.Outputs, 1)
	assert.Equal(t, "creation_date", r.Outputs[0].ResponseAccessor)
	assert.True(t, r.Outputs[0].Immutable)

	require.Len(t, svc.DataSources, 1)
	assert.Equal(t, "bucket", svc.DataSources[0].Name)
	assert.Equal(t, "get_bucket", svc.DataSources[0].Read.SDKOperation)
	assert.Empty(t, res.WarningsOf(domain.WarningNoResourcesFound))
}

func TestRun_UpdateInputsWhenNoCreate(t *testing.T) {
	a := &fakeAdapter{
		ops: ops("UpdateWidget", "DeleteWidget"),
		inputs: map[string][]convert.Node{
			"UpdateWidget": {{Name: "WidgetId", Type: domain.String(), Required: true}},
		},
	}
	res, err := convert.Run(a, testOptions())
	require.NoError(t, err)
	require.Len(t, res.Service.Resources, 1)
	r := res.Service.Resources[0]
	assert.Nil(t, r.Operations.Create)
	assert.Nil(t, r.Operations.Import)
	require.Len(t, r.Fields, 1)
	assert.Equal(t, "widget_id", r.Fields[0].Name)
	assert.Equal(t, "widget_id", r.IDField)
	assert.Empty(t, res.Service.DataSources)
}

func TestRun_NoResourcesFound(t *testing.T) {
	a := &fakeAdapter{ops: ops("Reboot", "Ping", "Get")}
	res, err := convert.Run(a, testOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Service.Resources)
	assert.NotNil(t, res.Service.Resources)
	assert.Len(t, res.WarningsOf(domain.WarningNoResourcesFound), 1)
}

func TestRun_DocumentMalformed(t *testing.T) {
	a := &fakeAdapter{err: errors.New("service shape missing")}
	res, err := convert.Run(a, testOptions())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrDocumentMalformed)
	assert.Contains(t, err.Error(), "service shape missing")
}

func TestRun_InvalidServiceName(t *testing.T) {
	opts := testOptions()
	opts.ServiceName = ""
	_, err := convert.Run(&fakeAdapter{ops: ops("CreateThing")}, opts)
	assert.ErrorIs(t, err, domain.ErrInvalidIR)
}

func TestOptions_NameFrom(t *testing.T) {
	tests := []struct {
		name       string
		given      string
		candidates []string
		want       string
	}{
		{name: "caller name kept", given: "s3", candidates: []string{"Amazon S3"}, want: "s3"},
		{name: "first usable candidate", candidates: []string{"", "Amazon S3", "other"}, want: "amazon_s3"},
		{name: "path-like candidate skipped", candidates: []string{"../escaped", "Pub/Sub", "pubsub"}, want: "pubsub"},
		{name: "fallback", candidates: []string{"--"}, want: convert.DefaultServiceName},
		{name: "no candidates", want: convert.DefaultServiceName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := convert.Options{ServiceName: tt.given}
			opts.NameFrom(tt.candidates...)
			assert.Equal(t, tt.want, opts.ServiceName)
		})
	}
}

func TestRun_SupplementaryOperations(t *testing.T) {
	a := &fakeAdapter{ops: []convert.Operation{
		{ID: "setIamPolicy", Verb: "POST", ResourceHint: "buckets"},
		{ID: "insert", Verb: "POST", ResourceHint: "buckets"},
		{ID: "get", Verb: "GET", ResourceHint: "buckets"},
		{ID: "list", Verb: "GET", ResourceHint: "buckets"},
		{ID: "getIamPolicy", Verb: "GET", ResourceHint: "buckets"},
	}}
	res, err := convert.Run(a, testOptions())
	require.NoError(t, err)
	require.Len(t, res.Service.Resources, 1)
	r := res.Service.Resources[0]

	// A name-classified operation wins over an earlier verb-classified one.
	assert.Equal(t, "insert", r.Operations.Create.SDKOperation)
	assert.Equal(t, []string{"set_iam_policy"}, r.Operations.Create.AdditionalOperations)
	// First-wins among name-classified operations.
	assert.Equal(t, "get", r.Operations.Read.SDKOperation)
	assert.Equal(t, []string{"list", "get_iam_policy"}, r.Operations.Read.AdditionalOperations)

	assert.Len(t, res.WarningsOf(domain.WarningSupplementaryOperation), 3)
	for _, w := range res.WarningsOf(domain.WarningSupplementaryOperation) {
		assert.Equal(t, "bucket", w.Resource)
	}
}

func TestRun_Blocks(t *testing.T) {
	rule := []convert.Node{
		{Name: "ID", Type: domain.String()},
		{Name: "Status", Type: domain.Enum("Enabled", "Disabled")},
		{Name: "Filter", Type: convert.ObjectOf([]convert.Node{
			{Name: "Prefix", Type: domain.String()},
			{Name: "Tags", Type: domain.Map(domain.String(), domain.String())},
		}), TypeName: "LifecycleRuleFilter", Children: []convert.Node{
			{Name: "Prefix", Type: domain.String()},
			{Name: "Tags", Type: domain.Map(domain.String(), domain.String())},
		}},
	}
	simple := []convert.Node{{Name: "Key", Type: domain.String()}, {Name: "Value", Type: domain.String()}}

	a := &fakeAdapter{
		ops: ops("CreateBucket"),
		inputs: map[string][]convert.Node{"CreateBucket": {
			{Name: "Bucket", Type: domain.String(), Required: true},
			{Name: "Rules", Type: domain.List(convert.ObjectOf(rule)), TypeName: "LifecycleRule", Children: rule},
			{Name: "Tag", Type: convert.ObjectOf(simple), TypeName: "Tag", Children: simple},
			{Name: "Names", Type: domain.List(domain.String())},
		}},
	}
	res, err := convert.Run(a, testOptions())
	require.NoError(t, err)
	r := res.Service.Resources[0]

	assert.Len(t, r.Fields, 4)
	assert.Equal(t, "bucket", r.IDField)
	require.Len(t, r.Blocks, 1, "simple two-member object and scalar list are not blocks")

	b := r.Blocks[0]
	assert.Equal(t, "rules", b.Name)
	assert.Equal(t, domain.NestingList, b.NestingMode)
	assert.Equal(t, 0, b.MinItems)
	assert.Equal(t, 0, b.MaxItems)
	assert.Equal(t, "LifecycleRule", b.SDKTypeName)
	assert.Equal(t, "Rules", b.SDKAccessorMethod)
	require.Len(t, b.Attributes, 2)
	assert.Equal(t, "id", b.Attributes[0].Name)
	assert.Equal(t, "status", b.Attributes[1].Name)

	require.Len(t, b.Blocks, 1)
	nested := b.Blocks[0]
	assert.Equal(t, "filter", nested.Name)
	assert.Equal(t, domain.NestingSingle, nested.NestingMode)
	assert.Equal(t, 1, nested.MinItems)
	assert.Equal(t, 1, nested.MaxItems)
	assert.Equal(t, "LifecycleRuleFilter", nested.SDKTypeName)
	assert.Len(t, nested.Attributes, 2)
}

func TestRun_DroppedAndDuplicateFields(t *testing.T) {
	a := &fakeAdapter{
		ops: ops("CreateThing"),
		inputs: map[string][]convert.Node{"CreateThing": {
			{Name: "thingName", Type: domain.String()},
			{Name: "--", Type: domain.String()},
			{Name: "ThingName", Type: domain.Integer()},
			{Name: "Untyped"},
		}},
	}
	res, err := convert.Run(a, testOptions())
	require.NoError(t, err)
	r := res.Service.Resources[0]
	require.Len(t, r.Fields, 2)
	assert.Equal(t, "thing_name", r.Fields[0].Name)
	assert.Equal(t, domain.KindString, r.Fields[0].Type.Kind())
	assert.Equal(t, domain.KindString, r.Fields[1].Type.Kind(), "missing type falls back")

	dropped := res.WarningsOf(domain.WarningDroppedField)
	require.Len(t, dropped, 2)
	assert.Equal(t, "thing", dropped[0].Resource)
	assert.Contains(t, dropped[0].Message, `"--"`)
	assert.Equal(t, "thing_name", dropped[1].Field)
	assert.Contains(t, dropped[1].Message, `"ThingName"`)
}

func TestRun_Deterministic(t *testing.T) {
	var ids []string
	inputs := map[string][]convert.Node{}
	for i := range 40 {
		id := fmt.Sprintf("CreateResource%c%c", 'A'+i%26, 'A'+i/26)
		ids = append(ids, id)
		inputs[id] = []convert.Node{{Name: fmt.Sprintf("Field%d", i), Type: domain.Integer()}}
	}
	a := &fakeAdapter{ops: ops(ids...), inputs: inputs}

	seq := testOptions()
	par := testOptions()
	par.Parallelism = 8

	want, err := convert.Run(a, seq)
	require.NoError(t, err)
	for range 5 {
		got, err := convert.Run(a, par)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
