package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/schemair/configs"
	"github.com/i2y/schemair/internal/domain"
	"github.com/i2y/schemair/pkg/schemair"
)

func TestCompileCmd_Sources(t *testing.T) {
	cfg := &configs.Config{Sources: []configs.Source{{URL: "models/s3.json", Format: "smithy"}}}

	tests := []struct {
		name    string
		cmd     CompileCmd
		want    []schemair.Source
		wantErr bool
	}{
		{
			name: "config sources when no argument",
			cmd:  CompileCmd{},
			want: []schemair.Source{{URL: "models/s3.json", Format: domain.FormatSmithy}},
		},
		{
			name: "flags apply to every argument",
			cmd: CompileCmd{
				Sources:  []string{"a.proto", "b.proto"},
				Provider: "gcp", ImportPaths: []string{"third_party"},
			},
			want: []schemair.Source{
				{URL: "a.proto", Provider: domain.ProviderGCP, ImportPaths: []string{"third_party"}},
				{URL: "b.proto", Provider: domain.ProviderGCP, ImportPaths: []string{"third_party"}},
			},
		},
		{
			name:    "unknown format",
			cmd:     CompileCmd{Sources: []string{"a.graphql"}, Format: "graphql"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.sources(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteResults(t *testing.T) {
	one := &schemair.Result{Service: schemair.Service{Name: "s3", Provider: domain.ProviderAWS}}
	two := &schemair.Result{Service: schemair.Service{Name: "ec2", Provider: domain.ProviderAWS}}

	var buf bytes.Buffer
	require.NoError(t, writeResults(&buf, []*schemair.Result{one}))
	var obj map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &obj))
	assert.Contains(t, obj, "service")

	buf.Reset()
	require.NoError(t, writeResults(&buf, []*schemair.Result{one, two}))
	var arr []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &arr))
	assert.Len(t, arr, 2)
}

func TestPrintSummary(t *testing.T) {
	res := &schemair.Result{
		Service:  schemair.Service{Name: "s3"},
		Warnings: []domain.Warning{{Kind: domain.WarningUnsupportedNativeType, Resource: "bucket", Message: "blob"}},
	}
	var buf bytes.Buffer
	printSummary(&buf, res, "out/s3.json")
	assert.Contains(t, buf.String(), "s3: 0 resources, 0 data sources, 1 warnings -> out/s3.json")
	assert.Contains(t, buf.String(), "warning: ")
}
