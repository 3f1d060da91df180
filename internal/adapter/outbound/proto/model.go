// Package proto compiles protobuf service descriptors, read from .proto
// sources, descriptor sets or live gRPC reflection.
package proto

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fullstorydev/grpcurl"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Model is the parsed form of a protobuf source: its services in
// declaration order.
type Model struct {
	Services []*desc.ServiceDescriptor
}

// ParseProto compiles a .proto source. Imports are looked up in importPaths,
// then in the descriptors linked into this binary, which covers the
// well-known types and the google.api annotations.
func ParseProto(name string, data []byte, importPaths []string) (*Model, error) {
	main := filepath.Base(name)
	parser := protoparse.Parser{
		ImportPaths:           importPaths,
		IncludeSourceCodeInfo: true,
		Accessor: func(filename string) (io.ReadCloser, error) {
			if filename == main || filepath.Base(filename) == main {
				return io.NopCloser(strings.NewReader(string(data))), nil
			}
			return os.Open(filename)
		},
		LookupImport: desc.LoadFileDescriptor,
	}
	fds, err := parser.ParseFiles(main)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	ds, err := grpcurl.DescriptorSourceFromFileDescriptors(fds...)
	if err != nil {
		return nil, fmt.Errorf("failed to index descriptors: %w", err)
	}
	return modelOf(ds, fds[0].GetServices())
}

// ParseDescriptorSet decodes a serialized FileDescriptorSet (a protoset).
func ParseDescriptorSet(data []byte) (*Model, error) {
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("invalid descriptor set: %w", err)
	}
	ds, err := grpcurl.DescriptorSourceFromFileDescriptorSet(&set)
	if err != nil {
		return nil, fmt.Errorf("failed to index descriptor set: %w", err)
	}
	return modelOf(ds, nil)
}

// modelOf collects services from ds. When declared is non-empty only those
// services are kept, in their declaration order; otherwise every service
// of the source is kept, sorted by full name.
func modelOf(ds grpcurl.DescriptorSource, declared []*desc.ServiceDescriptor) (*Model, error) {
	if len(declared) > 0 {
		return &Model{Services: declared}, nil
	}
	names, err := grpcurl.ListServices(ds)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	sort.Strings(names)

	m := &Model{}
	for _, name := range names {
		if isReflectionService(name) {
			continue
		}
		d, err := ds.FindSymbol(name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve service %s: %w", name, err)
		}
		sd, ok := d.(*desc.ServiceDescriptor)
		if !ok {
			return nil, fmt.Errorf("symbol %s is not a service", name)
		}
		m.Services = append(m.Services, sd)
	}
	return m, nil
}

func isReflectionService(name string) bool {
	return strings.HasPrefix(name, "grpc.reflection.")
}

// descriptorSet serializes every file reachable from ds.
func descriptorSet(ds grpcurl.DescriptorSource) ([]byte, error) {
	files, err := grpcurl.GetAllFiles(ds)
	if err != nil {
		return nil, err
	}
	set := &descriptorpb.FileDescriptorSet{}
	for _, f := range files {
		set.File = append(set.File, f.AsFileDescriptorProto())
	}
	return proto.Marshal(set)
}
