package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseObjectURI(t *testing.T) {
	tests := []struct {
		uri  string
		want ObjectRef
		ok   bool
	}{
		{"s3://boms/2026/q3/tower.json", ObjectRef{Bucket: "boms", Key: "2026/q3/tower.json"}, true},
		{"s3://boms/a.json", ObjectRef{Bucket: "boms", Key: "a.json"}, true},
		{"s3://boms/", ObjectRef{}, false},
		{"s3://boms", ObjectRef{}, false},
		{"s3:///key", ObjectRef{}, false},
		{"./boms/tower.json", ObjectRef{}, false},
		{"https://example.com/a.json", ObjectRef{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, ok := ParseObjectURI(tt.uri)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObjectRef_String(t *testing.T) {
	assert.Equal(t, "s3://boms/a.json", ObjectRef{Bucket: "boms", Key: "a.json"}.String())
}
