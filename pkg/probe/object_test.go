package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/disktree/pkg/types"
)

type fakeLister struct {
	objects []ObjectEntry
	err     error
}

func (f *fakeLister) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectEntry, error) {
	return f.objects, f.err
}

// spec.md §4.1: object stores have no native directories, so the probe
// must synthesize a KindDir entry for every key prefix.
func TestObjectProbeSynthesizesDirectories(t *testing.T) {
	lister := &fakeLister{objects: []ObjectEntry{
		{Key: "a/b/file.txt", Size: 100, MTime: 1700000000},
		{Key: "a/other.txt", Size: 50, MTime: 1700000001},
	}}
	p := &ObjectProbe{Lister: lister}
	s := p.Run(context.Background(), types.URI("s3://bucket"), Options{})
	entries, _, doneErr := drain(s)
	require.NoError(t, doneErr)

	dirs := map[types.URI]bool{}
	files := map[types.URI]int64{}
	for _, e := range entries {
		if e.Kind == types.KindDir {
			dirs[e.URI] = true
		} else {
			files[e.URI] = e.Size
		}
	}

	assert.True(t, dirs["s3://bucket/a"])
	assert.True(t, dirs["s3://bucket/a/b"])
	assert.Equal(t, int64(100), files["s3://bucket/a/b/file.txt"])
	assert.Equal(t, int64(50), files["s3://bucket/a/other.txt"])
}

func TestObjectProbeMissingListerIsFatal(t *testing.T) {
	p := &ObjectProbe{}
	s := p.Run(context.Background(), types.URI("s3://bucket"), Options{})
	_, _, doneErr := drain(s)
	require.Error(t, doneErr)
	assert.Equal(t, types.ErrInternal, types.KindOf(doneErr))
}

func TestObjectProbeMalformedURI(t *testing.T) {
	p := &ObjectProbe{Lister: &fakeLister{}}
	s := p.Run(context.Background(), types.URI("not-a-uri"), Options{})
	_, _, doneErr := drain(s)
	require.Error(t, doneErr)
	assert.Equal(t, types.ErrInvalidURI, types.KindOf(doneErr))
}
