// Package render deterministically expands a composition into the
// resource graph the provisioning tool would produce. Rendering is a
// pure function: the same composition and parameters always yield the
// same graph.
package render

import (
	"fmt"

	"github.com/google/btree"

	"github.com/bucketlint/bucketlint/types"
)

// Bucket is one rendered storage container
type Bucket struct {
	Module          types.ModuleName       `json:"module"`
	Key             string                 `json:"key"`
	Name            string                 `json:"name"`
	Locator         string                 `json:"locator"`
	WebsiteEndpoint string                 `json:"website_endpoint,omitempty"`
	Descriptor      types.BucketDescriptor `json:"descriptor"`
}

// Graph is the rendered resource graph. Buckets are indexed by rendered
// name in a btree so iteration order is deterministic and duplicate
// names surface at render time.
type Graph struct {
	Params     types.Params
	index      *btree.BTreeG[*Bucket]
	duplicates []string
	website    string
}

// Render expands every module of the composition with its parameters.
func Render(comp *types.Composition) (*Graph, error) {
	if err := comp.Params.Validate(); err != nil {
		return nil, fmt.Errorf("cannot render composition: %w", err)
	}

	g := &Graph{
		Params: comp.Params,
		index: btree.NewG[*Bucket](32, func(a, b *Bucket) bool {
			return a.Name < b.Name
		}),
	}

	for i := range comp.Modules {
		module := &comp.Modules[i]
		for _, key := range module.BucketKeys() {
			g.insert(module.Name, key, comp.Params, module.Buckets[key])
		}
	}

	return g, nil
}

func (g *Graph) insert(module types.ModuleName, key string, params types.Params, descriptor types.BucketDescriptor) {
	name := types.BucketName(params, key)

	bucket := &Bucket{
		Module:     module,
		Key:        key,
		Name:       name,
		Locator:    fmt.Sprintf("arn:aws:s3:::%s", name),
		Descriptor: descriptor,
	}
	if descriptor.StaticAssetHost {
		bucket.WebsiteEndpoint = fmt.Sprintf("%s.s3-website-%s.amazonaws.com", name, params.Region)
		g.website = bucket.WebsiteEndpoint
	}

	if _, collided := g.index.ReplaceOrInsert(bucket); collided {
		g.duplicates = append(g.duplicates, name)
	}
}

// Buckets returns every rendered bucket in name order
func (g *Graph) Buckets() []*Bucket {
	buckets := make([]*Bucket, 0, g.index.Len())
	g.index.Ascend(func(b *Bucket) bool {
		buckets = append(buckets, b)
		return true
	})
	return buckets
}

// Len returns the number of distinct rendered buckets
func (g *Graph) Len() int {
	return g.index.Len()
}

// Lookup finds a bucket by rendered name
func (g *Graph) Lookup(name string) (*Bucket, bool) {
	return g.index.Get(&Bucket{Name: name})
}

// Duplicates returns rendered names claimed by more than one descriptor
func (g *Graph) Duplicates() []string {
	return g.duplicates
}

// WebsiteEndpoint returns the endpoint of the static-asset host bucket,
// or empty if no bucket is flagged as one
func (g *Graph) WebsiteEndpoint() string {
	return g.website
}
