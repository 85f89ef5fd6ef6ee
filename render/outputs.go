package render

import "fmt"

// BucketOutput is the exposed value set for one bucket
type BucketOutput struct {
	Name            string `json:"name"`
	Locator         string `json:"locator"`
	WebsiteEndpoint string `json:"website_endpoint,omitempty"`
}

// Outputs is the graph's expected output set: per-bucket identifier and
// locator, one website endpoint, and one aggregate resource count.
type Outputs struct {
	Buckets         map[string]BucketOutput `json:"buckets"`
	WebsiteEndpoint string                  `json:"website_endpoint,omitempty"`
	ResourceCount   int                     `json:"resource_count"`
}

// Outputs aggregates the exposed values of the rendered graph, keyed by
// module/key.
func (g *Graph) Outputs() Outputs {
	outputs := Outputs{
		Buckets:         make(map[string]BucketOutput, g.Len()),
		WebsiteEndpoint: g.website,
		ResourceCount:   g.Len(),
	}

	for _, bucket := range g.Buckets() {
		key := fmt.Sprintf("%s/%s", bucket.Module, bucket.Key)
		outputs.Buckets[key] = BucketOutput{
			Name:            bucket.Name,
			Locator:         bucket.Locator,
			WebsiteEndpoint: bucket.WebsiteEndpoint,
		}
	}

	return outputs
}
