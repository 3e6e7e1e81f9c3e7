package indexer

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/recipe"
	"github.com/fekuna/omnipos-stock-service/pkg/search"
)

const IndexName = "recipes"

const mapping = `{
	"mappings": {
		"properties": {
			"merchant_id": { "type": "keyword" },
			"name": { "type": "text" },
			"item_ids": { "type": "keyword" },
			"making_charge": { "type": "double" },
			"total_cost_price": { "type": "double" },
			"updated_at": { "type": "date" }
		}
	}
}`

// Searcher is the subset of the search client the indexer needs.
type Searcher interface {
	CreateIndex(ctx context.Context, index, mapping string) error
	Index(ctx context.Context, index, id string, doc any) error
	Delete(ctx context.Context, index, id string) error
	Search(ctx context.Context, index string, query map[string]any) (*search.SearchResult, error)
}

type ElasticIndexer struct {
	client Searcher
}

var _ recipe.Indexer = (*ElasticIndexer)(nil)

func NewElasticIndexer(client Searcher) *ElasticIndexer {
	return &ElasticIndexer{client: client}
}

// EnsureIndex creates the recipe index on startup.
func (e *ElasticIndexer) EnsureIndex(ctx context.Context) error {
	return e.client.CreateIndex(ctx, IndexName, mapping)
}

type document struct {
	MerchantID     string    `json:"merchant_id"`
	Name           string    `json:"name"`
	ItemIDs        []string  `json:"item_ids"`
	MakingCharge   float64   `json:"making_charge"`
	TotalCostPrice float64   `json:"total_cost_price"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (e *ElasticIndexer) IndexRecipe(ctx context.Context, r *model.Recipe) error {
	return e.client.Index(ctx, IndexName, r.ID, document{
		MerchantID:     r.MerchantID,
		Name:           r.Name,
		ItemIDs:        r.ItemIDs(),
		MakingCharge:   r.MakingCharge.InexactFloat64(),
		TotalCostPrice: r.TotalCostPrice.InexactFloat64(),
		UpdatedAt:      r.UpdatedAt,
	})
}

func (e *ElasticIndexer) DeleteRecipe(ctx context.Context, id string) error {
	return e.client.Delete(ctx, IndexName, id)
}

func (e *ElasticIndexer) SearchRecipeIDs(ctx context.Context, merchantID, query string, page, pageSize int) ([]string, int, error) {
	must := []map[string]any{
		{"match": map[string]any{"name": map[string]any{"query": query, "fuzziness": "AUTO"}}},
	}
	if merchantID != "" {
		must = append(must, map[string]any{"term": map[string]any{"merchant_id": merchantID}})
	}
	q := map[string]any{
		"query":   map[string]any{"bool": map[string]any{"must": must}},
		"_source": false,
	}
	if pageSize > 0 {
		q["from"] = (max(page, 1) - 1) * pageSize
		q["size"] = pageSize
	}

	res, err := e.client.Search(ctx, IndexName, q)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]string, len(res.Hits.Hits))
	for i, hit := range res.Hits.Hits {
		ids[i] = hit.ID
	}
	return ids, res.Hits.Total.Value, nil
}
