package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/pkg/search"
)

type fakeSearcher struct {
	indexed map[string]any
	query   map[string]any
}

func (f *fakeSearcher) CreateIndex(ctx context.Context, index, mapping string) error { return nil }

func (f *fakeSearcher) Index(ctx context.Context, index, id string, doc any) error {
	if f.indexed == nil {
		f.indexed = map[string]any{}
	}
	f.indexed[index+"/"+id] = doc
	return nil
}

func (f *fakeSearcher) Delete(ctx context.Context, index, id string) error {
	delete(f.indexed, index+"/"+id)
	return nil
}

func (f *fakeSearcher) Search(ctx context.Context, index string, query map[string]any) (*search.SearchResult, error) {
	f.query = query
	res := &search.SearchResult{}
	res.Hits.Total.Value = 3
	res.Hits.Hits = []search.Hit{{ID: "r2"}, {ID: "r1"}}
	return res, nil
}

func TestIndexRecipeDocument(t *testing.T) {
	fs := &fakeSearcher{}
	idx := NewElasticIndexer(fs)

	r := &model.Recipe{
		BaseModel:      model.BaseModel{ID: "r1", UpdatedAt: time.Now()},
		MerchantID:     "m1",
		Name:           "Bread",
		MakingCharge:   decimal.NewFromInt(10),
		TotalCostPrice: decimal.NewFromInt(20),
		Ingredients:    []model.RecipeIngredient{{ItemID: "flour"}, {ItemID: "flour"}, {ItemID: "salt"}},
	}
	if err := idx.IndexRecipe(context.Background(), r); err != nil {
		t.Fatalf("IndexRecipe: %v", err)
	}

	doc, ok := fs.indexed["recipes/r1"].(document)
	if !ok {
		t.Fatalf("document not indexed: %v", fs.indexed)
	}
	if doc.TotalCostPrice != 20 || len(doc.ItemIDs) != 2 {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestSearchRecipeIDsKeepsHitOrder(t *testing.T) {
	fs := &fakeSearcher{}
	idx := NewElasticIndexer(fs)

	ids, total, err := idx.SearchRecipeIDs(context.Background(), "m1", "bread", 2, 10)
	if err != nil {
		t.Fatalf("SearchRecipeIDs: %v", err)
	}
	if total != 3 || len(ids) != 2 || ids[0] != "r2" {
		t.Fatalf("unexpected ids %v total %d", ids, total)
	}
	if fs.query["from"] != 10 || fs.query["size"] != 10 {
		t.Fatalf("unexpected paging %v", fs.query)
	}
}
