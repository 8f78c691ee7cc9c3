// internal/catalog/search.go
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/models"
)

var productMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"id":          map[string]interface{}{"type": "keyword"},
			"name":        map[string]interface{}{"type": "text"},
			"category":    map[string]interface{}{"type": "text"},
			"description": map[string]interface{}{"type": "text"},
			"features":    map[string]interface{}{"type": "text"},
			"basePrice":   map[string]interface{}{"type": "double"},
			"isActive":    map[string]interface{}{"type": "boolean"},
		},
	},
}

// ProductIndex resolves free text to a product through Elasticsearch.
type ProductIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewProductIndex(client *elasticsearch.Client, index string, log logger.Logger) *ProductIndex {
	if index == "" {
		index = "products"
	}
	return &ProductIndex{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "product-index"}),
	}
}

// EnsureIndex creates the index with its mapping when missing.
func (x *ProductIndex) EnsureIndex(ctx context.Context) error {
	res, err := x.client.Indices.Exists([]string{x.index}, x.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return apperrors.NewSearchQueryError(x.index, err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	body, _ := json.Marshal(productMapping)
	res, err = x.client.Indices.Create(x.index,
		x.client.Indices.Create.WithContext(ctx),
		x.client.Indices.Create.WithBody(bytes.NewReader(body)))
	if err != nil {
		return apperrors.NewSearchQueryError(x.index, err)
	}
	defer res.Body.Close()
	if res.IsError() && !strings.Contains(readBody(res.Body), "resource_already_exists_exception") {
		return apperrors.NewSearchQueryError(x.index, fmt.Errorf("create index: %s", res.Status()))
	}
	return nil
}

func (x *ProductIndex) IndexProduct(ctx context.Context, p models.Product) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      x.index,
		DocumentID: p.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return apperrors.NewSearchQueryError(x.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewSearchQueryError(x.index, fmt.Errorf("index %s: %s", p.ID, res.Status()))
	}
	return nil
}

// Reindex pushes every product and returns how many were indexed.
func (x *ProductIndex) Reindex(ctx context.Context, products []models.Product) (int, error) {
	n := 0
	for _, p := range products {
		if err := x.IndexProduct(ctx, p); err != nil {
			return n, err
		}
		n++
	}
	x.logger.Info("products indexed", map[string]interface{}{"count": n, "index": x.index})
	return n, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64        `json:"_score"`
			Source models.Product `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchProduct returns the best active match for text, or nil when nothing matches.
func (x *ProductIndex) SearchProduct(ctx context.Context, text string) (*models.Product, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	query := map[string]interface{}{
		"size": 1,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  text,
							"fields": []string{"name^3", "description^2", "category", "features"},
							"type":   "best_fields",
						},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"isActive": true}},
				},
			},
		},
	}
	body, _ := json.Marshal(query)

	req := esapi.SearchRequest{
		Index: []string{x.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return nil, apperrors.NewSearchQueryError(x.index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, nil
	}
	if res.IsError() {
		return nil, apperrors.NewSearchQueryError(x.index, fmt.Errorf("search: %s", res.Status()))
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, apperrors.NewSearchQueryError(x.index, err)
	}
	if len(out.Hits.Hits) == 0 {
		return nil, nil
	}
	p := out.Hits.Hits[0].Source
	x.logger.Debug("product matched", map[string]interface{}{
		"productId": p.ID,
		"score":     out.Hits.Hits[0].Score,
	})
	return &p, nil
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(r)
	return string(b)
}
