// Package search serves fuzzy counterparty lookups from Elasticsearch.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "fiscal-assistant/internal/common/errors"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/models"
	"fiscal-assistant/internal/store"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Directory decorates a CounterpartyDirectory: Search goes to the index, falling back to the base
// directory when the cluster fails, and Create keeps the index in sync.
type Directory struct {
	base   store.CounterpartyDirectory
	client *elasticsearch.Client
	index  string
	log    logger.Logger
}

var _ store.CounterpartyDirectory = (*Directory)(nil)

func NewDirectory(base store.CounterpartyDirectory, client *elasticsearch.Client, index string, log logger.Logger) *Directory {
	return &Directory{
		base:   base,
		client: client,
		index:  index,
		log:    log.WithFields(map[string]interface{}{"component": "counterparty-search", "index": index}),
	}
}

type document struct {
	TenantID     string    `json:"tenant_id"`
	Name         string    `json:"name"`
	Aliases      []string  `json:"aliases"`
	Document     string    `json:"document"`
	DocumentKind string    `json:"document_kind"`
	Email        string    `json:"email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string   `json:"_id"`
			Score  float64  `json:"_score"`
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (d *Directory) FindByDocument(ctx context.Context, tenantID, doc string) (*models.Counterparty, error) {
	return d.base.FindByDocument(ctx, tenantID, doc)
}

func (d *Directory) FindByID(ctx context.Context, tenantID, id string) (*models.Counterparty, error) {
	return d.base.FindByID(ctx, tenantID, id)
}

func (d *Directory) List(ctx context.Context, tenantID string, limit int) ([]models.Counterparty, error) {
	return d.base.List(ctx, tenantID, limit)
}

func (d *Directory) Search(ctx context.Context, tenantID, name string, limit int) ([]models.Counterparty, error) {
	out, err := d.search(ctx, tenantID, name, limit)
	if err != nil {
		d.log.Warn("index search failed, using database", map[string]interface{}{"error": err.Error()})
		return d.base.Search(ctx, tenantID, name, limit)
	}
	return out, nil
}

func (d *Directory) search(ctx context.Context, tenantID, name string, limit int) ([]models.Counterparty, error) {
	query := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"tenant_id": tenantID}},
				},
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":     name,
							"fields":    []string{"name^3", "aliases"},
							"fuzziness": "AUTO",
							"operator":  "and",
						},
					},
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := d.client.Search(
		d.client.Search.WithContext(ctx),
		d.client.Search.WithIndex(d.index),
		d.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, apperrors.NewSearchError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, apperrors.NewSearchError(fmt.Errorf("search error: %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchError(fmt.Errorf("decode search response: %w", err))
	}

	out := make([]models.Counterparty, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		src := hit.Source
		out = append(out, models.Counterparty{
			ID:           hit.ID,
			TenantID:     src.TenantID,
			Name:         src.Name,
			Aliases:      src.Aliases,
			Document:     src.Document,
			DocumentKind: models.DocumentKind(src.DocumentKind),
			Email:        src.Email,
			CreatedAt:    src.CreatedAt,
		})
	}
	return out, nil
}

// Create stores the record in the base directory, then indexes it. Index failures are logged only.
func (d *Directory) Create(ctx context.Context, cp *models.Counterparty) error {
	if err := d.base.Create(ctx, cp); err != nil {
		return err
	}
	if err := d.Index(ctx, cp); err != nil {
		d.log.Warn("failed to index counterparty", map[string]interface{}{"id": cp.ID, "error": err.Error()})
	}
	return nil
}

// Index writes one counterparty document.
func (d *Directory) Index(ctx context.Context, cp *models.Counterparty) error {
	body, err := json.Marshal(document{
		TenantID:     cp.TenantID,
		Name:         cp.Name,
		Aliases:      cp.Aliases,
		Document:     cp.Document,
		DocumentKind: string(cp.DocumentKind),
		Email:        cp.Email,
		CreatedAt:    cp.CreatedAt,
	})
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      d.index,
		DocumentID: cp.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, d.client)
	if err != nil {
		return apperrors.NewSearchError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewSearchError(fmt.Errorf("index error: %s", res.Status()))
	}
	return nil
}
