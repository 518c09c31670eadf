// audit/elasticsearch.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/gatewarden/gatewarden/model"
)

const auditIndex = "gatewarden-audit"

// ElasticsearchRepository is the alternative audit sink for deployments that
// keep decision logs in Elasticsearch instead of the relational store.
type ElasticsearchRepository struct {
	esClient *elasticsearch.Client
}

// NewElasticsearchRepository creates a new repository with a given Elasticsearch client URL.
func NewElasticsearchRepository(esURL string) (*ElasticsearchRepository, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}
	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ElasticsearchRepository{esClient: esClient}, nil
}

// BulkInsert indexes a whole batch with a single _bulk request.
func (r *ElasticsearchRepository) BulkInsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	var buf strings.Builder
	for _, rec := range records {
		meta := fmt.Sprintf(`{"index":{"_index":%q,"_id":%q}}`, auditIndex, rec.ID)
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal audit record: %w", err)
		}
		buf.WriteString(meta)
		buf.WriteByte('\n')
		buf.Write(data)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{
		Body: strings.NewReader(buf.String()),
	}
	res, err := req.Do(ctx, r.esClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error bulk indexing documents: %s", res.String())
	}
	return nil
}

// DeleteOlderThan purges expired records with a delete-by-query.
func (r *ElasticsearchRepository) DeleteOlderThan(ctx context.Context, orgID string, kind model.LogKind, cutoff time.Time) (int64, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{"match": map[string]interface{}{"org_id": orgID}},
					map[string]interface{}{"match": map[string]interface{}{"kind": string(kind)}},
					map[string]interface{}{
						"range": map[string]interface{}{
							"timestamp": map[string]interface{}{
								"lt": cutoff.UTC().Format(time.RFC3339),
							},
						},
					},
				},
			},
		},
	}
	var buf strings.Builder
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return 0, err
	}

	res, err := r.esClient.DeleteByQuery(
		[]string{auditIndex},
		strings.NewReader(buf.String()),
		r.esClient.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("error deleting documents: %s", res.String())
	}

	var rmap map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&rmap); err != nil {
		return 0, err
	}
	deleted, _ := rmap["deleted"].(float64)
	return int64(deleted), nil
}

// QueryRecords searches audit records within a time frame, optionally
// filtered by org and resource.
func (r *ElasticsearchRepository) QueryRecords(ctx context.Context, from, to time.Time, orgID, resourceID string) ([]Record, error) {
	must := []interface{}{
		map[string]interface{}{
			"range": map[string]interface{}{
				"timestamp": map[string]interface{}{
					"gte": from.Format(time.RFC3339),
					"lte": to.Format(time.RFC3339),
				},
			},
		},
	}
	if orgID != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"org_id": orgID},
		})
	}
	if resourceID != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"resource_id": resourceID},
		})
	}
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
	}

	var buf strings.Builder
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(auditIndex),
		r.esClient.Search.WithBody(strings.NewReader(buf.String())),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error searching documents: %s", res.String())
	}

	var rmap map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&rmap); err != nil {
		return nil, err
	}

	hits := rmap["hits"].(map[string]interface{})["hits"].([]interface{})
	records := make([]Record, len(hits))
	for i, hit := range hits {
		source := hit.(map[string]interface{})["_source"]
		data, _ := json.Marshal(source)
		json.Unmarshal(data, &records[i])
	}
	return records, nil
}
