package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v9"
)

var auditMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"id":               map[string]interface{}{"type": "keyword"},
			"at":               map[string]interface{}{"type": "date"},
			"request_id":       map[string]interface{}{"type": "keyword"},
			"post_id":          map[string]interface{}{"type": "keyword"},
			"session_id":       map[string]interface{}{"type": "keyword"},
			"authenticated":    map[string]interface{}{"type": "boolean"},
			"ip_hash":          map[string]interface{}{"type": "keyword"},
			"fingerprint_hash": map[string]interface{}{"type": "keyword"},
			"outcome":          map[string]interface{}{"type": "keyword"},
			"stage":            map[string]interface{}{"type": "keyword"},
			"status":           map[string]interface{}{"type": "integer"},
			"liked":            map[string]interface{}{"type": "boolean"},
			"behavior_score":   map[string]interface{}{"type": "integer"},
			"reasons":          map[string]interface{}{"type": "keyword"},
		},
	},
}

// ElasticSink indexes events into Elasticsearch
type ElasticSink struct {
	es    *elasticsearch.Client
	index string
}

// NewElasticSink creates a sink for the given cluster URL and index
func NewElasticSink(url, index string) (*ElasticSink, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return &ElasticSink{es: es, index: index}, nil
}

func (s *ElasticSink) Name() string { return "elasticsearch" }

// EnsureIndex creates the audit index with its mapping if it does not exist
func (s *ElasticSink) EnsureIndex(ctx context.Context) error {
	res, err := s.es.Indices.Exists([]string{s.index}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	body, err := json.Marshal(auditMapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err = s.es.Indices.Create(s.index,
		s.es.Indices.Create.WithBody(bytes.NewReader(body)),
		s.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return decodeError("creating index", res.Status(), res.Body)
	}
	return nil
}

// Write indexes e under its id
func (s *ElasticSink) Write(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	res, err := s.es.Index(s.index, bytes.NewReader(body),
		s.es.Index.WithDocumentID(e.ID),
		s.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index audit event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return decodeError("indexing audit event", res.Status(), res.Body)
	}
	return nil
}

// Ping checks that the cluster answers
func (s *ElasticSink) Ping(ctx context.Context) error {
	res, err := s.es.Info(s.es.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch info returned [%s]", res.Status())
	}
	return nil
}

func decodeError(action, status string, body io.Reader) error {
	var errResp map[string]interface{}
	if err := json.NewDecoder(body).Decode(&errResp); err != nil {
		return fmt.Errorf("error response [%s]", status)
	}
	return fmt.Errorf("error %s: [%s] %v", action, status, errResp["error"])
}
