package es

import (
	"fmt"
	"io"
	"log"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/korawit-s/thriftmarket/internal/config"
)

// NewClient connects to Elasticsearch and verifies the node is reachable.
// Returns (nil, nil) when ES_URL is unset: product full-text search is an
// optional feature and the rest of the service runs without it.
func NewClient(cfg *config.Config) (*elasticsearch.Client, error) {
	if cfg.ES_URL == "" {
		log.Println("Elasticsearch disabled: ES_URL not set")
		return nil, nil
	}

	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.ES_URL},
		Username:  cfg.ES_USER,
		Password:  cfg.ES_PASSWORD,
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch error: %s: %s", res.Status(), body)
	}

	log.Printf("Connected to Elasticsearch at %s", cfg.ES_URL)
	return client, nil
}
