package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"presales/internal/config"
	"presales/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Index writes leads into an Elasticsearch index for the sales team's
// search tooling. Documents are keyed by lead id.
type Index struct {
	client *elasticsearch.Client
	index  string
}

func NewIndex(cfg config.ElasticsearchConfig) (*Index, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	index := cfg.LeadIndex
	if index == "" {
		index = "presales-leads"
	}
	return &Index{client: es, index: index}, nil
}

func (i *Index) NotifyLead(ctx context.Context, lead *models.LeadRecord) error {
	doc, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("encode lead document: %w", err)
	}
	opts := []func(*esapi.IndexRequest){
		i.client.Index.WithContext(ctx),
	}
	if lead.ID != 0 {
		opts = append(opts, i.client.Index.WithDocumentID(strconv.FormatInt(lead.ID, 10)))
	}
	res, err := i.client.Index(i.index, bytes.NewReader(doc), opts...)
	if err != nil {
		return fmt.Errorf("index lead: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index lead: %s", res.Status())
	}
	return nil
}
