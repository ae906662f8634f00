package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"presales/internal/config"
	"presales/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSES struct {
	input *ses.SendEmailInput
	err   error
}

func (m *mockSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.input = params
	return &ses.SendEmailOutput{}, m.err
}

type mockSNS struct {
	input *sns.PublishInput
}

func (m *mockSNS) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.input = params
	return &sns.PublishOutput{}, nil
}

func sampleLead() *models.LeadRecord {
	return &models.LeadRecord{
		ID:                 42,
		SessionID:          "s1",
		ClientName:         models.StringPtr("John Smith"),
		ContactInformation: models.StringPtr("john@example.com"),
		ProjectType:        models.StringPtr("e-commerce"),
		Features:           []string{"cart", "payments"},
		ConfirmedFollowUp:  true,
	}
}

func TestEmailSendsSummary(t *testing.T) {
	client := &mockSES{}
	n := NewEmail(client, "bot@example.com", []string{"sales@example.com"})

	require.NoError(t, n.NotifyLead(context.Background(), sampleLead()))
	require.NotNil(t, client.input)
	assert.Equal(t, "bot@example.com", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"sales@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "New lead: John Smith", aws.ToString(client.input.Message.Subject.Data))
	assert.Contains(t, aws.ToString(client.input.Message.Body.Text.Data), "Contact: john@example.com")
}

func TestTopicPublishesToARN(t *testing.T) {
	client := &mockSNS{}
	n := NewTopic(client, "arn:aws:sns:us-east-1:123:leads")

	require.NoError(t, n.NotifyLead(context.Background(), sampleLead()))
	assert.Equal(t, "arn:aws:sns:us-east-1:123:leads", aws.ToString(client.input.TopicArn))
	assert.Contains(t, aws.ToString(client.input.Message), "Features: cart, payments")
}

func TestMultiJoinsErrors(t *testing.T) {
	failing := NewEmail(&mockSES{err: errors.New("throttled")}, "a@b.c", []string{"d@e.f"})
	topic := &mockSNS{}
	m := Multi{failing, NewTopic(topic, "arn")}

	err := m.NotifyLead(context.Background(), sampleLead())
	assert.ErrorContains(t, err, "throttled")
	assert.NotNil(t, topic.input, "later notifiers still run")
}

func TestSummaryMarksMissingFields(t *testing.T) {
	s := Summary(&models.LeadRecord{ClientName: models.StringPtr("Jane")})
	assert.Contains(t, s, "Client: Jane\n")
	assert.Contains(t, s, "Budget: -\n")
}

func TestIndexWritesDocument(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		path = r.URL.Path
		_ = json.Unmarshal(raw, &body)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer srv.Close()

	idx, err := NewIndex(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	require.NoError(t, idx.NotifyLead(context.Background(), sampleLead()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/presales-leads/_doc/42", path)
	assert.Equal(t, "John Smith", body["client_name"])
}

func TestIndexReportsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad"}`))
	}))
	defer srv.Close()

	idx, err := NewIndex(config.ElasticsearchConfig{Addresses: []string{srv.URL}, LeadIndex: "leads"})
	require.NoError(t, err)
	assert.ErrorContains(t, idx.NotifyLead(context.Background(), sampleLead()), "index lead")
}

func TestFromConfigWithoutSinks(t *testing.T) {
	n, err := FromConfig(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, n)
}
