package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/frpdeck/internal/history"
)

// DatePlaceholder in an index name is replaced by the event's UTC day, so
// frpc lifecycle events can roll over into daily indices.
const DatePlaceholder = "{date}"

// Sink indexes frpc lifecycle events into OpenSearch (or Elasticsearch).
type Sink struct {
	client  *http.Client
	baseURL string
	index   string
}

// document is the indexed shape: the event plus the @timestamp field that
// OpenSearch Dashboards picks up as the time field.
type document struct {
	Timestamp time.Time `json:"@timestamp"`
	history.Event
}

func New(baseURL, index string) *Sink {
	return &Sink{
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		index:   index,
	}
}

func (s *Sink) indexFor(e history.Event) string {
	if !strings.Contains(s.index, DatePlaceholder) {
		return s.index
	}
	at := e.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	return strings.ReplaceAll(s.index, DatePlaceholder, at.UTC().Format("2006.01.02"))
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	ts := e.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	b, err := json.Marshal(document{Timestamp: ts, Event: e})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/%s/_doc", s.baseURL, s.indexFor(e))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("opensearch: index %s event for %s: status %d: %s",
			e.Type, e.ProfileID, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
