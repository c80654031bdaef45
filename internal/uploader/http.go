package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xtxerr/sectorq/internal/engine/types"
	"github.com/xtxerr/sectorq/internal/errors"
)

// HTTPSink posts record batches as JSON to an ingest endpoint.
type HTTPSink struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSink creates a sink posting to the given URL.
func NewHTTPSink(endpoint string, timeout time.Duration) *HTTPSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type uploadRecord struct {
	Kind        string  `json:"kind"`
	TimestampMs int64   `json:"timestamp_ms"`
	Value       float64 `json:"value,omitempty"`
	Code        uint32  `json:"code,omitempty"`
	Flags       uint8   `json:"flags,omitempty"`
}

type uploadBatch struct {
	Source  string         `json:"source"`
	Sensor  string         `json:"sensor"`
	Records []uploadRecord `json:"records"`
}

// Upload posts one batch. Any non-2xx response is an error; the caller
// retries the batch later.
func (s *HTTPSink) Upload(ctx context.Context, source types.Source, sensorID string, recs []types.Record) error {
	batch := uploadBatch{
		Source:  source.String(),
		Sensor:  sensorID,
		Records: make([]uploadRecord, len(recs)),
	}
	for i, r := range recs {
		batch.Records[i] = uploadRecord{
			Kind:        r.Kind.String(),
			TimestampMs: r.TimestampMs,
			Value:       r.Value,
			Code:        r.Code,
			Flags:       r.Flags,
		}
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return errors.Wrap(err, "encode batch")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post batch")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload rejected: %s", resp.Status)
	}
	return nil
}
