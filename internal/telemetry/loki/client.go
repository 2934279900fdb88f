// Package loki pushes log lines to Grafana Loki's HTTP ingestion API.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const pushPath = "/loki/api/v1/push"

// jobLabel names the stream all access-core events land in.
const jobLabel = "access-core"

var httpClient = &http.Client{Timeout: 15 * time.Second}

// PushRequest is the body of a Loki v1 push call.
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream carries one label set and its log entries, each entry being a
// [timestamp_ns, line] pair.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// Label values must stay within Loki's safe character set; anything else
// becomes an underscore.
var labelCleaner = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

func sanitizeLabel(v string) string {
	return labelCleaner.ReplaceAllString(strings.TrimSpace(v), "_")
}

// eventFields picks out just the label and timestamp fields from a security
// event payload; everything else stays in the log body.
type eventFields struct {
	Type        string `json:"type"`
	DeviceClass string `json:"device_class"`
	OccurredAt  string `json:"occurred_at"` // RFC3339
}

// PushEventJSON forwards one raw security-event payload (a Kafka message
// value) to Loki, labelling the stream by event type and device class. User
// and session IDs deliberately stay out of the labels so stream cardinality
// stays bounded. Unparseable payloads are still pushed, stamped with the
// current time.
func PushEventJSON(ctx context.Context, baseURL string, rawJSON []byte) error {
	labels := map[string]string{}
	ts := time.Now().UTC()

	var fields eventFields
	if err := json.Unmarshal(rawJSON, &fields); err == nil {
		if fields.Type != "" {
			labels["event_type"] = fields.Type
		}
		if fields.DeviceClass != "" {
			labels["device_class"] = fields.DeviceClass
		}
		if fields.OccurredAt != "" {
			if t, err := time.Parse(time.RFC3339Nano, fields.OccurredAt); err == nil {
				ts = t
			} else if t, err := time.Parse(time.RFC3339, fields.OccurredAt); err == nil {
				ts = t
			}
		}
	}
	return PushEvent(ctx, baseURL, ts, string(rawJSON), labels)
}

// PushEvent sends a single line to Loki at baseURL (e.g.
// http://localhost:3100). labels join the fixed job label on the stream;
// empty or all-invalid label values are dropped. Non-2xx responses are
// reported as errors.
func PushEvent(ctx context.Context, baseURL string, timestamp time.Time, line string, labels map[string]string) error {
	if baseURL == "" {
		return fmt.Errorf("loki: base URL is empty")
	}

	payload, err := json.Marshal(buildPush(timestamp, line, labels))
	if err != nil {
		return err
	}

	url := strings.TrimSuffix(baseURL, "/") + pushPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}

func buildPush(timestamp time.Time, line string, labels map[string]string) PushRequest {
	streamLabels := make(map[string]string, len(labels)+1)
	streamLabels["job"] = jobLabel
	for k, v := range labels {
		if cleaned := sanitizeLabel(v); cleaned != "" {
			streamLabels[k] = cleaned
		}
	}
	return PushRequest{
		Streams: []Stream{{
			Stream: streamLabels,
			Values: [][]string{{strconv.FormatInt(timestamp.UnixNano(), 10), line}},
		}},
	}
}
