package reporter

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/tidwall/gjson"
)

const (
	httpSinkName       = "http"
	maxErrorBodyLength = 512
	lineSeparator      = "\n"
)

var log = logger.GetOrCreate("reporter")

// ArgsHTTPSink defines the arguments needed to create the HTTP sink
type ArgsHTTPSink struct {
	URL                string
	Username           string
	Password           string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// httpSink posts newline-separated line protocol batches using a single persistent client
type httpSink struct {
	url      string
	username string
	password string
	client   *http.Client
}

// NewHTTPSink creates a new sink that pushes to the configured URL
func NewHTTPSink(args ArgsHTTPSink) (*httpSink, error) {
	if len(args.URL) == 0 {
		return nil, errEmptyURL
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	// metrics endpoints are commonly served with self-signed certificates
	tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: args.InsecureSkipVerify} // #nosec G402

	return &httpSink{
		url:      args.URL,
		username: args.Username,
		password: args.Password,
		client: &http.Client{
			Timeout:   args.Timeout,
			Transport: tr,
			// a followed redirect turns the POST into a body-less GET whose success would acknowledge the batch
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// Send posts the batch. Returns a *StatusError if the sink answered with a non-success status.
func (s *httpSink) Send(ctx context.Context, lines []string) error {
	body := strings.Join(lines, lineSeparator)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create sink request: %w", err)
	}

	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if len(s.username) > 0 {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(respBody),
		}
	}

	log.Trace("batch delivered", "url", s.url, "lines", len(lines), "status", resp.StatusCode)

	return nil
}

// extractErrorMessage returns the message field of JSON error bodies (InfluxDB style) or the raw body
func extractErrorMessage(body []byte) string {
	for _, path := range []string{"message", "error"} {
		result := gjson.GetBytes(body, path)
		if result.Exists() {
			return result.String()
		}
	}

	return strings.TrimSpace(string(body))
}

// Name returns the sink name
func (s *httpSink) Name() string {
	return httpSinkName
}

// Close releases the idle connections
func (s *httpSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (s *httpSink) IsInterfaceNil() bool {
	return s == nil
}
