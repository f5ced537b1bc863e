package reporter

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	influxhttp "github.com/influxdata/influxdb-client-go/v2/api/http"
)

const influxSinkName = "influxdb"

// ArgsInfluxSink defines the arguments needed to create the InfluxDB sink
type ArgsInfluxSink struct {
	URL                string
	Token              string
	Org                string
	Bucket             string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// influxSink writes the line protocol batches through the InfluxDB v2 blocking write API
type influxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInfluxSink creates a new sink that writes to an InfluxDB v2 bucket
func NewInfluxSink(args ArgsInfluxSink) (*influxSink, error) {
	if len(args.URL) == 0 {
		return nil, errEmptyURL
	}
	if len(args.Org) == 0 || len(args.Bucket) == 0 {
		return nil, errEmptyBucket
	}

	timeoutInSeconds := uint(args.Timeout / time.Second)
	if timeoutInSeconds == 0 {
		timeoutInSeconds = 1
	}

	options := influxdb2.DefaultOptions().
		SetPrecision(time.Nanosecond).
		SetHTTPRequestTimeout(timeoutInSeconds).
		SetTLSConfig(&tls.Config{InsecureSkipVerify: args.InsecureSkipVerify}) // #nosec G402

	client := influxdb2.NewClientWithOptions(args.URL, args.Token, options)

	return &influxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(args.Org, args.Bucket),
	}, nil
}

// Send writes the batch. Returns a *StatusError if the server answered with a non-success status.
func (s *influxSink) Send(ctx context.Context, lines []string) error {
	err := s.writeAPI.WriteRecord(ctx, lines...)
	if err == nil {
		return nil
	}

	var httpErr *influxhttp.Error
	if errors.As(err, &httpErr) && httpErr.StatusCode > 0 {
		return &StatusError{
			StatusCode: httpErr.StatusCode,
			Message:    httpErr.Message,
		}
	}

	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

// Name returns the sink name
func (s *influxSink) Name() string {
	return influxSinkName
}

// Close closes the InfluxDB client
func (s *influxSink) Close() error {
	s.client.Close()
	return nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (s *influxSink) IsInterfaceNil() bool {
	return s == nil
}
