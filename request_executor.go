package sourcewatch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RequestExecutor builds a call, sends it once and classifies the outcome.
// It never retries: callers observe the error and decide.
type RequestExecutor struct {
	builder   *RequestBuilder
	transport Transport
	log       logrus.FieldLogger
}

// NewRequestExecutor returns an executor sending through transport.
func NewRequestExecutor(builder *RequestBuilder, transport Transport, log logrus.FieldLogger) *RequestExecutor {
	return &RequestExecutor{builder: builder, transport: transport, log: log}
}

// Execute returns the response on 2xx. Otherwise it returns an *APIError,
// together with the response when one was received.
func (re *RequestExecutor) Execute(ctx context.Context, call Call) (*Response, error) {
	req, err := re.builder.Build(call)
	if err != nil {
		return nil, err
	}

	log := re.log.WithFields(logrus.Fields{
		"endpoint": call.Endpoint,
		"method":   req.Method,
		"url":      req.URL,
	})
	log.Debug("sending request")

	start := time.Now()
	resp, err := re.transport.Do(ctx, req)
	if err != nil {
		log.WithError(err).Debug("request failed without a response")
		return nil, &APIError{Kind: KindNetwork, Endpoint: call.Endpoint, Err: err}
	}

	log = log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"latency": time.Since(start).String(),
	})
	if !resp.OK() {
		log.Debug("request returned an error status")
		return resp, newStatusError(call.Endpoint, resp)
	}
	log.Debug("request succeeded")
	return resp, nil
}
