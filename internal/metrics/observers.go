package metrics

import (
	"errors"
	"time"

	"github.com/web3-frozen/citrea-watch/internal/api"
)

// APIClient records backend API request outcomes.
type APIClient struct{}

func NewAPIClient() *APIClient {
	return &APIClient{}
}

// Observe records duration and status of one request. Status is "success",
// "remote_error" for non-2xx responses and "transport_error" otherwise.
func (APIClient) Observe(operation string, err error, started time.Time) {
	status := apiStatus(err)
	apiRequestsTotal.WithLabelValues(operation, status).Inc()
	apiRequestDuration.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}

func apiStatus(err error) string {
	if err == nil {
		return "success"
	}
	var remote *api.RemoteFetchError
	if errors.As(err, &remote) {
		return "remote_error"
	}
	return "transport_error"
}

// Poller records poll attempts.
type Poller struct{}

func NewPoller() *Poller {
	return &Poller{}
}

func (Poller) ObservePoll(name string, err error, started time.Time) {
	PollDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())
	if err != nil {
		PollTotal.WithLabelValues(name, "error").Inc()
		return
	}
	PollTotal.WithLabelValues(name, "success").Inc()
	PollLastSuccess.WithLabelValues(name).SetToCurrentTime()
}
