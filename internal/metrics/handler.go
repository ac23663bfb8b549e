package metrics

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON response for the admin metrics endpoint.
type Summary struct {
	HTTP      httpSummary   `json:"http"`
	Auth      authInfo      `json:"auth"`
	RateLimit rateLimitInfo `json:"rateLimit"`
	DB        dbInfo        `json:"db"`
	Server    serverInfo    `json:"server"`
}

type httpSummary struct {
	TotalRequests float64 `json:"totalRequests"`
	ClientErrors  float64 `json:"clientErrors"`
	ServerErrors  float64 `json:"serverErrors"`
	MeanLatency   float64 `json:"meanLatencySeconds"`
}

type authInfo struct {
	Logins               float64            `json:"logins"`
	LoginFailures        float64            `json:"loginFailures"`
	Registrations        float64            `json:"registrations"`
	RegistrationFailures float64            `json:"registrationFailures"`
	VerifyFailures       float64            `json:"verifyFailures"`
	TokensIssued         map[string]float64 `json:"tokensIssued"`
}

type rateLimitInfo struct {
	Rejections float64 `json:"rejections"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

type dbInfo struct {
	TotalConns    float64 `json:"totalConns"`
	IdleConns     float64 `json:"idleConns"`
	AcquiredConns float64 `json:"acquiredConns"`
}

// PrometheusHandler exposes the private registry in the Prometheus text format.
func (m *Metrics) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Handler returns an http.HandlerFunc that serves live metrics in JSON format.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.handleLive(w)
	}
}

// Summarize gathers the registry into a Summary.
func (m *Metrics) Summarize() (Summary, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return Summary{}, err
	}

	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	var clientErrs, serverErrs float64
	for code, v := range counterBy(fam["ekklesia_http_requests_total"], "status_code") {
		switch {
		case strings.HasPrefix(code, "4"):
			clientErrs += v
		case strings.HasPrefix(code, "5"):
			serverErrs += v
		}
	}
	successes := counterBy(fam["ekklesia_auth_successes_total"], "operation")
	failures := counterBy(fam["ekklesia_auth_failures_total"], "operation")

	start := gaugeValue(fam["ekklesia_server_start_time_seconds"])
	return Summary{
		HTTP: httpSummary{
			TotalRequests: sumCounter(fam["ekklesia_http_requests_total"]),
			ClientErrors:  clientErrs,
			ServerErrors:  serverErrs,
			MeanLatency:   meanSeconds(fam["ekklesia_http_request_duration_seconds"]),
		},
		Auth: authInfo{
			Logins:               successes["login"],
			LoginFailures:        failures["login"],
			Registrations:        successes["register"],
			RegistrationFailures: failures["register"],
			VerifyFailures:       failures["verify"],
			TokensIssued:         counterBy(fam["ekklesia_tokens_issued_total"], "role"),
		},
		RateLimit: rateLimitInfo{
			Rejections: sumCounter(fam["ekklesia_ratelimit_rejections_total"]),
		},
		DB: dbInfo{
			TotalConns:    gaugeValue(fam["ekklesia_db_pool_total_conns"]),
			IdleConns:     gaugeValue(fam["ekklesia_db_pool_idle_conns"]),
			AcquiredConns: gaugeValue(fam["ekklesia_db_pool_acquired_conns"]),
		},
		Server: serverInfo{
			StartTime:     start,
			UptimeSeconds: float64(time.Now().Unix()) - start,
		},
	}, nil
}

func (m *Metrics) handleLive(w http.ResponseWriter) {
	summary, err := m.Summarize()
	if err != nil {
		http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	_ = json.NewEncoder(w).Encode(summary)
}

// counterBy sums a counter family grouped by the value of label.
func counterBy(f *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	if f == nil {
		return out
	}
	for _, m := range f.GetMetric() {
		if m.GetCounter() == nil {
			continue
		}
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				out[lp.GetValue()] += m.GetCounter().GetValue()
			}
		}
	}
	return out
}

func sumCounter(f *dto.MetricFamily) float64 {
	var total float64
	for _, m := range f.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	return total
}

func gaugeValue(f *dto.MetricFamily) float64 {
	if ms := f.GetMetric(); len(ms) > 0 {
		return ms[0].GetGauge().GetValue()
	}
	return 0
}

// meanSeconds is the average observation across every series of a histogram.
func meanSeconds(f *dto.MetricFamily) float64 {
	var sum float64
	var count uint64
	for _, m := range f.GetMetric() {
		sum += m.GetHistogram().GetSampleSum()
		count += m.GetHistogram().GetSampleCount()
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
