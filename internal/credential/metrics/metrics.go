package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes. Failures use the platform failure category instead.
const (
	OutcomeSuccess = "success"
	OutcomeAbsent  = "absent"
)

// Profile sync results.
const (
	ProfileUpdated   = "updated"
	ProfileUnchanged = "unchanged"
	ProfileFailed    = "failed"
)

type Metrics struct {
	CacheHits              *prometheus.CounterVec
	CacheMisses            *prometheus.CounterVec
	Fetches                *prometheus.CounterVec
	RefreshTokenRotations  prometheus.Counter
	ProfileSyncs           *prometheus.CounterVec
	FetchDuration          *prometheus.HistogramVec
	AutomaticInvalidations *prometheus.CounterVec
}

// New registers the credential metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the credential metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credgate_credential_cache_hits_total",
			Help: "Credential lookups served from cache",
		}, []string{"kind"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credgate_credential_cache_misses_total",
			Help: "Credential lookups that went to the platform",
		}, []string{"kind"}),
		Fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credgate_credential_fetches_total",
			Help: "Credential fetch chains by outcome",
		}, []string{"kind", "outcome"}),
		RefreshTokenRotations: factory.NewCounter(prometheus.CounterOpts{
			Name: "credgate_refresh_token_rotations_total",
			Help: "Authorizer refresh tokens rotated by the platform and persisted",
		}),
		ProfileSyncs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credgate_profile_syncs_total",
			Help: "Authorizer profile syncs by result",
		}, []string{"result"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credgate_credential_fetch_duration_seconds",
			Help:    "Duration of credential fetch chains on cache miss",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"kind"}),
		AutomaticInvalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "credgate_credential_invalidations_total",
			Help: "Cached credentials evicted after the platform rejected them",
		}, []string{"kind"}),
	}
}

func (m *Metrics) IncrementCacheHit(kind string) {
	m.CacheHits.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementCacheMiss(kind string) {
	m.CacheMisses.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementFetch(kind, outcome string) {
	m.Fetches.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncrementRotation() {
	m.RefreshTokenRotations.Inc()
}

func (m *Metrics) IncrementProfileSync(result string) {
	m.ProfileSyncs.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementInvalidation(kind string) {
	m.AutomaticInvalidations.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveFetch(kind string, start time.Time) {
	m.FetchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
