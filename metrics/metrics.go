package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SweepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inactivitybot_sweeps_total",
		Help: "Sweep cycles by result (completed or skipped because one was running)",
	}, []string{"result"})

	MembersCheckedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inactivitybot_members_checked_total",
		Help: "Members evaluated against the inactivity threshold per guild",
	}, []string{"guild"})

	MembersKickedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inactivitybot_members_kicked_total",
		Help: "Members removed for inactivity per guild",
	}, []string{"guild"})

	KickFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inactivitybot_kick_failures_total",
		Help: "Removals abandoned after exhausting retries per guild",
	}, []string{"guild"})

	GuildFetchFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inactivitybot_guild_fetch_failures_total",
		Help: "Guilds skipped in a sweep because members could not be fetched",
	}, []string{"guild"})

	ActivityWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inactivitybot_activity_writes_total",
		Help: "Activity record writes by source and result",
	}, []string{"source", "result"})

	TrackedMembers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inactivitybot_tracked_members",
		Help: "Activity records stored per guild after the last sweep",
	}, []string{"guild"})

	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "inactivitybot_sweep_duration_seconds",
		Help:    "Duration of completed sweep cycles",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(
		SweepsTotal,
		MembersCheckedTotal,
		MembersKickedTotal,
		KickFailuresTotal,
		GuildFetchFailuresTotal,
		ActivityWritesTotal,
		TrackedMembers,
		SweepDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
