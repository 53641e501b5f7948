package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the pipeline counters exported on the dashboard.
type Metrics struct {
	scraped   *prometheus.CounterVec
	processed *prometheus.CounterVec
	reports   *prometheus.CounterVec
	graphics  *prometheus.CounterVec
	posts     *prometheus.CounterVec
	emails    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scraped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ndta",
			Name:      "articles_scraped_total",
			Help:      "Articles returned by each source.",
		}, []string{"source"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ndta",
			Name:      "articles_processed_total",
			Help:      "Scraped articles by the status they were stored in.",
		}, []string{"status"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ndta",
			Name:      "reports_generated_total",
			Help:      "Report generation attempts.",
		}, []string{"result"}),
		graphics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ndta",
			Name:      "graphics_rendered_total",
			Help:      "Graphic rendering attempts.",
		}, []string{"result"}),
		posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ndta",
			Name:      "posts_total",
			Help:      "Posting attempts per platform.",
		}, []string{"platform", "result"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ndta",
			Name:      "emails_total",
			Help:      "Notification emails by kind.",
		}, []string{"kind", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ndta",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"stage"}),
	}
	if reg != nil {
		reg.MustRegister(m.scraped, m.processed, m.reports, m.graphics, m.posts, m.emails, m.duration)
	}
	return m
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
