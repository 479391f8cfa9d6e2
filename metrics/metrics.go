package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "course_submissions_total",
		Help: "Course form submissions by mode and result.",
	}, []string{"mode", "result"})

	CacheFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "course_cache_fetches_total",
		Help: "Backend fetches made to fill the course cache.",
	})

	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_uploads_total",
		Help: "Object storage uploads by result.",
	}, []string{"result"})
)
