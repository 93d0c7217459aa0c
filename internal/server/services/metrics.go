package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payslip_ingest_total",
		Help: "Payslip ingestion attempts by outcome",
	}, []string{"outcome"})

	ingestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payslip_ingest_duration_seconds",
		Help:    "Duration of payslip ingestion in seconds",
		Buckets: prometheus.DefBuckets,
	})

	deleteTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payslip_delete_total",
		Help: "Payslip deletions by outcome",
	}, []string{"outcome"})

	compensationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payslip_compensation_total",
		Help: "Ingest compensations by result",
	}, []string{"result"})
)
