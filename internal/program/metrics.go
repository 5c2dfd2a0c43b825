package program

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	qverrors "QueryVerify/internal/errors"
)

var (
	instructionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "queryverify",
		Subsystem: "program",
		Name:      "instructions_total",
		Help:      "Number of executed instructions by instruction and result code (0 on success)",
	}, []string{"instruction", "code"})

	verifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "queryverify",
		Subsystem: "program",
		Name:      "verify_seconds",
		Help:      "Time spent in verify_query, including failures",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	validSignatures = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "queryverify",
		Subsystem: "program",
		Name:      "valid_signatures",
		Help:      "Valid guardian signatures per successful verification",
		Buckets:   prometheus.LinearBuckets(1, 2, 10),
	})
)

func observe(instruction string, err error) {
	code := "0"
	if err != nil {
		code = strconv.FormatUint(uint64(qverrors.Code(err)), 10)
	}

	instructionsTotal.WithLabelValues(instruction, code).Inc()
}
