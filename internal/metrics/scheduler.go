// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

// Package metrics registers prometheus collectors for the scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vloop_poll_duration_seconds",
		Help:    "Time spent servicing one display poll",
		Buckets: prometheus.DefBuckets,
	})

	pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vloop_polls_total",
		Help: "Display polls by outcome",
	}, []string{"outcome"}) // outcome=ok|unknown_display|error

	timelineEntriesPopulated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vloop_timeline_entries_populated_total",
		Help: "Timeline entries created during population",
	})

	rolloversTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vloop_rollovers_total",
		Help: "Loop rollovers by outcome",
	}, []string{"outcome"}) // outcome=ok|empty|error

	markPlayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vloop_mark_played_total",
		Help: "Mark-played operations by outcome",
	}, []string{"outcome"}) // outcome=ok|replay|error

	commandsEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vloop_commands_enqueued_total",
		Help: "Operator commands enqueued by type",
	}, []string{"type"})

	commandsDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vloop_commands_delivered_total",
		Help: "Commands handed to displays in poll responses",
	})

	catalogSearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vloop_catalog_searches_total",
		Help: "Catalog selections by mode and outcome",
	}, []string{"mode", "outcome"})

	catalogSearchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vloop_catalog_search_duration_seconds",
		Help:    "Time spent selecting videos from the catalog",
		Buckets: prometheus.DefBuckets,
	})

	countCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vloop_count_cache_total",
		Help: "Count cache lookups by result",
	}, []string{"result"}) // result=hit|miss
)

func ObservePollDuration(seconds float64) { pollDurationSeconds.Observe(seconds) }
func IncPoll(outcome string)              { pollsTotal.WithLabelValues(outcome).Inc() }

func AddTimelineEntriesPopulated(n int) { timelineEntriesPopulated.Add(float64(n)) }
func IncRollover(outcome string)        { rolloversTotal.WithLabelValues(outcome).Inc() }
func IncMarkPlayed(outcome string)      { markPlayedTotal.WithLabelValues(outcome).Inc() }

func IncCommandEnqueued(cmdType string) { commandsEnqueuedTotal.WithLabelValues(cmdType).Inc() }
func AddCommandsDelivered(n int)        { commandsDeliveredTotal.Add(float64(n)) }

func IncCatalogSearch(mode, outcome string) {
	catalogSearchesTotal.WithLabelValues(mode, outcome).Inc()
}
func ObserveCatalogSearchDuration(seconds float64) {
	catalogSearchDurationSeconds.Observe(seconds)
}

func IncCountCacheHit()  { countCacheTotal.WithLabelValues("hit").Inc() }
func IncCountCacheMiss() { countCacheTotal.WithLabelValues("miss").Inc() }
