// Package metrics registers Prometheus counters for the matching and
// voting coordinators.  The counters are exported on /metrics via
// promhttp (see internal/router).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoomsCreated counts waiting rooms opened by joinMatching.
	RoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feastfriends_rooms_created_total",
		Help: "Number of waiting rooms created.",
	})

	// RoomsExpired counts rooms that expired below the minimum group size.
	RoomsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feastfriends_rooms_expired_total",
		Help: "Number of waiting rooms expired without forming a group.",
	})

	// GroupsFormed counts room-to-group conversions (fill or sweep).
	GroupsFormed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feastfriends_groups_formed_total",
		Help: "Number of groups formed from waiting rooms.",
	})

	// GroupsFinalized counts groups that selected a restaurant.
	GroupsFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feastfriends_groups_finalized_total",
		Help: "Number of groups that finalized a restaurant selection.",
	})

	// GroupsCancelled counts groups dissolved without a selection.
	GroupsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feastfriends_groups_cancelled_total",
		Help: "Number of groups cancelled without a restaurant selection.",
	})

	// VotesCast counts accepted vote upserts, including vote changes.
	VotesCast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feastfriends_votes_cast_total",
		Help: "Number of restaurant votes accepted.",
	})
)
