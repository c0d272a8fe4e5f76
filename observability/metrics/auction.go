package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// HouseMetrics aggregates the prometheus instruments for the auction house:
// ledger traffic, auction lifecycle transitions and bid flow.
type HouseMetrics struct {
	deposits         prometheus.Counter
	withdrawals      prometheus.Counter
	auctionsCreated  *prometheus.CounterVec
	bidsPlaced       prometheus.Counter
	auctionsCanceled prometheus.Counter
	auctionsClaimed  prometheus.Counter
}

var (
	houseOnce     sync.Once
	houseRegistry *HouseMetrics
)

// House returns the process-wide auction house metrics, registering them on
// first use.
func House() *HouseMetrics {
	houseOnce.Do(func() {
		houseRegistry = &HouseMetrics{
			deposits: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "notehouse_ledger_deposits_total",
				Help: "Count of successful ledger deposits.",
			}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "notehouse_ledger_withdrawals_total",
				Help: "Count of successful ledger withdrawals.",
			}),
			auctionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "notehouse_auctions_created_total",
				Help: "Count of auctions opened by collateral kind.",
			}, []string{"collateral"}),
			bidsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "notehouse_bids_placed_total",
				Help: "Count of accepted descending bids.",
			}),
			auctionsCanceled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "notehouse_auctions_canceled_total",
				Help: "Count of auctions canceled without a bid.",
			}),
			auctionsClaimed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "notehouse_auctions_claimed_total",
				Help: "Count of auctions settled into a note.",
			}),
		}
		prometheus.MustRegister(
			houseRegistry.deposits,
			houseRegistry.withdrawals,
			houseRegistry.auctionsCreated,
			houseRegistry.bidsPlaced,
			houseRegistry.auctionsCanceled,
			houseRegistry.auctionsClaimed,
		)
	})
	return houseRegistry
}

func (m *HouseMetrics) Deposited() {
	if m == nil {
		return
	}
	m.deposits.Inc()
}

func (m *HouseMetrics) Withdrawn() {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
}

func (m *HouseMetrics) AuctionCreated(kind string) {
	if m == nil {
		return
	}
	m.auctionsCreated.WithLabelValues(kind).Inc()
}

func (m *HouseMetrics) BidPlaced() {
	if m == nil {
		return
	}
	m.bidsPlaced.Inc()
}

func (m *HouseMetrics) AuctionCanceled() {
	if m == nil {
		return
	}
	m.auctionsCanceled.Inc()
}

func (m *HouseMetrics) AuctionClaimed() {
	if m == nil {
		return
	}
	m.auctionsClaimed.Inc()
}
