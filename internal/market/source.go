package market

import "context"

// BarEvent carries one closed bar from an external feed.
type BarEvent struct {
	Symbol   string
	Interval string
	Bar      Bar
}

// SubscribeOptions controls live subscription behavior.
type SubscribeOptions struct {
	Buffer       int
	OnConnect    func()
	OnDisconnect func(error)
}

// SourceStats exposes runtime counters for a feed.
type SourceStats struct {
	Reconnects      int
	SubscribeErrors int
	LastError       string
}

// Source abstracts an external bar provider.
type Source interface {
	// FetchHistory returns up to limit recent bars in ascending time order.
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Bar, error)
	// Subscribe streams closed bars for the given symbols and intervals. The
	// returned channel closes when the subscription ends.
	Subscribe(ctx context.Context, symbols, intervals []string, opts SubscribeOptions) (<-chan BarEvent, error)
	// Stats reports current runtime state; zero value when unsupported.
	Stats() SourceStats
	// Close releases underlying resources such as socket connections.
	Close() error
}
