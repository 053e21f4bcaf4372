package common

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable covers network and timeout failures talking to the market data source.
	ErrProviderUnavailable = errors.New("market data provider unavailable")

	// ErrProviderDataUnrecognized is returned when a provider payload has no known shape.
	ErrProviderDataUnrecognized = errors.New("market data response not recognized")

	// ErrEventPublishRejected is returned when the events service refuses a read or write.
	ErrEventPublishRejected = errors.New("event publish rejected")

	// ErrRegistryStorage is the parent of all registry persistence failures.
	ErrRegistryStorage = errors.New("registry storage error")

	// ErrStorageCorrupt means a registry document exists but cannot be parsed.
	ErrStorageCorrupt = fmt.Errorf("%w: stored registry is corrupt", ErrRegistryStorage)

	// ErrStorageWrite means the registry document could not be written.
	ErrStorageWrite = fmt.Errorf("%w: registry write failed", ErrRegistryStorage)

	// ErrCommunityUnresolvable means the bot can no longer reach the community.
	ErrCommunityUnresolvable = errors.New("community unresolvable")

	ErrInvalidTicker  = errors.New("invalid ticker")
	ErrSyncInProgress = errors.New("earnings sync already running")
)
