// internal/matchmaking/search.go
package matchmaking

import (
	"github.com/lanlobby/lanlobby/internal/lobby"
	"github.com/lanlobby/lanlobby/internal/notify"
)

// AddStringFilter accumulates a string criterion for the next search.
// Filters are cleared by RequestLobbyList.
func (mm *Matchmaker) AddStringFilter(key, value string, op Comparison) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.filters = append(mm.filters, Criterion{Key: key, StringValue: value, Op: op})
}

// AddNumericFilter accumulates a numeric criterion for the next search.
func (mm *Matchmaker) AddNumericFilter(key string, value int, op Comparison) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.filters = append(mm.filters, Criterion{Key: key, IntValue: value, Numeric: true, Op: op})
}

// AddNearValueFilter is accepted for interface completeness; near-value
// ordering needs a ranking backend this directory does not have.
func (mm *Matchmaker) AddNearValueFilter(key string, value int) {}

// SetMaxResults caps the next search's result count.
func (mm *Matchmaker) SetMaxResults(n int) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.maxResults = n
}

// RequestLobbyList begins a directory search. The accumulated criteria and
// result cap are snapshotted atomically and cleared for the next call; any
// previous result set is discarded and a still-running search is abandoned.
// Exactly one SearchResults event resolves the returned token, either when
// the cap is reached or when the search deadline elapses on a tick.
func (mm *Matchmaker) RequestLobbyList() notify.Token {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.results = nil
	mm.searchStarted = mm.now()
	mm.searchFilters = mm.filters
	mm.searchMax = mm.maxResults
	mm.filters = nil
	mm.maxResults = defaultMaxResults
	mm.searching = true
	if mm.searchToken != 0 {
		mm.queue.Cancel(mm.searchToken)
	}
	mm.searchToken = mm.queue.Reserve()
	mm.logger.Debugf("matchmaker %d: search started, %d filters, cap %d",
		mm.local.PeerID, len(mm.searchFilters), mm.searchMax)
	return mm.searchToken
}

// LobbyByIndex returns a room id from the finished search's result set, or
// zero when i is out of range.
func (mm *Matchmaker) LobbyByIndex(i int) lobby.RoomID {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if i < 0 || i >= len(mm.results) {
		return 0
	}
	return mm.results[i]
}

// runSearchUnsafe advances an in-flight search one tick: evaluates every
// known candidate lobby against the snapshotted criteria, then concludes on
// cap or deadline.
func (mm *Matchmaker) runSearchUnsafe() {
	if !mm.searching {
		return
	}

	for _, l := range mm.registry.All() {
		if !l.Joinable || l.Deleted || !l.Type.Searchable() {
			continue
		}
		if !matchesAll(l, mm.searchFilters) {
			continue
		}
		if !containsRoom(mm.results, l.RoomID) {
			mm.results = append(mm.results, l.RoomID)
		}
		if len(mm.results) >= mm.searchMax {
			mm.concludeSearchUnsafe()
			return
		}
	}

	if mm.now().Sub(mm.searchStarted) >= searchDeadline {
		mm.concludeSearchUnsafe()
	}
}

func (mm *Matchmaker) concludeSearchUnsafe() {
	mm.logger.Debugf("matchmaker %d: search concluded with %d results", mm.local.PeerID, len(mm.results))
	mm.searching = false
	mm.queue.Complete(mm.searchToken, notify.SearchResults{Count: len(mm.results)})
	mm.searchToken = 0
}

func containsRoom(ids []lobby.RoomID, id lobby.RoomID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
