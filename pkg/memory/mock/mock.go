// Package mock provides an in-memory memory.Store for tests.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mumeinosato/kira-ai/pkg/memory"
)

// Compile-time interface check.
var _ memory.Store = (*Store)(nil)

// Store is an in-memory memory.Store. Similarity search is approximated by
// substring overlap, which is deterministic and good enough for pipeline
// tests. Safe for concurrent use.
type Store struct {
	mu sync.Mutex

	// Records holds everything written, in insertion order.
	Records []memory.Record

	// Err, when non-nil, is returned by every method.
	Err error

	nextID int
}

func (s *Store) add(rec memory.Record) (memory.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return memory.Record{}, s.Err
	}
	s.nextID++
	rec.ID = fmt.Sprintf("mock-%d", s.nextID)
	rec.CreatedAt = time.Now().UTC()
	s.Records = append(s.Records, rec)
	return rec, nil
}

// AddTurn implements memory.Store.
func (s *Store) AddTurn(ctx context.Context, session, role, content string) (memory.Record, error) {
	return s.add(memory.Record{Session: session, Kind: memory.KindTurn, Role: role, Content: content})
}

// AddSummary implements memory.Store.
func (s *Store) AddSummary(ctx context.Context, session, content string) (memory.Record, error) {
	return s.add(memory.Record{Session: session, Kind: memory.KindSummary, Content: content})
}

// AddKnowledge implements memory.Store.
func (s *Store) AddKnowledge(ctx context.Context, session, content, source string) (memory.Record, error) {
	return s.add(memory.Record{Session: session, Kind: memory.KindKnowledge, Content: content, Source: source})
}

// SearchSimilar implements memory.Store. Records sharing more lowercase words
// with the query rank closer (smaller distance).
func (s *Store) SearchSimilar(ctx context.Context, session, query string, topK int) ([]memory.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if topK <= 0 {
		return []memory.SearchResult{}, nil
	}

	queryWords := strings.Fields(strings.ToLower(query))
	var results []memory.SearchResult
	for _, rec := range s.Records {
		if rec.Session != session {
			continue
		}
		content := strings.ToLower(rec.Content)
		overlap := 0
		for _, w := range queryWords {
			if strings.Contains(content, w) {
				overlap++
			}
		}
		dist := 1.0
		if len(queryWords) > 0 {
			dist = 1.0 - float64(overlap)/float64(len(queryWords))
		}
		results = append(results, memory.SearchResult{Record: rec, Distance: dist})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > topK {
		results = results[:topK]
	}
	if results == nil {
		results = []memory.SearchResult{}
	}
	return results, nil
}

// Recent implements memory.Store.
func (s *Store) Recent(ctx context.Context, session string, n int) ([]memory.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if n <= 0 {
		return []memory.Record{}, nil
	}

	var turns []memory.Record
	for _, rec := range s.Records {
		if rec.Session == session && rec.Kind == memory.KindTurn {
			turns = append(turns, rec)
		}
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	if turns == nil {
		turns = []memory.Record{}
	}
	return turns, nil
}

// CountKind returns how many records of the given kind exist for session.
func (s *Store) CountKind(session string, kind memory.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.Records {
		if rec.Session == session && rec.Kind == kind {
			n++
		}
	}
	return n
}
