package search

import (
	"context"
	"sort"
	"strings"

	"github.com/asheshgoplani/sessionseek/internal/query"
)

// BuildResults re-scans every matched session for actual term occurrences and
// produces the final, sorted result list. Title, messages and system prompt are
// all checked against every term referenced in the query, including terms that
// only appeared under a title prefix. Sessions where nothing is actually found
// are dropped.
func (e *Executor) BuildResults(ctx context.Context, matched SessionSet, terms query.TermSet) ([]SearchResult, error) {
	if len(matched) == 0 {
		return []SearchResult{}, nil
	}

	all := terms.All()
	var candidates []Session
	for _, s := range e.sessions {
		if matched.Has(s.ID) {
			candidates = append(candidates, s)
		}
	}

	sub := &Executor{
		sessions:      candidates,
		loader:        e.loader,
		batchSize:     e.batchSize,
		caseSensitive: e.caseSensitive,
	}
	index := make(map[string]int, len(candidates))
	for i, s := range candidates {
		index[s.ID] = i
	}
	built := make([]*SearchResult, len(candidates))

	err := sub.forEachBatch(ctx, func(ctx context.Context, s Session) (bool, error) {
		r, err := e.buildOne(ctx, s, all)
		if err != nil {
			return false, err
		}
		built[index[s.ID]] = r
		return r != nil, nil
	}, func(Session) {})
	if err != nil {
		return nil, err
	}

	out := make([]SearchResult, 0, len(built))
	for _, r := range built {
		if r != nil {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastUpdate.After(out[j].LastUpdate)
	})
	return out, nil
}

// buildOne returns nil when none of the terms actually occurs in s.
func (e *Executor) buildOne(ctx context.Context, s Session, all []string) (*SearchResult, error) {
	found := make(map[string]bool)
	titleHit := false
	for _, t := range all {
		if e.contains(s.Title, t) {
			titleHit = true
			found[t] = true
		}
	}

	var matchedMessages []Message
	var matchedSystem *SystemPromptData

	if len(all) > 0 {
		content, err := e.loader.load(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		if !content.failed {
			for _, m := range content.messages {
				hit := false
				for _, t := range all {
					if e.contains(m.Content, t) {
						hit = true
						found[t] = true
					}
				}
				if hit {
					matchedMessages = append(matchedMessages, m)
				}
			}
			if content.system != nil {
				for _, t := range all {
					if e.contains(content.system.Text, t) {
						matchedSystem = content.system
						found[t] = true
					}
				}
			}
		}
	}

	categories := 0
	var mt MatchType
	if titleHit {
		categories++
		mt = MatchTitle
	}
	if len(matchedMessages) > 0 {
		categories++
		mt = MatchMessage
	}
	if matchedSystem != nil {
		categories++
		mt = MatchSystem
	}
	if categories == 0 {
		return nil, nil
	}
	if categories > 1 {
		mt = MatchMultiple
	}

	matchedTerms := make([]string, 0, len(found))
	for _, t := range all {
		if found[t] {
			matchedTerms = append(matchedTerms, t)
		}
	}

	return &SearchResult{
		SessionID:            s.ID,
		Topic:                s.Title,
		LastUpdate:           s.LastUpdate,
		MatchedMessages:      matchedMessages,
		MatchedSystemMessage: matchedSystem,
		MatchType:            mt,
		MatchedTerms:         matchedTerms,
	}, nil
}

func (e *Executor) contains(text, term string) bool {
	if strings.TrimSpace(term) == "" {
		return false
	}
	return strings.Contains(e.fold(text), e.fold(term))
}
