package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a record id does not exist.
type ErrNotFound struct {
	Kind string
	ID   int
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// MemStore is an in-memory store with per-collection auto-increment ids.
// All methods are safe for concurrent use.
type MemStore struct {
	mutex sync.RWMutex

	metaPrompts map[int]MetaPrompt
	variations  map[int]PromptVariation
	testCases   map[int]TestCase
	criteria    map[int]Criterion
	results     map[int]EvaluationResult

	nextMetaPromptID int
	nextVariationID  int
	nextTestCaseID   int
	nextCriterionID  int
	nextResultID     int
}

// NewMemStore creates an empty store. Ids start at 1 in every collection.
func NewMemStore() *MemStore {
	return &MemStore{
		metaPrompts:      make(map[int]MetaPrompt),
		variations:       make(map[int]PromptVariation),
		testCases:        make(map[int]TestCase),
		criteria:         make(map[int]Criterion),
		results:          make(map[int]EvaluationResult),
		nextMetaPromptID: 1,
		nextVariationID:  1,
		nextTestCaseID:   1,
		nextCriterionID:  1,
		nextResultID:     1,
	}
}

// CreateMetaPrompt stores a new meta prompt and returns it with its id set.
func (s *MemStore) CreateMetaPrompt(basePrompt, systemPrompt string) MetaPrompt {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	mp := MetaPrompt{ID: s.nextMetaPromptID, BasePrompt: basePrompt, SystemPrompt: systemPrompt, CreatedAt: time.Now().UTC()}
	s.nextMetaPromptID++
	s.metaPrompts[mp.ID] = mp
	return mp
}

// GetMetaPrompt looks up a meta prompt by id.
func (s *MemStore) GetMetaPrompt(id int) (MetaPrompt, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	mp, ok := s.metaPrompts[id]
	if !ok {
		return MetaPrompt{}, &ErrNotFound{Kind: "meta prompt", ID: id}
	}
	return mp, nil
}

// ListMetaPrompts returns all meta prompts ordered by id.
func (s *MemStore) ListMetaPrompts() []MetaPrompt {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]MetaPrompt, 0, len(s.metaPrompts))
	for _, mp := range s.metaPrompts {
		out = append(out, mp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateMetaPrompt replaces the prompts of an existing record.
func (s *MemStore) UpdateMetaPrompt(id int, basePrompt, systemPrompt string) (MetaPrompt, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	mp, ok := s.metaPrompts[id]
	if !ok {
		return MetaPrompt{}, &ErrNotFound{Kind: "meta prompt", ID: id}
	}
	mp.BasePrompt = basePrompt
	mp.SystemPrompt = systemPrompt
	s.metaPrompts[id] = mp
	return mp, nil
}

// DeleteMetaPrompt removes a meta prompt. Dependent variations and test
// cases are left in place; callers that want cascade semantics delete them
// explicitly.
func (s *MemStore) DeleteMetaPrompt(id int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.metaPrompts[id]; !ok {
		return &ErrNotFound{Kind: "meta prompt", ID: id}
	}
	delete(s.metaPrompts, id)
	return nil
}

// CreateVariation stores a new prompt variation.
func (s *MemStore) CreateVariation(metaPromptID int, content string) PromptVariation {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	v := PromptVariation{ID: s.nextVariationID, MetaPromptID: metaPromptID, Content: content, CreatedAt: time.Now().UTC()}
	s.nextVariationID++
	s.variations[v.ID] = v
	return v
}

// GetVariation looks up a variation by id.
func (s *MemStore) GetVariation(id int) (PromptVariation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	v, ok := s.variations[id]
	if !ok {
		return PromptVariation{}, &ErrNotFound{Kind: "variation", ID: id}
	}
	return v, nil
}

// ListVariations returns the variations of one meta prompt ordered by id.
func (s *MemStore) ListVariations(metaPromptID int) []PromptVariation {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var out []PromptVariation
	for _, v := range s.variations {
		if v.MetaPromptID == metaPromptID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateVariation replaces a variation's content.
func (s *MemStore) UpdateVariation(id int, content string) (PromptVariation, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	v, ok := s.variations[id]
	if !ok {
		return PromptVariation{}, &ErrNotFound{Kind: "variation", ID: id}
	}
	v.Content = content
	s.variations[id] = v
	return v, nil
}

// DeleteVariation removes a variation.
func (s *MemStore) DeleteVariation(id int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.variations[id]; !ok {
		return &ErrNotFound{Kind: "variation", ID: id}
	}
	delete(s.variations, id)
	return nil
}

// CreateTestCase stores a new test case.
func (s *MemStore) CreateTestCase(metaPromptID int, input string) TestCase {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	tc := TestCase{ID: s.nextTestCaseID, MetaPromptID: metaPromptID, Input: input, CreatedAt: time.Now().UTC()}
	s.nextTestCaseID++
	s.testCases[tc.ID] = tc
	return tc
}

// GetTestCase looks up a test case by id.
func (s *MemStore) GetTestCase(id int) (TestCase, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	tc, ok := s.testCases[id]
	if !ok {
		return TestCase{}, &ErrNotFound{Kind: "test case", ID: id}
	}
	return tc, nil
}

// ListTestCases returns the test cases of one meta prompt ordered by id.
func (s *MemStore) ListTestCases(metaPromptID int) []TestCase {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var out []TestCase
	for _, tc := range s.testCases {
		if tc.MetaPromptID == metaPromptID {
			out = append(out, tc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateTestCase replaces a test case's input.
func (s *MemStore) UpdateTestCase(id int, input string) (TestCase, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	tc, ok := s.testCases[id]
	if !ok {
		return TestCase{}, &ErrNotFound{Kind: "test case", ID: id}
	}
	tc.Input = input
	s.testCases[id] = tc
	return tc, nil
}

// DeleteTestCase removes a test case.
func (s *MemStore) DeleteTestCase(id int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.testCases[id]; !ok {
		return &ErrNotFound{Kind: "test case", ID: id}
	}
	delete(s.testCases, id)
	return nil
}

// CreateCriterion stores a new criterion.
func (s *MemStore) CreateCriterion(name, description string) Criterion {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	c := Criterion{ID: s.nextCriterionID, Name: name, Description: description, CreatedAt: time.Now().UTC()}
	s.nextCriterionID++
	s.criteria[c.ID] = c
	return c
}

// GetCriterion looks up a criterion by id.
func (s *MemStore) GetCriterion(id int) (Criterion, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	c, ok := s.criteria[id]
	if !ok {
		return Criterion{}, &ErrNotFound{Kind: "criterion", ID: id}
	}
	return c, nil
}

// ListCriteria returns all criteria ordered by id.
func (s *MemStore) ListCriteria() []Criterion {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]Criterion, 0, len(s.criteria))
	for _, c := range s.criteria {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateCriterion replaces a criterion's name and description.
func (s *MemStore) UpdateCriterion(id int, name, description string) (Criterion, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	c, ok := s.criteria[id]
	if !ok {
		return Criterion{}, &ErrNotFound{Kind: "criterion", ID: id}
	}
	c.Name = name
	c.Description = description
	s.criteria[id] = c
	return c, nil
}

// DeleteCriterion removes a criterion.
func (s *MemStore) DeleteCriterion(id int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.criteria[id]; !ok {
		return &ErrNotFound{Kind: "criterion", ID: id}
	}
	delete(s.criteria, id)
	return nil
}

// CreateResult stores one evaluation cell.
func (s *MemStore) CreateResult(r EvaluationResult) EvaluationResult {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	r.ID = s.nextResultID
	r.CreatedAt = time.Now().UTC()
	s.nextResultID++
	s.results[r.ID] = r
	return r
}

// ListResults returns the evaluation results for one variation ordered by id.
func (s *MemStore) ListResults(variationID int) []EvaluationResult {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var out []EvaluationResult
	for _, r := range s.results {
		if r.VariationID == variationID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Leaderboard ranks a meta prompt's variations by mean score, highest
// first. Per-criterion means are keyed by criterion name; criteria whose
// record was deleted fall under "unknown". Variations with no results are
// omitted.
func (s *MemStore) Leaderboard(metaPromptID int) []LeaderboardEntry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var entries []LeaderboardEntry
	for _, v := range s.variations {
		if v.MetaPromptID != metaPromptID {
			continue
		}
		var total float64
		count := 0
		sums := make(map[string]float64)
		counts := make(map[string]int)
		for _, r := range s.results {
			if r.VariationID != v.ID {
				continue
			}
			name := "unknown"
			if c, ok := s.criteria[r.CriterionID]; ok {
				name = c.Name
			}
			total += r.Score
			count++
			sums[name] += r.Score
			counts[name]++
		}
		if count == 0 {
			continue
		}
		byCriterion := make(map[string]float64, len(sums))
		for name, sum := range sums {
			byCriterion[name] = sum / float64(counts[name])
		}
		entries = append(entries, LeaderboardEntry{
			VariationID:  v.ID,
			Content:      v.Content,
			OverallScore: total / float64(count),
			ByCriterion:  byCriterion,
			Evaluations:  count,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].OverallScore != entries[j].OverallScore {
			return entries[i].OverallScore > entries[j].OverallScore
		}
		return entries[i].VariationID < entries[j].VariationID
	})
	return entries
}
