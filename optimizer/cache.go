package optimizer

import "sync"

// cacheKey captures every setting that can change a run's outcome. A run is
// reused only when all of them match the previous run.
type cacheKey struct {
	basePrompt  string
	provider    string
	model       string
	temperature float64
	maxTokens   int
	topP        float64
}

func keyFor(req Request) cacheKey {
	return cacheKey{
		basePrompt:  req.BasePrompt,
		provider:    req.Generation.Provider,
		model:       req.Generation.Model,
		temperature: req.Generation.Temperature,
		maxTokens:   req.Generation.MaxTokens,
		topP:        req.Generation.TopP,
	}
}

// cache holds the single most recent report, invalidated whenever the
// settings that produced it change.
type cache struct {
	mutex  sync.Mutex
	key    cacheKey
	report *Report
}

func (c *cache) get(req Request) (*Report, bool) {
	if req.ForceRefresh {
		return nil, false
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.report == nil || c.key != keyFor(req) {
		return nil, false
	}
	return c.report, true
}

func (c *cache) put(req Request, report *Report) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.key = keyFor(req)
	c.report = report
}
