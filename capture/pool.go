package capture

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/use-agent/snapr/config"
)

// PageHandle wraps a pooled browser tab with health tracking metadata.
// A tab that keeps failing, has served many captures, or has simply been
// alive too long is retired and replaced with a fresh one.
type PageHandle struct {
	page     *rod.Page
	errScore float64
	useCount int
	stealth  bool
	created  time.Time
	mu       sync.Mutex
}

func newPageHandle(page *rod.Page) *PageHandle {
	return &PageHandle{
		page:    page,
		created: time.Now(),
	}
}

// Page returns the underlying browser tab.
func (h *PageHandle) Page() *rod.Page {
	return h.page
}

// RecordSuccess decreases the error score (min 0).
func (h *PageHandle) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore = math.Max(0, h.errScore-0.5)
}

// RecordFailure increases the error score.
func (h *PageHandle) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore += 1.0
}

// MarkStealth records that stealth JS was injected into this tab. The
// injection persists for the tab's lifetime, so the tab must not be handed
// to a later caller that did not ask for stealth.
func (h *PageHandle) MarkStealth() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stealth = true
}

// ShouldRetire returns true if the tab should be retired based on health metrics.
func (h *PageHandle) ShouldRetire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stealth {
		return true
	}
	if h.errScore >= 3.0 {
		return true
	}
	if h.useCount >= 50 {
		return true
	}
	if time.Since(h.created) >= 50*time.Minute {
		return true
	}
	return false
}

// PageFactory creates a new browser tab.
type PageFactory func() (*rod.Page, error)

// PagePool manages a pool of browser tabs with automatic scaling based on
// memory pressure and utilization. Every capture acquires its own tab; no
// tab is ever shared across concurrent captures.
type PagePool struct {
	cfg     config.PoolConfig
	factory PageFactory

	idle    chan *PageHandle
	mu      sync.Mutex
	live    map[*PageHandle]struct{}
	active  atomic.Int32 // currently checked-out handles
	stopped chan struct{}
}

// NewPagePool creates and starts a page pool. It pre-creates MinPages tabs.
func NewPagePool(cfg config.PoolConfig, factory PageFactory) *PagePool {
	if cfg.MinPages < 1 {
		cfg.MinPages = 1
	}
	if cfg.MaxPages < cfg.MinPages {
		cfg.MaxPages = cfg.MinPages
	}
	if cfg.MemThreshold <= 0 {
		cfg.MemThreshold = 0.9
	}
	if cfg.ScaleStep <= 0 {
		cfg.ScaleStep = 0.1
	}

	p := &PagePool{
		cfg:     cfg,
		factory: factory,
		idle:    make(chan *PageHandle, cfg.MaxPages),
		live:    make(map[*PageHandle]struct{}),
		stopped: make(chan struct{}),
	}

	for i := 0; i < cfg.MinPages; i++ {
		h, err := p.createHandle()
		if err != nil {
			slog.Warn("page_pool: failed to pre-create tab", "error", err)
			continue
		}
		p.idle <- h
	}

	go p.scalingLoop()
	return p
}

// Get acquires a tab from the pool. It creates a new one when the pool is
// under its maximum, otherwise it blocks until a tab is released or the
// context expires.
func (p *PagePool) Get(ctx context.Context) (*PageHandle, error) {
	select {
	case h := <-p.idle:
		p.active.Add(1)
		return h, nil
	default:
	}

	p.mu.Lock()
	if len(p.live) < p.cfg.MaxPages {
		h, err := p.createHandleLocked()
		p.mu.Unlock()
		if err == nil {
			p.active.Add(1)
			return h, nil
		}
		// Fall through to waiting for a released tab.
	} else {
		p.mu.Unlock()
	}

	select {
	case h := <-p.idle:
		p.active.Add(1)
		return h, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put returns a tab to the pool. If the tab should be retired it is closed,
// and a fresh one is created when the pool would drop below its minimum.
func (p *PagePool) Put(h *PageHandle, success bool) {
	p.active.Add(-1)

	if success {
		h.RecordSuccess()
	} else {
		h.RecordFailure()
	}

	if h.ShouldRetire() {
		slog.Debug("page_pool: retiring tab",
			"errScore", h.errScore, "useCount", h.useCount)
		p.destroyHandle(h)

		p.mu.Lock()
		if len(p.live) < p.cfg.MinPages {
			if newH, err := p.createHandleLocked(); err == nil {
				p.mu.Unlock()
				p.idle <- newH
				return
			}
		}
		p.mu.Unlock()
		return
	}

	p.idle <- h
}

// Size returns the total number of live tabs.
func (p *PagePool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// ActiveCount returns the number of currently checked-out tabs.
func (p *PagePool) ActiveCount() int {
	return int(p.active.Load())
}

// Stop shuts down the scaling goroutine and closes all tabs.
func (p *PagePool) Stop() {
	close(p.stopped)

drainLoop:
	for {
		select {
		case h := <-p.idle:
			p.destroyHandle(h)
		default:
			break drainLoop
		}
	}

	p.mu.Lock()
	for h := range p.live {
		if h.page != nil {
			_ = h.page.Close()
		}
		delete(p.live, h)
	}
	p.mu.Unlock()
}

func (p *PagePool) createHandle() (*PageHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createHandleLocked()
}

// createHandleLocked creates a new handle. Caller must hold p.mu.
func (p *PagePool) createHandleLocked() (*PageHandle, error) {
	page, err := p.factory()
	if err != nil {
		return nil, err
	}
	h := newPageHandle(page)
	p.live[h] = struct{}{}
	return h, nil
}

func (p *PagePool) destroyHandle(h *PageHandle) {
	p.mu.Lock()
	delete(p.live, h)
	p.mu.Unlock()
	if h.page == nil {
		return
	}
	if err := h.page.Close(); err != nil {
		slog.Warn("page_pool: failed to close tab", "error", err)
	}
}

// scalingLoop periodically samples memory and adjusts pool size.
func (p *PagePool) scalingLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopped:
			return
		case <-ticker.C:
			p.scaleCheck()
		}
	}
}

func (p *PagePool) scaleCheck() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var memPressure float64
	if m.HeapSys > 0 {
		memPressure = float64(m.HeapInuse) / float64(m.HeapSys)
	}

	p.mu.Lock()
	totalSize := len(p.live)
	p.mu.Unlock()

	active := int(p.active.Load())
	var activeRate float64
	if totalSize > 0 {
		activeRate = float64(active) / float64(totalSize)
	}

	if memPressure > p.cfg.MemThreshold {
		shrinkCount := int(math.Ceil(float64(totalSize) * p.cfg.ScaleStep))
		for i := 0; i < shrinkCount; i++ {
			p.mu.Lock()
			if len(p.live) <= p.cfg.MinPages {
				p.mu.Unlock()
				break
			}
			p.mu.Unlock()

			select {
			case h := <-p.idle:
				slog.Debug("page_pool: shrinking, retiring tab")
				p.destroyHandle(h)
			default:
				// No idle tabs to shrink.
				return
			}
		}
	} else if activeRate > 0.8 {
		growCount := int(math.Ceil(float64(totalSize) * p.cfg.ScaleStep))
		for i := 0; i < growCount; i++ {
			p.mu.Lock()
			if len(p.live) >= p.cfg.MaxPages {
				p.mu.Unlock()
				break
			}
			h, err := p.createHandleLocked()
			p.mu.Unlock()
			if err != nil {
				slog.Warn("page_pool: failed to grow", "error", err)
				break
			}
			slog.Debug("page_pool: grew pool")
			p.idle <- h
		}
	}
}
