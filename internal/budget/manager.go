// Package budget tracks per-vendor rate limits and spend ceilings with lazy
// window resets, plus a consecutive-failure cooldown. The check-then-record
// sequence is a single critical section per manager so two concurrent
// dispatches can never both pass a check that only one spend satisfies.
package budget

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Limits configures one vendor. Zero values mean unlimited.
type Limits struct {
	RequestsPerMinute int     `koanf:"requests_per_minute"`
	RequestsPerDay    int     `koanf:"requests_per_day"`
	DailySpendUSD     float64 `koanf:"daily_spend_usd"`
	MonthlySpendUSD   float64 `koanf:"monthly_spend_usd"`
}

// GlobalLimits caps spend across all vendors. Zero values mean unlimited.
type GlobalLimits struct {
	DailySpendUSD   float64 `koanf:"daily_spend_usd"`
	MonthlySpendUSD float64 `koanf:"monthly_spend_usd"`
}

// Config configures a Manager.
type Config struct {
	Defaults Limits            `koanf:"defaults"`
	Vendors  map[string]Limits `koanf:"vendors"`
	Global   GlobalLimits      `koanf:"global"`

	// BackoffBase is the cooldown after the first consecutive failure;
	// each further failure doubles it up to BackoffMax.
	BackoffBase time.Duration `koanf:"backoff_base"`
	BackoffMax  time.Duration `koanf:"backoff_max"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BackoffBase == 0 {
		c.BackoffBase = 30 * time.Second
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = 30 * time.Minute
	}
}

// vendorState holds the rolling counters for one vendor. All windows reset
// lazily on the next check after they elapse; no background timer exists.
type vendorState struct {
	minuteCount int
	minuteReset time.Time
	dayCount    int
	dayReset    time.Time

	daySpend        float64
	daySpendReset   time.Time
	monthSpend      float64
	monthSpendReset time.Time

	failures      int
	cooldownUntil time.Time
}

// Usage is a point-in-time snapshot of one vendor's accounting.
type Usage struct {
	Vendor              string
	RequestsThisMinute  int
	RequestsToday       int
	SpendTodayUSD       float64
	SpendThisMonthUSD   float64
	ConsecutiveFailures int
	CooldownUntil       time.Time
}

// Manager is the process-wide budget and throttle authority.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	vendors map[string]*vendorState

	globalDaySpend   float64
	globalDayReset   time.Time
	globalMonthSpend float64
	globalMonthReset time.Time

	now    func() time.Time
	logger *zap.Logger
}

// NewManager creates a budget manager. If logger is nil, uses a no-op logger.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	return &Manager{
		cfg:     cfg,
		vendors: make(map[string]*vendorState),
		now:     time.Now,
		logger:  logger.Named("budget"),
	}
}

// SetClock overrides the time source. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Manager) limitsFor(vendor string) Limits {
	if l, ok := m.cfg.Vendors[vendor]; ok {
		return l
	}
	return m.cfg.Defaults
}

func (m *Manager) state(vendor string, now time.Time) *vendorState {
	s, ok := m.vendors[vendor]
	if !ok {
		s = &vendorState{
			minuteReset:     now.Add(time.Minute),
			dayReset:        now.Add(24 * time.Hour),
			daySpendReset:   now.Add(24 * time.Hour),
			monthSpendReset: now.AddDate(0, 1, 0),
		}
		m.vendors[vendor] = s
	}
	s.lazyReset(now)
	return s
}

func (s *vendorState) lazyReset(now time.Time) {
	if !now.Before(s.minuteReset) {
		s.minuteCount = 0
		s.minuteReset = now.Add(time.Minute)
	}
	if !now.Before(s.dayReset) {
		s.dayCount = 0
		s.dayReset = now.Add(24 * time.Hour)
	}
	if !now.Before(s.daySpendReset) {
		s.daySpend = 0
		s.daySpendReset = now.Add(24 * time.Hour)
	}
	if !now.Before(s.monthSpendReset) {
		s.monthSpend = 0
		s.monthSpendReset = now.AddDate(0, 1, 0)
	}
}

func (m *Manager) lazyResetGlobal(now time.Time) {
	if m.globalDayReset.IsZero() {
		m.globalDayReset = now.Add(24 * time.Hour)
		m.globalMonthReset = now.AddDate(0, 1, 0)
		return
	}
	if !now.Before(m.globalDayReset) {
		m.globalDaySpend = 0
		m.globalDayReset = now.Add(24 * time.Hour)
	}
	if !now.Before(m.globalMonthReset) {
		m.globalMonthSpend = 0
		m.globalMonthReset = now.AddDate(0, 1, 0)
	}
}

// check validates rate, cooldown, and spend limits for a vendor. Caller must
// hold the mutex.
func (m *Manager) check(vendor string, cost float64, now time.Time) error {
	if cost < 0 {
		return ErrNegativeCost
	}
	limits := m.limitsFor(vendor)
	s := m.state(vendor, now)

	if now.Before(s.cooldownUntil) {
		return fmt.Errorf("%w: %s until %s", ErrCoolingDown, vendor, s.cooldownUntil.Format(time.RFC3339))
	}
	if limits.RequestsPerMinute > 0 && s.minuteCount >= limits.RequestsPerMinute {
		return fmt.Errorf("%w: %s minute window", ErrRateLimited, vendor)
	}
	if limits.RequestsPerDay > 0 && s.dayCount >= limits.RequestsPerDay {
		return fmt.Errorf("%w: %s day window", ErrRateLimited, vendor)
	}
	if limits.DailySpendUSD > 0 && s.daySpend+cost > limits.DailySpendUSD {
		return fmt.Errorf("%w: %s daily", ErrVendorSpendLimit, vendor)
	}
	if limits.MonthlySpendUSD > 0 && s.monthSpend+cost > limits.MonthlySpendUSD {
		return fmt.Errorf("%w: %s monthly", ErrVendorSpendLimit, vendor)
	}

	m.lazyResetGlobal(now)
	if m.cfg.Global.DailySpendUSD > 0 && m.globalDaySpend+cost > m.cfg.Global.DailySpendUSD {
		return fmt.Errorf("%w: daily", ErrGlobalSpendLimit)
	}
	if m.cfg.Global.MonthlySpendUSD > 0 && m.globalMonthSpend+cost > m.cfg.Global.MonthlySpendUSD {
		return fmt.Errorf("%w: monthly", ErrGlobalSpendLimit)
	}
	return nil
}

// IsAllowed reports whether a call for vendor at the given cost would pass
// every limit right now, without recording anything.
func (m *Manager) IsAllowed(vendor string, cost float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check(vendor, cost, m.now())
}

// CanSpend reports whether amount fits under the global ceilings.
func (m *Manager) CanSpend(amount float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.lazyResetGlobal(now)
	if m.cfg.Global.DailySpendUSD > 0 && m.globalDaySpend+amount > m.cfg.Global.DailySpendUSD {
		return false
	}
	if m.cfg.Global.MonthlySpendUSD > 0 && m.globalMonthSpend+amount > m.cfg.Global.MonthlySpendUSD {
		return false
	}
	return true
}

// Reserve checks every limit and, on success, records the call and spend
// against the vendor and the global counters. Check and record happen under
// one lock so concurrent dispatches cannot double-spend the last slot.
func (m *Manager) Reserve(vendor, agent string, cost float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if err := m.check(vendor, cost, now); err != nil {
		return err
	}

	s := m.vendors[vendor]
	s.minuteCount++
	s.dayCount++
	s.daySpend += cost
	s.monthSpend += cost
	m.globalDaySpend += cost
	m.globalMonthSpend += cost

	m.logger.Debug("reserved vendor call",
		zap.String("vendor", vendor),
		zap.String("agent", agent),
		zap.Float64("cost", cost),
		zap.Int("minute_count", s.minuteCount),
		zap.Float64("day_spend", s.daySpend),
	)
	return nil
}

// RecordSpend charges additional spend without a rate-limit slot. Used when
// the actual vendor-reported cost exceeds the reserved estimate.
func (m *Manager) RecordSpend(vendor string, amount float64) {
	if amount <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	s := m.state(vendor, now)
	s.daySpend += amount
	s.monthSpend += amount
	m.lazyResetGlobal(now)
	m.globalDaySpend += amount
	m.globalMonthSpend += amount
}

// ReportFailure increments the vendor's consecutive-failure count and widens
// the cooldown exponentially: base doubled per further failure, capped at
// the configured maximum. Returns the cooldown applied.
func (m *Manager) ReportFailure(vendor string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s := m.state(vendor, now)
	s.failures++

	cooldown := m.cfg.BackoffBase
	for i := 1; i < s.failures; i++ {
		cooldown *= 2
		if cooldown >= m.cfg.BackoffMax {
			cooldown = m.cfg.BackoffMax
			break
		}
	}
	s.cooldownUntil = now.Add(cooldown)

	m.logger.Warn("vendor failure reported",
		zap.String("vendor", vendor),
		zap.Int("consecutive_failures", s.failures),
		zap.Duration("cooldown", cooldown),
	)
	return cooldown
}

// ReportSuccess clears the vendor's failure streak and cooldown.
func (m *Manager) ReportSuccess(vendor string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state(vendor, m.now())
	s.failures = 0
	s.cooldownUntil = time.Time{}
}

// UsageFor returns a snapshot of one vendor's accounting.
func (m *Manager) UsageFor(vendor string) Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state(vendor, m.now())
	return Usage{
		Vendor:              vendor,
		RequestsThisMinute:  s.minuteCount,
		RequestsToday:       s.dayCount,
		SpendTodayUSD:       s.daySpend,
		SpendThisMonthUSD:   s.monthSpend,
		ConsecutiveFailures: s.failures,
		CooldownUntil:       s.cooldownUntil,
	}
}

// GlobalSpend returns today's and this month's spend across all vendors.
func (m *Manager) GlobalSpend() (day, month float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lazyResetGlobal(m.now())
	return m.globalDaySpend, m.globalMonthSpend
}
