package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/OdielDomanie/clipper-bot/internal/kvstore"
	"github.com/OdielDomanie/clipper-bot/internal/models"
)

// Registration is one text channel's interest in a target: watch it, and run
// these hooks when it goes live.
type Registration struct {
	ChannelID uint64
	Target    string
	Hooks     []models.Hook
}

// regRecord is the persisted form in the registers table.
type regRecord struct {
	Target string          `json:"target"`
	Hooks  json.RawMessage `json:"hooks"`
}

func encodeRegistration(reg Registration) ([]byte, error) {
	hooks, err := models.EncodeHooks(reg.Hooks)
	if err != nil {
		return nil, err
	}
	return json.Marshal(regRecord{Target: reg.Target, Hooks: hooks})
}

func decodeRegistration(chnID uint64, data []byte) (Registration, error) {
	var rec regRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Registration{}, fmt.Errorf("decoding registration: %w", err)
	}
	hooks, err := models.DecodeHooks(rec.Hooks)
	if err != nil {
		return Registration{}, err
	}
	return Registration{ChannelID: chnID, Target: rec.Target, Hooks: hooks}, nil
}

// HookBinder turns a persisted hook description into an executable callback
// for the given text channel.
type HookBinder func(chnID uint64, h models.Hook) (HookFunc, error)

// SharerTable multiplexes registrations onto one poller per target. The
// poller starts on the first registration for its target and stops on the
// last, and registrations persist across restarts.
type SharerTable struct {
	cfg    Config
	store  *kvstore.Store
	bind   HookBinder
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[string]*sharedWatcher
}

type sharedWatcher struct {
	poller *Poller
	cancel context.CancelFunc
	count  int
}

// NewSharerTable returns an empty table. store may be nil in tests, in which
// case registrations are not persisted.
func NewSharerTable(cfg Config, store *kvstore.Store, bind HookBinder) *SharerTable {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SharerTable{
		cfg:      cfg,
		store:    store,
		bind:     bind,
		logger:   logger,
		watchers: make(map[string]*sharedWatcher),
	}
}

// Start activates a registration: the target's poller is created and started
// if this is its first registration, the hooks join the poller's table, and
// the registration is persisted. A late joiner whose target is already live
// gets its hooks fired immediately.
func (t *SharerTable) Start(ctx context.Context, reg Registration) error {
	return t.start(ctx, reg, true)
}

func (t *SharerTable) start(ctx context.Context, reg Registration, persist bool) error {
	data, err := encodeRegistration(reg)
	if err != nil {
		return err
	}
	hooks, err := t.bindHooks(reg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	w := t.watchers[reg.Target]
	if w == nil {
		pollCtx, cancel := context.WithCancel(ctx)
		w = &sharedWatcher{
			poller: NewPoller(reg.Target, t.cfg),
			cancel: cancel,
		}
		t.watchers[reg.Target] = w
		go w.poller.Run(pollCtx)
		t.logger.Info("watcher started", slog.String("target", reg.Target))
	}
	w.count++
	w.poller.AddHooks(regKey(reg.ChannelID, data), hooks)
	t.mu.Unlock()

	if s := w.poller.ActiveStream(); s != nil {
		go FireHooks(ctx, t.logger, hooks, s)
	}

	if persist && t.store != nil {
		if err := t.store.AddRegistration(reg.ChannelID, data); err != nil {
			return fmt.Errorf("persisting registration: %w", err)
		}
	}
	return nil
}

// Stop deactivates a registration, stopping the target's poller when the
// last registration leaves, and removes it from the store.
func (t *SharerTable) Stop(reg Registration) error {
	data, err := encodeRegistration(reg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if w := t.watchers[reg.Target]; w != nil {
		w.poller.RemoveHooks(regKey(reg.ChannelID, data))
		w.count--
		if w.count <= 0 {
			w.cancel()
			delete(t.watchers, reg.Target)
			t.logger.Info("watcher stopped", slog.String("target", reg.Target))
		}
	}
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.RemoveRegistration(reg.ChannelID, data); err != nil {
			return fmt.Errorf("removing registration: %w", err)
		}
	}
	return nil
}

// Resume restarts every persisted registration, typically at boot. Bad
// records are logged and skipped.
func (t *SharerTable) Resume(ctx context.Context) (int, error) {
	if t.store == nil {
		return 0, nil
	}
	all, err := t.store.AllRegistrations()
	if err != nil {
		return 0, fmt.Errorf("loading registrations: %w", err)
	}

	n := 0
	for chnID, records := range all {
		for _, data := range records {
			reg, err := decodeRegistration(chnID, data)
			if err != nil {
				t.logger.Error("skipping bad registration",
					slog.Uint64("channel_id", chnID), slog.Any("error", err))
				continue
			}
			if err := t.start(ctx, reg, false); err != nil {
				t.logger.Error("resuming registration",
					slog.Uint64("channel_id", chnID),
					slog.String("target", reg.Target),
					slog.Any("error", err),
				)
				continue
			}
			n++
		}
	}
	return n, nil
}

// Watching reports whether the target currently has an active poller.
func (t *SharerTable) Watching(target string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.watchers[target]
	return ok
}

// Targets returns every target with an active poller.
func (t *SharerTable) Targets() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.watchers))
	for target := range t.watchers {
		out = append(out, target)
	}
	return out
}

func (t *SharerTable) bindHooks(reg Registration) ([]HookFunc, error) {
	hooks := make([]HookFunc, 0, len(reg.Hooks))
	for _, h := range reg.Hooks {
		fn, err := t.bind(reg.ChannelID, h)
		if err != nil {
			return nil, fmt.Errorf("binding hook %s: %w", h.Tag(), err)
		}
		hooks = append(hooks, fn)
	}
	return hooks, nil
}

// regKey identifies a registration's hook tuple inside a poller.
func regKey(chnID uint64, encoded []byte) string {
	return strconv.FormatUint(chnID, 10) + "/" + string(encoded)
}
