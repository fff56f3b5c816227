/*
 * Copyright 2025 Rally Tactical Systems, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package session is the host-facing surface of the library: it owns the
// work queues, timer manager, reconciler, and the token -> discoverer map.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rallytac/magellan/pkg/core"
	"github.com/rallytac/magellan/pkg/discovery"
	"github.com/rallytac/magellan/pkg/discovery/mdnsdisco"
	"github.com/rallytac/magellan/pkg/discovery/ssdpdisco"
	"github.com/rallytac/magellan/pkg/fetcher"
	"github.com/rallytac/magellan/pkg/logger"
	"github.com/rallytac/magellan/pkg/models"
	"github.com/rallytac/magellan/pkg/timers"
	"github.com/rallytac/magellan/pkg/workqueue"
)

// Result sentinels. These mirror the C result codes of the original
// library surface: ok, invalid parameters, not initialized, already
// initialized, general failure.
var (
	ErrInvalidParameters  = errors.New("invalid parameters")
	ErrNotInitialized     = errors.New("not initialized")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrGeneralFailure     = errors.New("general failure")
)

// Discovery types accepted by BeginDiscovery.
const (
	DiscoveryTypeMdns = "mdns"
	DiscoveryTypeSsdp = "ssdp"
)

// Token is an opaque handle to an active discovery.
type Token string

// DiscovererFactory builds a transport for a discovery type. Swappable for
// tests.
type DiscovererFactory func(discoveryType string, cfg *models.MagellanConfiguration,
	hook discovery.FilterHook, sink discovery.Sink, log logger.Logger) (discovery.Discoverer, error)

type options struct {
	log     logger.Logger
	fetcher core.Fetcher
	factory DiscovererFactory
}

// Option customizes Initialize.
type Option func(*options)

// WithLogger injects the logger.
func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithFetcher injects the configuration fetcher.
func WithFetcher(f core.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithDiscovererFactory injects the transport factory.
func WithDiscovererFactory(f DiscovererFactory) Option {
	return func(o *options) { o.factory = f }
}

// discovererRef is one shared transport plus the number of tokens holding
// it.
type discovererRef struct {
	discoveryType string
	disco         discovery.Discoverer
	refs          int
}

// Service is one initialized library instance. Create with Initialize,
// dispose with Shutdown.
type Service struct {
	cfg *models.MagellanConfiguration
	log logger.Logger

	mainQueue     *workqueue.Queue
	downloadQueue *workqueue.Queue
	timerMgr      *timers.Manager
	reconciler    *core.Reconciler
	cancelFetches context.CancelFunc
	factory       DiscovererFactory

	tmrHouseKeeper uint64
	tmrURLChecker  uint64

	mu       sync.Mutex
	tokens   map[Token]*discovererRef
	discos   map[string]*discovererRef
	shutDown bool
}

// Initialize parses the configuration JSON (empty means all defaults),
// starts the work queues and the timer manager, installs the housekeeper
// and URL-checker timers, and initializes the TLS fetch stack.
func Initialize(configJSON string, opts ...Option) (*Service, error) {
	o := &options{}

	for _, opt := range opts {
		opt(o)
	}

	if o.log == nil {
		o.log = logger.NewDefaultLogger()
	}

	cfg := models.NewMagellanConfiguration()

	if configJSON != "" {
		if err := json.Unmarshal([]byte(configJSON), cfg); err != nil {
			return nil, fmt.Errorf("%w: bad configuration: %v", ErrInvalidParameters, err)
		}
	}

	cfg.Normalize()

	if o.fetcher == nil {
		f, err := fetcher.New(cfg.RestLink, o.log)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
		}

		o.fetcher = f
	}

	if o.factory == nil {
		o.factory = defaultFactory
	}

	s := &Service{
		cfg:           cfg,
		log:           o.log,
		mainQueue:     workqueue.New("main", o.log),
		downloadQueue: workqueue.New("download", o.log),
		timerMgr:      timers.New(o.log),
		factory:       o.factory,
		tokens:        make(map[Token]*discovererRef),
		discos:        make(map[string]*discovererRef),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFetches = cancel

	s.mainQueue.Start()
	s.downloadQueue.Start()
	s.timerMgr.Start()

	s.reconciler = core.New(ctx, core.Config{
		URLRetryIntervalMs:                cfg.RestLink.URLRetryIntervalMs,
		MaxURLConsecutiveErrors:           cfg.RestLink.MaxURLConsecutiveErrors,
		AbandonURLsAfterConsecutiveErrors: cfg.RestLink.AbandonURLsAfterConsecutiveErrors,
	}, o.fetcher, s.mainQueue, s.downloadQueue, o.log)

	s.tmrHouseKeeper = s.timerMgr.SetTimer(func(uint64) {
		s.reconciler.SubmitHousekeeping()
	}, cfg.HouseKeeperIntervalMs, true)

	s.tmrURLChecker = s.timerMgr.SetTimer(func(uint64) {
		s.reconciler.SubmitURLCheck()
	}, cfg.RestLink.URLCheckerIntervalMs, true)

	s.log.Debug().Msg("initialized")

	return s, nil
}

func defaultFactory(discoveryType string, cfg *models.MagellanConfiguration,
	hook discovery.FilterHook, sink discovery.Sink, log logger.Logger) (discovery.Discoverer, error) {
	switch discoveryType {
	case DiscoveryTypeMdns:
		return mdnsdisco.New(cfg.Mdns.ServiceType, hook, sink, log)
	case DiscoveryTypeSsdp:
		return ssdpdisco.New(cfg.Ssdp, sink, log)
	default:
		return nil, fmt.Errorf("%w: unknown discovery type %q", ErrInvalidParameters, discoveryType)
	}
}

// Shutdown reverses Initialize in exact LIFO order: timers, transports,
// download queue, main queue. All callbacks are delivered on the main
// queue consumer, so none can fire after Shutdown returns. Safe to call
// more than once.
func (s *Service) Shutdown() {
	s.mu.Lock()

	if s.shutDown {
		s.mu.Unlock()
		return
	}

	s.shutDown = true
	refs := make([]*discovererRef, 0, len(s.discos))

	for _, ref := range s.discos {
		refs = append(refs, ref)
	}

	s.discos = make(map[string]*discovererRef)
	s.tokens = make(map[Token]*discovererRef)
	s.mu.Unlock()

	s.log.Debug().Msg("shutting down")

	s.timerMgr.CancelTimer(s.tmrHouseKeeper)
	s.timerMgr.CancelTimer(s.tmrURLChecker)
	s.timerMgr.Stop()

	var g errgroup.Group

	for _, ref := range refs {
		ref := ref

		g.Go(func() error {
			ref.disco.Stop()
			return nil
		})
	}

	_ = g.Wait()

	// Abandon in-flight fetches. Stopping the download queue joins the
	// cancelled fetch; its result is then either applied or drained by the
	// main queue, which stops last.
	s.cancelFetches()

	s.downloadQueue.Stop()
	s.mainQueue.Stop()

	s.log.Debug().Msg("shut down")
}

// BeginDiscovery starts (or shares) the transport for discoveryType and
// returns an opaque token. An empty type selects mDNS. When transport
// startup fails the token is still registered so the host can end it; the
// error reports the failure.
func (s *Service) BeginDiscovery(discoveryType string, hook discovery.FilterHook) (Token, error) {
	if discoveryType == "" {
		discoveryType = DiscoveryTypeMdns
	}

	if discoveryType != DiscoveryTypeMdns && discoveryType != DiscoveryTypeSsdp {
		return "", fmt.Errorf("%w: unknown discovery type %q", ErrInvalidParameters, discoveryType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutDown {
		return "", ErrNotInitialized
	}

	ref, exists := s.discos[discoveryType]

	var startErr error

	if !exists {
		disco, err := s.factory(discoveryType, s.cfg, hook, s.reconciler, s.log)
		if err != nil {
			return "", err
		}

		ref = &discovererRef{discoveryType: discoveryType, disco: disco}
		s.discos[discoveryType] = ref

		if err := disco.Start(); err != nil {
			s.log.Error().Err(err).Str("discoveryType", discoveryType).Msg("discoverer start failed")

			startErr = fmt.Errorf("%w: %v", ErrGeneralFailure, err)
		}
	}

	ref.refs++

	token := Token(uuid.NewString())
	s.tokens[token] = ref

	s.log.Debug().Str("discoveryType", discoveryType).Str("token", string(token)).Msg("discovery begun")

	return token, startErr
}

// EndDiscovery releases a token. The transport stops when its last token
// is released.
func (s *Service) EndDiscovery(token Token) error {
	s.mu.Lock()

	ref, exists := s.tokens[token]
	if !exists {
		s.mu.Unlock()
		return ErrInvalidParameters
	}

	delete(s.tokens, token)

	ref.refs--
	last := ref.refs == 0

	if last {
		delete(s.discos, ref.discoveryType)
	}
	s.mu.Unlock()

	if last {
		ref.disco.Stop()
	}

	s.log.Debug().Str("token", string(token)).Msg("discovery ended")

	return nil
}

// PauseDiscovery forwards an advisory pause hint to the transport.
func (s *Service) PauseDiscovery(token Token) error {
	ref, err := s.lookup(token)
	if err != nil {
		return err
	}

	ref.disco.Pause()

	return nil
}

// ResumeDiscovery forwards an advisory resume hint to the transport.
func (s *Service) ResumeDiscovery(token Token) error {
	ref, err := s.lookup(token)
	if err != nil {
		return err
	}

	ref.disco.Resume()

	return nil
}

func (s *Service) lookup(token Token) (*discovererRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, exists := s.tokens[token]
	if !exists {
		return nil, ErrInvalidParameters
	}

	return ref, nil
}

// SetTalkgroupCallbacks registers the host notification functions. Safe at
// any time; the swap rides the main queue so in-flight notifications
// observe a consistent set.
func (s *Service) SetTalkgroupCallbacks(cb core.Callbacks) {
	s.reconciler.SetCallbacks(cb)
}

// SetLoggingHook routes all library logging to the host hook. A nil hook
// restores process output.
func (s *Service) SetLoggingHook(hook logger.Hook) {
	logger.SetOutputHook(hook)
}

// SetLogLevel sets the logging level on the host 0..4 (fatal..debug)
// scale.
func (s *Service) SetLogLevel(level int) {
	logger.SetNumericLevel(level)
}

// LogMessage emits a host message through the active logger.
func (s *Service) LogMessage(level int, tag, msg string) {
	logger.LogMessage(level, tag, msg)
}
