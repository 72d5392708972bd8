package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"morvo/internal/channel"
	"morvo/internal/companion"
	"morvo/internal/config"
	"morvo/internal/eventbus"
	"morvo/internal/llm"
	"morvo/internal/security"
	"morvo/internal/server"
	"morvo/internal/store"
)

const (
	secretNameLLMKey         = "llm_api_key"
	secretNameFallbackKey    = "fallback_llm_api_key"
	secretNameTelegramToken  = "telegram_token"
	masterPasswordEnv        = "MORVO_MASTER_PASSWORD"
	logRingSize              = 200
	generateTimeoutSlackSecs = 5
	defaultStoreTimeoutSecs  = 5

	// storeStepsPerTurn counts the store calls a turn makes in sequence,
	// each bounded by the store timeout: the ownership check, five context
	// reads, the template read, opening the conversation and the appends.
	storeStepsPerTurn = 9
)

// App holds the long-lived collaborators shared by every command.
type App struct {
	cfg       *config.Config
	cfgLoader *config.Loader
	bus       *eventbus.Bus
	logs      *eventbus.Ring
	store     *store.Store
	provider  llm.Provider
	keyStore  *security.KeyStore
	sanitizer *security.Sanitizer
	companion *companion.Pipeline
	chanMgr   *channel.Manager
}

// loadConfig reads the config file. An empty path means ~/.morvo/config.json.
func loadConfig(path string) (*config.Loader, *config.Config, error) {
	var loader *config.Loader
	if path != "" {
		loader = config.NewLoaderAt(path)
	} else {
		l, err := config.NewLoader()
		if err != nil {
			return nil, nil, fmt.Errorf("config loader: %w", err)
		}
		loader = l
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return loader, cfg, nil
}

// openStore opens only the store, for commands that never generate.
func openStore(path string) (*store.Store, *config.Config, error) {
	_, cfg, err := loadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}

// NewApp loads config and builds the pipeline. Channels are not started.
func NewApp(configPath string) (*App, error) {
	loader, cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:       cfg,
		cfgLoader: loader,
		bus:       eventbus.New(),
		logs:      eventbus.NewRing(logRingSize),
	}

	dataDir := filepath.Dir(loader.FilePath())
	masterKey, err := security.MasterKey(dataDir, os.Getenv(masterPasswordEnv))
	if err != nil {
		log.Printf("warning: vault key unavailable: %v", err)
	}
	ks, err := security.NewKeyStore(dataDir, masterKey)
	if err != nil {
		log.Printf("warning: failed to create key store: %v (secrets will stay in config file)", err)
	}
	a.keyStore = ks
	a.resolveSecrets()

	a.sanitizer = security.NewSanitizer(cfg.Security.PIIFiltering)

	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	a.store = st

	provider, err := llm.Build(cfg.LLM, cfg.FallbackLLM)
	if err != nil {
		st.Close()
		return nil, err
	}
	a.provider = provider

	a.logs.Attach(a.bus, eventbus.TopicError, eventbus.TopicStatusChange, eventbus.TopicGenerationFallback)
	a.bus.Subscribe(eventbus.TopicError, func(e eventbus.Event) {
		log.Printf("[morvo] error: %v", e.Payload)
	})

	a.companion = companion.New(companion.Deps{
		Store:           st,
		Provider:        provider,
		Bus:             a.bus,
		Sanitizer:       a.sanitizer,
		Config:          cfg.Companion,
		Model:           cfg.LLM.Model,
		StoreTimeout:    secs(cfg.Store.TimeoutSecs),
		GenerateTimeout: generateTimeout(cfg),
	})

	a.chanMgr = channel.NewManager(a.bus, cfg.Companion.ErrorReply)
	a.chanMgr.Authorize(security.NewAuthorizer(cfg.Server.AllowedUserIDs))

	log.Printf("[morvo] ready: store=%s provider=%s", st.Driver(), provider.Name())
	return a, nil
}

// Server builds the HTTP front over the pipeline.
func (a *App) Server() *server.Server {
	return server.New(server.Options{
		Config:     a.serverConfig(),
		Companion:  a.companion,
		Name:       a.cfg.Companion.Name,
		ErrorReply: a.cfg.Companion.ErrorReply,
		Authorizer: security.NewAuthorizer(a.cfg.Server.AllowedUserIDs),
		Store:      a.store,
		Provider:   a.provider.Name(),
		Channels:   a.chanMgr.List,
		Logs:       a.logs,
		Bus:        a.bus,
	})
}

// serverConfig raises a configured write timeout shorter than one turn's
// budget so the reply, fallback included, can still be written.
func (a *App) serverConfig() config.ServerConfig {
	srvCfg := a.cfg.Server
	if need := serverWriteTimeout(a.cfg); secs(srvCfg.WriteTimeoutSecs) < need {
		log.Printf("[morvo] write timeout %ds is shorter than a turn, using %s", srvCfg.WriteTimeoutSecs, need)
		srvCfg.WriteTimeoutSecs = int(need / time.Second)
	}
	return srvCfg
}

// RegisterConfiguredChannels adds the channels enabled in config.
func (a *App) RegisterConfiguredChannels() {
	if tg := a.cfg.Channels.Telegram; tg != nil && tg.Token != "" {
		a.chanMgr.Register(channel.NewTelegramChannel(*tg))
	}
}

// Close stops channels, drains pending bookkeeping and closes the store.
func (a *App) Close(ctx context.Context) {
	if a.chanMgr != nil {
		a.chanMgr.StopAll(ctx)
	}
	if a.companion != nil {
		a.companion.Close()
	}
	a.bus.Wait()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Printf("warning: close store: %v", err)
		}
	}
}

// resolveSecrets loads secrets from the key store into the in-memory config,
// migrating plaintext secrets out of the config file on first run. Only a
// value that is literally in the file is migrated; environment secrets are
// never written back.
func (a *App) resolveSecrets() {
	if a.keyStore == nil {
		return
	}
	fileCfg, err := a.cfgLoader.LoadFile()
	if err != nil {
		log.Printf("warning: failed to reread config file: %v", err)
		fileCfg = config.Defaults()
	}

	migrated := map[string]bool{}
	resolve := func(name string, value *string, inFile string) {
		switch {
		case *value == security.KeyringPlaceholder:
			val, err := a.keyStore.Resolve(name, *value)
			if err != nil {
				log.Printf("warning: failed to read %s from keyring: %v", name, err)
				*value = ""
				return
			}
			*value = val
		case *value != "" && *value == inFile:
			if err := a.keyStore.Set(name, *value); err == nil {
				migrated[name] = true
				log.Printf("Migrated %s to secure storage", name)
			}
		}
	}

	resolve(secretNameLLMKey, &a.cfg.LLM.APIKey, fileCfg.LLM.APIKey)
	if a.cfg.FallbackLLM != nil {
		var inFile string
		if fileCfg.FallbackLLM != nil {
			inFile = fileCfg.FallbackLLM.APIKey
		}
		resolve(secretNameFallbackKey, &a.cfg.FallbackLLM.APIKey, inFile)
	}
	if a.cfg.Channels.Telegram != nil {
		var inFile string
		if fileCfg.Channels.Telegram != nil {
			inFile = fileCfg.Channels.Telegram.Token
		}
		resolve(secretNameTelegramToken, &a.cfg.Channels.Telegram.Token, inFile)
	}

	if len(migrated) > 0 {
		if err := a.saveConfig(fileCfg, migrated); err != nil {
			log.Printf("warning: failed to save config after secret migration: %v", err)
		}
	}
}

// saveConfig rewrites the file contents with placeholders in place of the
// migrated secrets. Environment overrides are not part of fileCfg and so
// never reach the disk.
func (a *App) saveConfig(fileCfg *config.Config, migrated map[string]bool) error {
	out := *fileCfg
	if migrated[secretNameLLMKey] {
		out.LLM.APIKey = security.KeyringPlaceholder
	}
	if fb := out.FallbackLLM; fb != nil && migrated[secretNameFallbackKey] {
		copied := *fb
		copied.APIKey = security.KeyringPlaceholder
		out.FallbackLLM = &copied
	}
	if tg := out.Channels.Telegram; tg != nil && migrated[secretNameTelegramToken] {
		copied := *tg
		copied.Token = security.KeyringPlaceholder
		out.Channels.Telegram = &copied
	}
	return a.cfgLoader.Save(&out)
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// chainSecs bounds one provider: every retry attempt plus backoff slack.
func chainSecs(cfg config.LLMConfig) int {
	per := cfg.TimeoutSecs
	if per <= 0 {
		per = 30
	}
	attempts := cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	return per*attempts + generateTimeoutSlackSecs*attempts
}

// generateTimeout bounds a whole generation: the primary's attempts, then
// the fallback's when one is configured.
func generateTimeout(cfg *config.Config) time.Duration {
	total := chainSecs(cfg.LLM)
	if cfg.FallbackLLM != nil {
		total += chainSecs(*cfg.FallbackLLM)
	}
	return secs(total)
}

// serverWriteTimeout is the smallest HTTP write timeout that outlasts one
// turn: its generation budget plus every bounded store call.
func serverWriteTimeout(cfg *config.Config) time.Duration {
	store := cfg.Store.TimeoutSecs
	if store <= 0 {
		store = defaultStoreTimeoutSecs
	}
	return generateTimeout(cfg) + secs(storeStepsPerTurn*store+generateTimeoutSlackSecs)
}
