// Command chamber-logger samples chamber sensor readings from MQTT into a
// durable log and archives each activity session.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/sweeney/chamber-logger/internal/archive"
	"github.com/sweeney/chamber-logger/internal/config"
	"github.com/sweeney/chamber-logger/internal/keepalive"
	"github.com/sweeney/chamber-logger/internal/logic"
	"github.com/sweeney/chamber-logger/internal/monitor"
	"github.com/sweeney/chamber-logger/internal/mqtt"
	"github.com/sweeney/chamber-logger/internal/status"
	"github.com/sweeney/chamber-logger/internal/storage"
	"github.com/sweeney/chamber-logger/internal/storage/clickhouse"
	"github.com/sweeney/chamber-logger/internal/storage/redis"
	"github.com/sweeney/chamber-logger/internal/web"
)

func main() {
	Execute()
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return run(cfg, setupLogger(cfg.Logging))
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	loc := cfg.Chamber.Location()

	store, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	pinger := keepalive.New(cfg.KeepAlive.URL, cfg.KeepAlive.Interval, cfg.KeepAlive.Timeout, logger)
	defer pinger.Stop()

	// Tracker first so archive events can carry a snapshot.
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))

	// The client is assigned below; archives only happen once the loop runs.
	notifier := &mqtt.ArchiveNotifier{
		Snapshot: func(event, reason string) []byte {
			return status.FormatStatusEvent(tracker.Snapshot(), event, reason)
		},
	}
	var publishers archive.Chain
	if cfg.Archive.GitPush {
		publishers = append(publishers, gitPublisher(cfg.Archive))
	}
	publishers = append(publishers, notifier)
	archiver := archive.New(store, cfg.Archive.Folder, publishers, logger)

	mon := monitor.New(monitorConfig(cfg.Chamber, loc), store, archiver, pinger, logger)

	client, err := mqtt.NewRealClient(mqtt.ClientConfig{
		Broker:      cfg.MQTT.BrokerURL(),
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		Topic:       cfg.MQTT.Topic,
		StatusTopic: cfg.MQTT.StatusTopic,
	}, func(r logic.Reading) {
		mon.Ingest(r, time.Now())
	}, logger)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()
	notifier.Publisher = client

	srv := web.New(cfg.HTTP.ListenAddr(), tracker, logger)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info().
		Str("broker", cfg.MQTT.BrokerURL()).
		Str("topic", cfg.MQTT.Topic).
		Str("storage", cfg.Storage.Type).
		Dur("log_interval", cfg.Chamber.LogInterval).
		Dur("timeout_off", cfg.Chamber.TimeoutOff).
		Str("timezone", loc.String()).
		Msg("started")

	ticker := time.NewTicker(cfg.Chamber.TickInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(context.Background(), mon, client, client, tracker, pinger, time.Now, ticker.C, sigCh, logger)
}

// keepAliveState reports whether the keep-alive loop is armed.
type keepAliveState interface {
	Running() bool
}

// runLoop reconciles startup state, then evaluates the monitor on every tick
// until a signal arrives. now is called once at startup, once per tick and
// once at shutdown.
func runLoop(ctx context.Context, mon *monitor.Monitor, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, keeper keepAliveState, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, logger zerolog.Logger) error {
	refresh := func() status.Snapshot {
		s := mon.Snapshot()
		tracker.Update(status.Chamber{
			State:        s.State,
			SessionStart: s.Session.Start,
			LastSeen:     s.LastSeen,
			LastWrite:    s.LastWrite,
			LastArchive:  s.LastArchive,
			Counts:       s.Counts,
		})
		if keeper != nil {
			tracker.SetKeepAlive(keeper.Running())
		}
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		return tracker.Snapshot()
	}

	publish := func(at time.Time, event, reason string) {
		snap := refresh()
		ev := mqtt.StatusEvent{
			Timestamp:  at,
			Event:      event,
			Reason:     reason,
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, event, reason),
		}
		if err := publisher.PublishStatus(ev); err != nil {
			logger.Warn().Err(err).Str("event", event).Msg("failed to publish status event")
			return
		}
		logger.Debug().Str("event", event).Msg("published status event")
	}

	start := now()
	st := mon.Reconcile(ctx, start)
	publish(start, mqtt.EventStartup, st.Reason)

	for {
		select {
		case s := <-sig:
			name := signalName(s)
			logger.Info().Str("signal", name).Msg("shutting down")
			publish(now(), mqtt.EventShutdown, name)
			return nil

		case <-tick:
			t := now()
			for _, ev := range mon.Tick(ctx, t) {
				publish(ev.Timestamp, string(ev.Type), "")
			}
			refresh()
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// setupLogger configures the global level and the output format.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

// openStore connects the configured durable store.
func openStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case config.StorageRedis:
		s, err := redis.Open(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageClickHouse:
		s, err := clickhouse.Open(clickhouse.Config{
			Addr:     cfg.ClickHouse.Addr,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageMemory:
		return storage.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
}

func gitPublisher(cfg config.ArchiveConfig) *archive.GitPublisher {
	return &archive.GitPublisher{
		Remote:    cfg.GitRemote,
		Branch:    cfg.GitBranch,
		UserName:  cfg.GitUserName,
		UserEmail: cfg.GitUserEmail,
		SSHKey:    cfg.SSHKey,
	}
}

func monitorConfig(c config.ChamberConfig, loc *time.Location) monitor.Config {
	return monitor.Config{
		LogInterval:      c.LogInterval,
		TimeoutOff:       c.TimeoutOff,
		StartupThreshold: c.StartupThreshold,
		SessionLookback:  c.SessionLookback,
		Location:         loc,
		Markers:          c.StatusMarkers,
	}
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		LogIntervalSec:  int64(cfg.Chamber.LogInterval / time.Second),
		TimeoutOffSec:   int64(cfg.Chamber.TimeoutOff / time.Second),
		KeepAliveSec:    int64(cfg.KeepAlive.Interval / time.Second),
		TimezoneOffset:  cfg.Chamber.TimezoneOffset,
		Broker:          cfg.MQTT.BrokerURL(),
		Topic:           cfg.MQTT.Topic,
		StatusTopic:     cfg.MQTT.StatusTopic,
		Storage:         cfg.Storage.Type,
		ArchiveFolder:   cfg.Archive.Folder,
		HTTPAddr:        cfg.HTTP.ListenAddr(),
		KeepAliveTarget: cfg.KeepAlive.URL,
	}
}
