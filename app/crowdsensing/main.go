package main

import (
	"context"
	"fmt"
	"github.com/ardanlabs/conf"
	"github.com/jellydator/ttlcache/v3"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/qubic/go-crowdsensing/api"
	"github.com/qubic/go-crowdsensing/business/domain/campaign"
	"github.com/qubic/go-crowdsensing/business/domain/relay"
	"github.com/qubic/go-crowdsensing/external/kafka"
	"github.com/qubic/go-crowdsensing/infrastructure/store/pebbledb"
	"github.com/qubic/go-crowdsensing/metrics"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const prefix = "QUBIC_CROWDSENSING"

func main() {
	if err := run(); err != nil {
		log.Fatalf("main: exited with error: %s", err.Error())
	}
}

func run() error {
	// optional, values from the environment take precedence
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, "loading .env file")
	}

	config := zap.NewProductionConfig()
	// this is just for sugar, to display a readable date instead of an epoch time
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)

	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("creating logger: %v", err)
	}
	defer logger.Sync()
	sLogger := logger.Sugar()

	var cfg struct {
		InternalStoreFolder string `conf:"default:store"`
		Campaign            struct {
			ID              string   `conf:"optional"`
			Owner           string   `conf:"required"`
			Verifiers       []string `conf:"optional"`
			MinParticipants int      `conf:"default:1"`
			RewardAmount    uint64   `conf:"default:100000000000000000"`
			Fee             uint64   `conf:"default:10000000000000000"`
			Selector        string   `conf:"default:least-assigned"`
			Seed            string   `conf:"optional"`
		}
		Relay struct {
			BatchSize      int           `conf:"default:100"`
			PollInterval   time.Duration `conf:"default:1s"`
			PublishTimeout time.Duration `conf:"default:30s"`
		}
		Kafka struct {
			BootstrapServers []string `conf:"default:localhost:9092"`
			EventTopic       string   `conf:"default:qubic-crowdsensing-events"`
		}
		Server struct {
			HttpHost         string        `conf:"default:0.0.0.0:8000"`
			GrpcHost         string        `conf:"default:0.0.0.0:8001"`
			MetricsHttpHost  string        `conf:"default:0.0.0.0:9999"`
			MetricsNamespace string        `conf:"default:qubic_crowdsensing"`
			StatusCacheTtl   time.Duration `conf:"default:2s"`
		}
	}

	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch {
		case errors.Is(err, conf.ErrHelpWanted):
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return errors.Wrap(err, "generating config usage")
			}
			fmt.Println(usage)
			return nil
		case errors.Is(err, conf.ErrVersionWanted):
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return errors.Wrap(err, "generating config version")
			}
			fmt.Println(version)
			return nil
		}
		return errors.Wrap(err, "parsing config")
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return errors.Wrap(err, "generating config for output")
	}
	log.Printf("main: Config :\n%v\n", out)

	selector, err := newSelector(cfg.Campaign.Selector, cfg.Campaign.Seed)
	if err != nil {
		return errors.Wrap(err, "creating verifier selector")
	}

	m := metrics.NewMetrics(cfg.Server.MetricsNamespace)
	service, err := campaign.New(campaign.Config{
		Owner:           cfg.Campaign.Owner,
		MinParticipants: cfg.Campaign.MinParticipants,
		RewardAmount:    cfg.Campaign.RewardAmount,
		Fee:             cfg.Campaign.Fee,
	},
		campaign.WithID(cfg.Campaign.ID),
		campaign.WithSelector(selector),
		campaign.WithLogger(sLogger),
		campaign.WithRecorder(m),
	)
	if err != nil {
		return errors.Wrap(err, "creating campaign")
	}
	for _, verifier := range cfg.Campaign.Verifiers {
		if err := service.AddVerifier(cfg.Campaign.Owner, verifier); err != nil {
			return errors.Wrapf(err, "adding verifier [%s]", verifier)
		}
	}

	store, err := pebbledb.NewProcessorStore(cfg.InternalStoreFolder)
	if err != nil {
		return errors.Wrap(err, "creating processor store")
	}
	defer store.Close()

	checkpoints, err := store.GetLastPublishedSequenceForAllCampaigns()
	if err != nil {
		return errors.Wrap(err, "getting relay checkpoints")
	}
	sLogger.Infow("Loaded relay checkpoints", "campaigns", len(checkpoints), "checkpoints", checkpoints)

	kafkaMetrics := kprom.NewMetrics(cfg.Server.MetricsNamespace,
		kprom.Registerer(prometheus.DefaultRegisterer),
		kprom.Gatherer(prometheus.DefaultGatherer))
	kcl, err := kgo.NewClient(
		kgo.WithHooks(kafkaMetrics),
		kgo.DefaultProduceTopic(cfg.Kafka.EventTopic),
		kgo.SeedBrokers(cfg.Kafka.BootstrapServers...),
		kgo.ProducerBatchCompression(kgo.ZstdCompression()),
	)
	if err != nil {
		return errors.Wrap(err, "creating kafka client")
	}
	defer kcl.Close()
	kafkaClient := kafka.NewClient(kcl, sLogger)

	proc := relay.NewProcessor(service, kafkaClient, cfg.Relay.PublishTimeout, store, cfg.Relay.BatchSize, cfg.Relay.PollInterval, m, sLogger)

	campaignCache := ttlcache.New[string, *api.CampaignResponse](
		ttlcache.WithTTL[string, *api.CampaignResponse](cfg.Server.StatusCacheTtl),
		ttlcache.WithDisableTouchOnHit[string, *api.CampaignResponse](),
	)
	go campaignCache.Start()
	defer campaignCache.Stop()

	handler := api.NewHandler(service, store, campaignCache, sLogger)
	apiServer := &http.Server{Addr: cfg.Server.HttpHost, Handler: handler.Routes()}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.Server.MetricsHttpHost, Handler: metricsMux}

	grpcServer := api.NewGrpcServer()
	grpcListener, err := net.Listen("tcp", cfg.Server.GrpcHost)
	if err != nil {
		return errors.Wrap(err, "listening on grpc host")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return proc.Start(ctx)
	})
	g.Go(func() error {
		sLogger.Infow("Starting api server", "addr", cfg.Server.HttpHost)
		return serveHttp(apiServer)
	})
	g.Go(func() error {
		sLogger.Infow("Starting metrics server", "addr", cfg.Server.MetricsHttpHost)
		return serveHttp(metricsServer)
	})
	g.Go(func() error {
		sLogger.Infow("Starting grpc server", "addr", cfg.Server.GrpcHost)
		return grpcServer.Serve(grpcListener)
	})
	g.Go(func() error {
		<-ctx.Done()
		sLogger.Infow("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcServer.Stop()
		return multierr.Combine(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	sLogger.Infow("Service started", "campaign", service.ID())
	return g.Wait()
}

func serveHttp(srv *http.Server) error {
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.Wrapf(err, "serving http on [%s]", srv.Addr)
}
