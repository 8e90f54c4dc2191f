package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/monngon/feed-service/internal/pkg/log"
	"github.com/monngon/feed-service/internal/pkg/utils"
	"github.com/monngon/feed-service/internal/services/feed"
	"github.com/monngon/feed-service/internal/services/gateway"
	"github.com/monngon/feed-service/internal/services/geo"
	"github.com/monngon/feed-service/internal/services/session"
)

type Services struct {
	gateway gateway.Gateway
	feed    *feed.Engine
	session *session.SessionService
	geo     *geo.GeoService
}

var once sync.Once
var instance *Services

func Instance() *Services {
	once.Do(func() {
		if instance == nil {
			instance = createServices()
		}
	})
	return instance
}

func createServices() *Services {
	queryTimeout := utils.EnvVarDurationDefault("GATEWAY_QUERY_TIMEOUT_IN_SECONDS", time.Second, 30*time.Second)

	var gw gateway.Gateway
	var err error
	switch kind := utils.EnvVarDefault("GATEWAY_KIND", "sqlite"); kind {
	case "postgres":
		gw, err = gateway.CreatePostgresGateway(utils.EnvVar("GATEWAY_DATABASE_URL"), queryTimeout)
		if err != nil {
			log.Fatalf("unable to create postgres gateway: %s", err)
		}
	case "redis":
		gw = gateway.CreateRedisGateway(
			utils.EnvVar("REDIS_HOST")+":"+utils.EnvVar("REDIS_PORT"),
			utils.EnvVarDefault("REDIS_PASSWORD", ""),
			utils.EnvVarIntDefault("REDIS_DB", 0),
			queryTimeout,
		)
	case "sqlite":
		gw, err = gateway.CreateSqliteGateway(utils.EnvVarDefault("GATEWAY_SQLITE_PATH", "feed.db"), queryTimeout)
		if err != nil {
			log.Fatalf("unable to create sqlite gateway: %s", err)
		}
	default:
		log.Fatalf("unknown GATEWAY_KIND: %s", kind)
	}

	engine := feed.CreateEngine(feed.EngineConfig{
		Gateway:     gw,
		CallTimeout: queryTimeout,
	})

	hydrateCtx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	engine.Hydrate(hydrateCtx)
	log.Info("feed hydrated", "posts loaded from remote store")

	return &Services{
		gateway: gw,
		feed:    engine,
		session: session.CreateSessionService(utils.EnvVar("SESSION_JWT_SECRET")),
		geo: geo.CreateGeoService(
			utils.EnvVarDefault("GEOCODER_ENDPOINT", geo.DefaultEndpoint),
			utils.EnvVarDurationDefault("GEOCODER_TIMEOUT_IN_SECONDS", time.Second, 5*time.Second),
		),
	}
}

func (s *Services) Shutdown() error {
	result := []error{}
	s.feed.Drain()
	if err := s.gateway.Shutdown(); err != nil {
		result = append(result, err)
	}
	if len(result) > 0 {
		return errors.Join(result...)
	}
	return nil
}

func (s *Services) Feed() *feed.Engine {
	return s.feed
}

func (s *Services) Session() *session.SessionService {
	return s.session
}

func (s *Services) Geo() *geo.GeoService {
	return s.geo
}
