package server

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"weebchat/internal/config"
	"weebchat/internal/database"
	"weebchat/internal/middleware"
	"weebchat/internal/moderation"
	"weebchat/internal/notifications"
	"weebchat/internal/repository"
	"weebchat/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

// newTestServer wires a Server against in-memory sqlite. The Prometheus
// middleware stays nil so repeated construction within one test binary does
// not re-register collectors.
func newTestServer(t *testing.T, rdb *redis.Client) (*Server, *fiber.App) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A second pooled connection would see an empty in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		Port:            "0",
		Env:             "test",
		JWTSecret:       testSecret,
		ModerationURL:   "http://127.0.0.1:1/v1/moderations",
		ModerationModel: "omni-moderation-latest",
	}
	middleware.InitMiddleware(cfg)

	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	moderationRepo := repository.NewModerationRepository(db)

	pipeline := moderation.NewPipeline(
		moderation.NewOpenAIClassifier(cfg.ModerationURL, "", cfg.ModerationModel))
	ledger := service.NewViolationLedger(userRepo)
	contexts := service.NewContextCache()

	notifier := notifications.NewNotifier(rdb)
	roomHub := notifications.NewRoomHub(notifier)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          rdb,
		userRepo:       userRepo,
		chatRepo:       chatRepo,
		moderationRepo: moderationRepo,
		notifier:       notifier,
		roomHub:        roomHub,
		pipeline:       pipeline,
		ledger:         ledger,
		contexts:       contexts,
		ingest: service.NewMessageIngest(
			userRepo, chatRepo, moderationRepo,
			ledger, contexts, pipeline, roomHub),
	}

	app := fiber.New()
	s.SetupRoutes(app)
	return s, app
}

func signToken(t *testing.T, uid, email string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": uid,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func authedRequest(t *testing.T, method, target, uid string, body io.Reader) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, target, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signToken(t, uid, ""))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response, dest interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}
