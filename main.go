package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"

	"ARMS-backend/internal/devices"
	"ARMS-backend/internal/platform/auth"
	"ARMS-backend/internal/platform/db"
	"ARMS-backend/internal/rentals"
	"ARMS-backend/internal/users"
)

// users.Service を auth.UserDirectory に合わせる
type userDirectory struct{ svc *users.Service }

func (d userDirectory) State(ctx context.Context, employeeNo string) (auth.Identity, error) {
	st, err := d.svc.State(ctx, employeeNo)
	if err != nil {
		return auth.Identity{}, err
	}
	return auth.Identity{
		Exists:       st.Exists,
		Deleted:      st.Deleted,
		Name:         st.Name,
		AccountLevel: st.AccountLevel,
	}, nil
}

func main() {
	// 設定読み込み
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	mode := cfg.Mode
	log.Printf("[INFO] mode:%s\n", mode)

	if mode != "dev" && mode != "release" {
		fmt.Println("Usage: go run main.go [dev|release]")
		return
	}

	// スキーマ適用（冪等）
	if err := db.Migrate(cfg.DB); err != nil {
		panic(err)
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	secret := []byte(cfg.Auth.JWTSecret)
	authRequired := auth.RequireAuth(secret)
	adminOnly := auth.RequireRole(users.LevelAdmin)

	deviceSvc := devices.NewService(conn)
	userSvc := users.NewService(conn)
	rentalSvc := rentals.NewService(conn, cfg.Rental)
	authSvc := auth.NewService(conn, userDirectory{svc: userSvc}, rentals.NewAuthAdapter(rentalSvc), auth.Config{
		Secret:         secret,
		TokenTTL:       time.Duration(cfg.Auth.TokenTTLHours) * time.Hour,
		MinPasswordLen: cfg.Auth.MinPasswordLen,
	})

	// /api/v1
	api := r.Group("/api/v1")
	devices.RegisterRoutes(api, deviceSvc, authRequired, adminOnly)
	users.RegisterRoutes(api, userSvc, authRequired, adminOnly)
	rentals.RegisterRoutes(api, rentalSvc, authRequired, adminOnly)
	auth.RegisterRoutes(api, authSvc, authRequired, auth.OptionalAuth(secret))

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		if cfg.Certificate.Cert == "" || cfg.Certificate.Key == "" {
			log.Printf("[INFO] listening on http://%s", cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal(err)
			}
			return
		}

		certFile := fmt.Sprintf("config/tls/%s/%s", mode, cfg.Certificate.Cert)
		keyFile := fmt.Sprintf("config/tls/%s/%s", mode, cfg.Certificate.Key)
		log.Printf("[INFO] listening on https://%s", cfg.Server.Addr)
		if err := srv.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("[INFO] shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
