// Command fdw-server exposes the two Sustainalytics tables over HTTP as
// newline-delimited JSON, plus health and Prometheus metrics endpoints. It
// is the operational front of the row engine for deployments that do not
// embed the library directly.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/smowry40/sustainalytics-fdw/pkg/auth"
	"github.com/smowry40/sustainalytics-fdw/pkg/client"
	"github.com/smowry40/sustainalytics-fdw/pkg/logging"
	"github.com/smowry40/sustainalytics-fdw/pkg/metrics"
	"github.com/smowry40/sustainalytics-fdw/pkg/scan"
	"github.com/smowry40/sustainalytics-fdw/pkg/sustainalytics"
)

func main() {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "") == "true",
		Output: os.Stderr,
	})

	baseURL := getEnv("SUSTAINALYTICS_BASE_URL", sustainalytics.DefaultBaseURL)
	clientID := os.Getenv("SUSTAINALYTICS_CLIENT_ID")
	clientSecret := os.Getenv("SUSTAINALYTICS_CLIENT_SECRET")
	port := getEnv("PORT", "8080")

	// Shared token cache is optional; without Redis each process exchanges
	// its own token.
	var redisClient *redis.Client
	if addr := os.Getenv("REDIS_URL"); addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: addr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", addr).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("addr", addr).Msg("Connected to Redis for shared token cache")
	}

	tokens, err := auth.New(auth.Config{
		BaseURL:      baseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Redis:        redisClient,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create token manager")
	}

	fetcher, err := client.New(client.Config{Tokens: tokens})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create fetcher")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/tables/data_services", tableHandler(fetcher, scan.EndpointDataServices))
	mux.HandleFunc("/tables/field_mapping_definitions", tableHandler(fetcher, scan.EndpointFieldMappingDefinitions))

	addr := ":" + port
	logger.Info().
		Str("addr", addr).
		Str("base_url", baseURL).
		Msg("Starting fdw server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// tableHandler streams one full table scan as NDJSON. Query parameters map
// 1:1 onto table options.
func tableHandler(fetcher *client.Fetcher, endpoint scan.Endpoint) http.HandlerFunc {
	logger := logging.NewLogger("fdw-server")

	return func(w http.ResponseWriter, r *http.Request) {
		opts := map[string]string{scan.OptionEndpoint: string(endpoint)}
		if endpoint == scan.EndpointDataServices {
			for _, key := range []string{
				scan.OptionProductID, scan.OptionPackageIDs,
				scan.OptionFieldClusterIDs, scan.OptionFieldIDs, scan.OptionTake,
			} {
				if v := r.URL.Query().Get(key); v != "" {
					opts[key] = v
				}
			}
		}

		session := scan.NewSession(fetcher)
		if err := session.Begin(opts); err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		defer session.End()

		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)

		rows := 0
		for {
			row, err := session.Next(r.Context())
			if err != nil {
				if rows == 0 {
					http.Error(w, err.Error(), statusFor(err))
					return
				}
				// Rows already streamed stay valid; the stream just ends.
				logger.Error().Err(err).Int("rows", rows).Msg("Scan aborted mid-stream")
				return
			}
			if row == nil {
				return
			}
			if err := enc.Encode(row); err != nil {
				logger.Warn().Err(err).Msg("Client went away")
				return
			}
			rows++
		}
	}
}

// statusFor maps engine error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch sustainalytics.KindOf(err) {
	case sustainalytics.ErrorKindConfig:
		return http.StatusBadRequest
	case sustainalytics.ErrorKindSchema, sustainalytics.ErrorKindDecode:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
