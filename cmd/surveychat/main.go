// File path: cmd/surveychat/main.go
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/crosstabs/surveychat/internal/api"
	"github.com/crosstabs/surveychat/internal/common"
	"github.com/crosstabs/surveychat/internal/conversation"
	"github.com/crosstabs/surveychat/internal/intent"
	"github.com/crosstabs/surveychat/internal/llm"
	"github.com/crosstabs/surveychat/internal/resolver"
	"github.com/crosstabs/surveychat/internal/store"
	"github.com/crosstabs/surveychat/internal/tabulate"
)

func main() {
	logger := common.Logger()

	if err := godotenv.Load(); err != nil {
		logger.Warn("surveychat: .env file not loaded", "error", err)
	} else {
		logger.Info("surveychat: environment loaded from .env")
	}

	addr := flag.String("addr", ":8000", "listen address")
	dbPath := flag.String("db", defaultDBPath(), "path to the survey response database")
	originsFlag := flag.String("origins", "", "comma-separated allowed CORS origins")
	flag.Parse()

	logger.Info("surveychat: startup initiated", "addr", *addr, "db", *dbPath)

	st, err := store.Open(*dbPath)
	if err != nil {
		logger.Error("surveychat: store open failed", "error", err)
		fmt.Println("store error:", err)
		os.Exit(1)
	}
	defer st.Close()

	provider := llm.NewProvider()
	logger.Info("surveychat: llm provider ready", "provider", provider.Name())

	extractor := intent.NewExtractor(provider)
	ident := resolver.New(st)
	engine := tabulate.New(st)
	defer engine.Stop()

	conv, err := conversation.New(extractor, ident, engine)
	if err != nil {
		logger.Error("surveychat: conversation resolver construction failed", "error", err)
		fmt.Println("conversation error:", err)
		os.Exit(1)
	}

	cfg := api.DefaultConfig()
	if trimmed := strings.TrimSpace(*originsFlag); trimmed != "" {
		cfg.AllowedOrigins = parseOrigins(trimmed)
	} else if env := strings.TrimSpace(os.Getenv("SURVEYCHAT_ORIGINS")); env != "" {
		cfg.AllowedOrigins = parseOrigins(env)
	}

	server := api.NewServer(conv, ident, engine, &cfg)

	logger.Info("surveychat: server listening", "addr", *addr, "health", "/healthz")
	fmt.Printf("Serving on %s\n", *addr)
	if err := http.ListenAndServe(*addr, server); err != nil {
		logger.Error("surveychat: server stopped", "error", err)
		fmt.Println("server stopped:", err)
	}
}

func defaultDBPath() string {
	return filepath.Join("data", "survey.db")
}

func parseOrigins(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
