package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/ctrdhq/account-directory-server/internal/bootstrap"
	"github.com/ctrdhq/account-directory-server/package/env"
)

func main() {
	healthCheck := flag.Bool("health", false, "probe the local health endpoint and exit")
	flag.Parse()

	_ = godotenv.Load()

	if *healthCheck {
		os.Exit(probeHealth())
	}

	bootstrap.Run()
}

// probeHealth is the container healthcheck entrypoint. It avoids pulling
// the whole service graph up just to ask whether the server answers.
func probeHealth() int {
	port, err := env.Get("PORT", "8080")
	if err != nil {
		port = "8080"
	}
	url := fmt.Sprintf("http://127.0.0.1:%s/api/v1/health", port)

	client := &http.Client{Timeout: 2 * time.Second}
	response, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "health probe failed: %v\n", err)
		return 1
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "health probe returned status %d\n", response.StatusCode)
		return 1
	}

	return 0
}
